package audio

import (
	"encoding/binary"
	"math"
)

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS floor for speech; calibration can only raise it
	SilenceFrames   int     // Consecutive silent frames that end an utterance
	FrameSize       int     // Samples per frame (320 = 20ms at 16kHz)
	AmbientRatio    float64 // Calibrated threshold is ambient RMS times this ratio
}

// DefaultVADConfig returns a default VAD configuration for 16kHz microphone audio
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 300.0,
		SilenceFrames:   40,  // 800ms of silence (40 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
		AmbientRatio:    1.5,
	}
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         VADConfig
	threshold      float64
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{
		config:    *config,
		threshold: config.EnergyThreshold,
	}
}

// Calibrate raises the speech threshold above the measured ambient level.
func (v *VADDetector) Calibrate(ambientRMS float64) {
	ratio := v.config.AmbientRatio
	if ratio <= 0 {
		ratio = 1.5
	}
	v.threshold = math.Max(v.config.EnergyThreshold, ambientRMS*ratio)
}

// Threshold returns the RMS level currently treated as speech.
func (v *VADDetector) Threshold() float64 {
	return v.threshold
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.threshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset clears speech state but keeps the calibrated threshold
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// CalculateRMS calculates the root mean square energy of samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// BytesToSamples decodes little-endian PCM16.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
