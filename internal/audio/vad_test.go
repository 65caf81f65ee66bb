package audio

import (
	"testing"
)

func frame(amplitude int16, size int) []int16 {
	samples := make([]int16, size)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

func testVAD() *VADDetector {
	return NewVADDetector(&VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
		AmbientRatio:    1.5,
	})
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	vad := testVAD()
	samples := frame(5000, 320)

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(samples)
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if speechStarted != (i == 0) {
			t.Errorf("Expected speechStarted only on first frame, frame %d got %v", i, speechStarted)
		}
	}
}

func TestVADDetector_ProcessFrame_Silence(t *testing.T) {
	vad := testVAD()
	samples := frame(10, 320)

	for i := 0; i < 15; i++ {
		isSpeaking, _, ended := vad.ProcessFrame(samples)
		if isSpeaking || ended {
			t.Errorf("Expected silence on frame %d", i)
		}
	}
}

func TestVADDetector_ProcessFrame_SpeechToSilence(t *testing.T) {
	vad := testVAD()

	for i := 0; i < 5; i++ {
		vad.ProcessFrame(frame(5000, 320))
	}

	endedAt := -1
	for i := 0; i < 15; i++ {
		if _, _, ended := vad.ProcessFrame(frame(10, 320)); ended {
			endedAt = i
			break
		}
	}

	if endedAt != 9 {
		t.Errorf("Expected speech to end on the 10th silent frame, got %d", endedAt)
	}
	if vad.IsSpeaking() {
		t.Error("Expected not speaking after speech ended")
	}
}

func TestVADDetector_CalibrateRaisesThreshold(t *testing.T) {
	vad := testVAD()

	vad.Calibrate(100) // quiet room: floor wins
	if vad.Threshold() != 500 {
		t.Errorf("Expected floor threshold 500, got %.1f", vad.Threshold())
	}

	vad.Calibrate(1000) // noisy room
	if vad.Threshold() != 1500 {
		t.Errorf("Expected calibrated threshold 1500, got %.1f", vad.Threshold())
	}

	if speaking, _, _ := vad.ProcessFrame(frame(1200, 320)); speaking {
		t.Error("Expected ambient-level audio to be treated as silence")
	}
	if speaking, _, _ := vad.ProcessFrame(frame(3000, 320)); !speaking {
		t.Error("Expected loud audio above calibrated threshold to be speech")
	}
}

func TestVADDetector_ResetKeepsCalibration(t *testing.T) {
	vad := testVAD()
	vad.Calibrate(2000)
	vad.ProcessFrame(frame(5000, 320))

	vad.Reset()
	if vad.IsSpeaking() {
		t.Error("Expected speech state to be false after reset")
	}
	if vad.Threshold() != 3000 {
		t.Errorf("Expected calibration to survive reset, got %.1f", vad.Threshold())
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.FrameSize != 320 {
		t.Errorf("Expected 20ms frames at 16kHz, got %d", config.FrameSize)
	}
	if config.SilenceFrames != 40 {
		t.Errorf("Expected default SilenceFrames 40, got %d", config.SilenceFrames)
	}
}

func TestCalculateRMS(t *testing.T) {
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	// sqrt((1000^2 + 1000^2 + 2000^2 + 2000^2) / 4)
	expected := 1581.14
	if rms < expected-1 || rms > expected+1 {
		t.Errorf("Expected RMS around %.2f, got %.2f", expected, rms)
	}

	if CalculateRMS(nil) != 0 {
		t.Error("Expected zero RMS for no samples")
	}
}

func TestSampleRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	got := BytesToSamples(SamplesToBytes(samples))
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}
