package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/rs/zerolog"
)

// ErrNoSpeech is returned when the stream ends before any speech is heard.
var ErrNoSpeech = errors.New("no speech detected")

// ErrStreamEnded means the microphone stream closed before calibration finished,
// which a working recorder never does.
var ErrStreamEnded = errors.New("microphone stream ended before calibration")

// ListenerConfig configures microphone capture.
type ListenerConfig struct {
	Command      string // recorder command line writing raw PCM16 mono to stdout; empty picks one by OS
	SampleRate   int
	PreRollBytes int
	Calibration  time.Duration // leading audio used to measure ambient noise
	MaxUtterance time.Duration
	VAD          VADConfig
}

// Utterance is one captured stretch of speech.
type Utterance struct {
	PCM        []byte // PCM16 little-endian mono
	SampleRate int
	Duration   time.Duration
}

// Listener records one utterance per call from a recorder subprocess.
type Listener struct {
	cfg    ListenerConfig
	open   func(ctx context.Context) (io.ReadCloser, error)
	logger zerolog.Logger
}

// NewListener creates a Listener that records with cfg.Command.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.VAD.FrameSize <= 0 {
		cfg.VAD.FrameSize = cfg.SampleRate / 50 // 20ms
	}
	l := &Listener{cfg: cfg, logger: observability.Component("audio.listener")}
	l.open = l.startRecorder
	return l
}

// NewStreamListener creates a Listener that reads PCM from open instead of a subprocess.
func NewStreamListener(cfg ListenerConfig, open func(ctx context.Context) (io.ReadCloser, error)) *Listener {
	l := NewListener(cfg)
	l.open = open
	return l
}

// Listen calibrates against ambient noise, waits for speech and returns it once
// the speaker falls silent. Audio just before the speech onset is kept.
func (l *Listener) Listen(ctx context.Context) (*Utterance, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	defer stream.Close()

	return l.capture(ctx, stream)
}

func (l *Listener) capture(ctx context.Context, stream io.Reader) (*Utterance, error) {
	frameBytes := l.cfg.VAD.FrameSize * 2
	frameDur := time.Duration(l.cfg.VAD.FrameSize) * time.Second / time.Duration(l.cfg.SampleRate)
	calibrationFrames := int(l.cfg.Calibration / frameDur)
	maxFrames := int(l.cfg.MaxUtterance / frameDur)

	vad := NewVADDetector(&l.cfg.VAD)
	preRoll := NewRingBuffer(max(l.cfg.PreRollBytes, frameBytes))
	buf := make([]byte, frameBytes)

	var (
		ambient    float64
		calibrated int
		speech     []byte
		frames     int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := io.ReadFull(stream, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("read microphone: %w", err)
			}
			switch {
			case speech != nil:
				return l.utterance(speech), nil
			case calibrated < calibrationFrames:
				return nil, fmt.Errorf("read microphone: %w", ErrStreamEnded)
			default:
				return nil, ErrNoSpeech
			}
		}
		samples := BytesToSamples(buf)

		if calibrated < calibrationFrames {
			ambient += CalculateRMS(samples)
			calibrated++
			if calibrated == calibrationFrames {
				vad.Calibrate(ambient / float64(calibrationFrames))
				l.logger.Debug().Float64("threshold", vad.Threshold()).Msg("Calibrated for ambient noise")
			}
			continue
		}

		_, started, ended := vad.ProcessFrame(samples)
		switch {
		case speech == nil && !started:
			preRoll.Write(buf)
		case started:
			speech = append(preRoll.Drain(), buf...)
			frames = 1
		default:
			speech = append(speech, buf...)
			frames++
		}

		if ended || (speech != nil && maxFrames > 0 && frames >= maxFrames) {
			return l.utterance(speech), nil
		}
	}
}

func (l *Listener) utterance(pcm []byte) *Utterance {
	return &Utterance{
		PCM:        pcm,
		SampleRate: l.cfg.SampleRate,
		Duration:   time.Duration(len(pcm)/2) * time.Second / time.Duration(l.cfg.SampleRate),
	}
}

// startRecorder runs the recorder and exposes its stdout. Closing the stream
// stops the process.
func (l *Listener) startRecorder(ctx context.Context) (io.ReadCloser, error) {
	name, args := RecorderCommand(l.cfg.Command, l.cfg.SampleRate)
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	l.logger.Debug().Str("recorder", name).Int("sample_rate", l.cfg.SampleRate).Msg("Recording started")
	return &recorderStream{ReadCloser: stdout, cmd: cmd, stderr: stderr}, nil
}

// recorderStream reports a recorder that exits with an error as a read error
// instead of a clean end of stream.
type recorderStream struct {
	io.ReadCloser
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	once    sync.Once
	waitErr error
}

func (r *recorderStream) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		if werr := r.wait(); werr != nil {
			return n, r.exitError(werr)
		}
	}
	return n, err
}

func (r *recorderStream) wait() error {
	r.once.Do(func() { r.waitErr = r.cmd.Wait() })
	return r.waitErr
}

func (r *recorderStream) exitError(err error) error {
	if msg := strings.TrimSpace(r.stderr.String()); msg != "" {
		return fmt.Errorf("recorder exited: %w: %s", err, msg)
	}
	return fmt.Errorf("recorder exited: %w", err)
}

func (r *recorderStream) Close() error {
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.wait()
	return nil
}

// RecorderCommand returns the recorder program and arguments. A configured
// command line is split on whitespace; otherwise arecord is used on Linux and
// sox elsewhere.
func RecorderCommand(configured string, sampleRate int) (string, []string) {
	if fields := strings.Fields(configured); len(fields) > 0 {
		return fields[0], fields[1:]
	}

	rate := strconv.Itoa(sampleRate)
	if runtime.GOOS == "linux" {
		return "arecord", []string{"-q", "-f", "S16_LE", "-c", "1", "-r", rate, "-t", "raw"}
	}
	return "sox", []string{"-q", "-d", "-t", "raw", "-b", "16", "-e", "signed-integer", "-c", "1", "-r", rate, "-"}
}
