package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/rs/zerolog"
)

// SpeakerConfig configures playback.
type SpeakerConfig struct {
	Command string        // player command line; the file path is appended. Empty picks the OS opener
	PerChar time.Duration // playback estimate per character when MP3 frames cannot be decoded
	TempDir string        // empty uses the OS default
}

// Speaker plays MP3 audio by handing a temporary file to a player, then waits
// for the estimated playback length before deleting the file.
type Speaker struct {
	cfg    SpeakerConfig
	run    func(ctx context.Context, name string, args ...string) error
	wait   func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// NewSpeaker creates a Speaker.
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	if cfg.PerChar <= 0 {
		cfg.PerChar = 100 * time.Millisecond
	}
	return &Speaker{
		cfg:    cfg,
		run:    runCommand,
		wait:   sleepContext,
		logger: observability.Component("audio.speaker"),
	}
}

// Speak plays data, which was synthesized from text. The temporary file is
// removed even when the player fails to start.
func (s *Speaker) Speak(ctx context.Context, text string, data []byte) error {
	f, err := os.CreateTemp(s.cfg.TempDir, "voicebot-*.mp3")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove temp audio")
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	name, args := PlayerCommand(s.cfg.Command, path)
	if err := s.run(ctx, name, args...); err != nil {
		return fmt.Errorf("play audio with %s: %w", name, err)
	}

	d := EstimateDuration(data, text, s.cfg.PerChar)
	s.logger.Debug().Str("player", name).Dur("duration", d).Msg("Playing audio")
	return s.wait(ctx, d)
}

// PlayerCommand returns the program and arguments that open path.
func PlayerCommand(configured, path string) (string, []string) {
	if fields := strings.Fields(configured); len(fields) > 0 {
		return fields[0], append(fields[1:], path)
	}

	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start", "", path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
