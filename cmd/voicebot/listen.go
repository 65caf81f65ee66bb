package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicebot/internal/audio"
	"github.com/lexiqai/voicebot/internal/completion"
	"github.com/lexiqai/voicebot/internal/config"
	"github.com/lexiqai/voicebot/internal/pipeline"
	"github.com/lexiqai/voicebot/internal/resilience"
	"github.com/lexiqai/voicebot/internal/stt"
	"github.com/lexiqai/voicebot/internal/synthesis"
	"github.com/lexiqai/voicebot/internal/voice"
)

func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Talk to the bot through the microphone and speakers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("voice", func(cfg *config.Config) completion.Options {
				return completion.VoiceOptions(cfg.VoiceCompletionBudget())
			})
			if err != nil {
				return err
			}
			defer a.close()
			cfg := a.cfg

			if cfg.DeepgramAPIKey == "" {
				return errors.New("DEEPGRAM_API_KEY is required for listen")
			}
			transcriber, err := stt.NewDeepgramClient(stt.DeepgramConfig{
				APIKey:   cfg.DeepgramAPIKey,
				Model:    cfg.DeepgramModel,
				Language: cfg.DeepgramLanguage,
				Reconnect: &resilience.ReconnectConfig{
					MaxAttempts: cfg.ReconnectMaxAttempts,
					Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
					Multiplier:  2.0,
					MaxBackoff:  10 * time.Second,
				},
				Breaker: a.breaker("deepgram"),
			})
			if err != nil {
				return err
			}

			checks := a.checks()
			checks["stt"] = transcriber.Health
			stopHealth, err := a.startGRPCHealth(checks)
			if err != nil {
				return err
			}
			defer stopHealth()

			listener := audio.NewListener(audio.ListenerConfig{
				Command:      cfg.RecorderCommand,
				SampleRate:   cfg.MicSampleRate,
				PreRollBytes: cfg.AudioBufferSize,
				Calibration:  time.Duration(cfg.CalibrationMs) * time.Millisecond,
				MaxUtterance: time.Duration(cfg.MaxUtteranceMs) * time.Millisecond,
				VAD: audio.VADConfig{
					EnergyThreshold: cfg.VADEnergyThreshold,
					SilenceFrames:   cfg.VADSilenceFrames,
					FrameSize:       cfg.MicSampleRate / 50,
					AmbientRatio:    1.5,
				},
			})
			speaker := audio.NewSpeaker(audio.SpeakerConfig{
				Command: cfg.PlayerCommand,
				PerChar: time.Duration(cfg.PlaybackCharDelay) * time.Millisecond,
			})

			// One turn at a time, so synthesis runs on the caller's goroutine.
			p := pipeline.New(a.completer, synthesis.Inline{Provider: a.synth}, a.replies, a.recordings)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return voice.New(listener, transcriber, p, speaker, os.Stdout).Run(ctx)
		},
	}
}
