// Package voice runs the spoken conversation loop: listen, transcribe,
// answer, speak, until the user says the exit phrase.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicebot/internal/audio"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/pipeline"
	"github.com/lexiqai/voicebot/internal/stt"
)

// ExitPhrase ends the loop when it is the whole transcript, in any case.
const ExitPhrase = "exit"

const (
	readyMessage    = "Voice Bot is ready! Speak to ask a question. Say 'exit' to quit."
	farewellMessage = "Goodbye!"
)

// Listener captures one utterance from the microphone.
type Listener interface {
	Listen(ctx context.Context) (*audio.Utterance, error)
}

// Speaker plays synthesized speech.
type Speaker interface {
	Speak(ctx context.Context, text string, data []byte) error
}

// Processor answers one utterance.
type Processor interface {
	Process(ctx context.Context, utterance string) (*pipeline.Reply, error)
}

// Loop wires the voice surface together. Console messages go to out.
type Loop struct {
	listener    Listener
	transcriber stt.Transcriber
	processor   Processor
	speaker     Speaker
	out         io.Writer
	logger      zerolog.Logger
}

// New creates a voice loop.
func New(listener Listener, transcriber stt.Transcriber, processor Processor, speaker Speaker, out io.Writer) *Loop {
	return &Loop{
		listener:    listener,
		transcriber: transcriber,
		processor:   processor,
		speaker:     speaker,
		out:         out,
		logger:      observability.Component("voice"),
	}
}

// Run loops until the exit phrase is heard or ctx ends. Transcription and
// synthesis failures are reported and the loop keeps listening; a
// microphone that cannot be opened stops it.
func (l *Loop) Run(ctx context.Context) error {
	l.say(readyMessage)

	for {
		if ctx.Err() != nil {
			return nil
		}

		done, err := l.turn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if done {
			return nil
		}
	}
}

// turn handles one utterance. It reports done once the exit phrase is heard.
func (l *Loop) turn(ctx context.Context) (bool, error) {
	l.say("Listening...")
	utt, err := l.listener.Listen(ctx)
	if errors.Is(err, audio.ErrNoSpeech) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("listen: %w", err)
	}

	text, ok := l.transcribe(ctx, utt)
	if !ok {
		return false, nil
	}
	l.say("You said: " + text)

	if IsExit(text) {
		l.say(farewellMessage)
		return true, nil
	}

	metrics := observability.NewTurnMetrics("voice")
	reply, err := l.processor.Process(ctx, text)
	if err != nil {
		metrics.RecordTurnEnd("error")
		observability.RecordError("synthesis", "voice")
		l.logger.Error().Err(err).Msg("Turn failed")
		l.say(fmt.Sprintf("Could not speak the response; %v", err))
		return false, nil
	}
	metrics.RecordTurnEnd(string(reply.Status))

	l.say("AI Response: " + reply.Text)
	if err := l.speaker.Speak(ctx, reply.Text, reply.Audio.Audio); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		observability.RecordError("playback", "voice")
		l.logger.Warn().Err(err).Str("turn_id", reply.TurnID).Msg("Playback failed")
		l.say(fmt.Sprintf("Could not play audio; %v", err))
	}
	return false, nil
}

// transcribe returns the transcript, or false when the utterance is discarded.
func (l *Loop) transcribe(ctx context.Context, utt *audio.Utterance) (string, bool) {
	text, err := l.transcriber.Transcribe(ctx, utt)
	switch {
	case errors.Is(err, stt.ErrUnintelligible):
		l.say("Could not understand audio")
		return "", false
	case err != nil:
		observability.RecordError("transcription", "voice")
		l.logger.Warn().Err(err).Msg("Transcription failed")
		l.say(fmt.Sprintf("Could not request results; %v", err))
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		l.say("Could not understand audio")
		return "", false
	}
	return text, true
}

func (l *Loop) say(msg string) {
	fmt.Fprintln(l.out, msg)
}

// IsExit reports whether a transcript asks to end the conversation.
func IsExit(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), ExitPhrase)
}
