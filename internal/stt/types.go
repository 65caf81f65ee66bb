// Package stt turns captured speech into text.
package stt

import (
	"context"
	"errors"

	"github.com/lexiqai/voicebot/internal/audio"
)

// ErrUnintelligible means the service heard no recognizable words.
var ErrUnintelligible = errors.New("could not understand audio")

// ErrNoAPIKey means the transcriber cannot start without credentials.
var ErrNoAPIKey = errors.New("stt: API key required")

// TranscriptionResult represents one transcript event from the service
type TranscriptionResult struct {
	Text       string
	IsFinal    bool    // final (true) or interim (false)
	Confidence float64 // 0.0 to 1.0 if available
	StartTime  float64 // seconds from the start of the stream
	Duration   float64 // seconds
}

// Transcriber converts one utterance to text. Implementations return
// ErrUnintelligible when nothing was recognized.
type Transcriber interface {
	Transcribe(ctx context.Context, utt *audio.Utterance) (string, error)
}
