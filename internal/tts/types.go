// Package tts converts reply text into encoded speech.
//
// Providers (Google Translate, OpenAI, Cartesia) share one interface so the
// configured order can be changed without touching callers:
//
//	provider, _ := tts.NewFromConfig(cfg)
//	defer provider.Close()
//
//	result, err := provider.Synthesize(ctx, "Hello world")
//	// result.Audio holds MP3 bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider configuration and connectivity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error

	// Name identifies the provider in logs and metrics.
	Name() string
}

// AudioResult represents a complete audio synthesis result
type AudioResult struct {
	Audio     []byte        // Encoded audio
	Format    AudioFormat   // Encoding and sample rate
	Duration  time.Duration // Playback length, decoded from the frames when possible
	CharCount int           // Characters synthesized
	LatencyMs int64         // Time to complete audio in milliseconds
	Provider  string        // Provider that produced the audio
}

// AudioFormat describes the audio encoding parameters
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio encoding types
type Encoding string

const (
	EncodingMP3      Encoding = "mp3_44100_128" // MP3 128kbps
	EncodingMP3Voice Encoding = "mp3_24000_32"  // Google Translate voice
)

// MP3 is the format returned by the HTTP providers.
var MP3 = AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1}

// fallbackCharDuration estimates playback when MP3 frames cannot be decoded.
const fallbackCharDuration = 100 * time.Millisecond
