package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	providerCartesia = "cartesia"
	cartesiaTTSURL   = "https://api.cartesia.ai/tts/bytes"
	cartesiaVersion  = "2024-06-10"
)

// CartesiaConfig configures the Cartesia provider.
type CartesiaConfig struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	Language   string
	URL        string
	HTTPClient *http.Client
	Retry      *resilience.RetryConfig
}

// Cartesia implements Provider using Cartesia's TTS API
type Cartesia struct {
	cfg     CartesiaConfig
	fetcher httpFetcher
	logger  zerolog.Logger
}

// CartesiaRequest represents the request payload for Cartesia TTS API
type CartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        CartesiaVoice        `json:"voice"`
	OutputFormat CartesiaOutputFormat `json:"output_format"`
	Language     string               `json:"language,omitempty"`
}

// CartesiaVoice selects a voice by ID.
type CartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// CartesiaOutputFormat requests an MP3 container.
type CartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate"`
}

// NewCartesia creates a new Cartesia TTS provider
func NewCartesia(cfg CartesiaConfig) (*Cartesia, error) {
	if cfg.APIKey == "" {
		return nil, WrapError(providerCartesia, ErrNoAPIKey)
	}
	if cfg.VoiceID == "" {
		return nil, WrapError(providerCartesia, fmt.Errorf("voice ID required"))
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "sonic-english"
	}
	if cfg.URL == "" {
		cfg.URL = cartesiaTTSURL
	}

	return &Cartesia{
		cfg:     cfg,
		fetcher: newHTTPFetcher(providerCartesia, cfg.HTTPClient, cfg.Retry),
		logger:  observability.Component("tts.cartesia"),
	}, nil
}

// Synthesize converts text to MP3.
func (c *Cartesia) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerCartesia, ErrEmptyText)
	}

	jsonData, err := json.Marshal(CartesiaRequest{
		ModelID:    c.cfg.ModelID,
		Transcript: text,
		Voice:      CartesiaVoice{Mode: "id", ID: c.cfg.VoiceID},
		OutputFormat: CartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: MP3.SampleRate,
			BitRate:    128000,
		},
		Language: c.cfg.Language,
	})
	if err != nil {
		return nil, WrapError(providerCartesia, fmt.Errorf("failed to marshal request: %w", err))
	}

	data, err := c.fetcher.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(jsonData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.cfg.APIKey)
		req.Header.Set("Cartesia-Version", cartesiaVersion)
		return req, nil
	})
	if err != nil {
		recordFailure(providerCartesia, start)
		return nil, err
	}

	c.logger.Debug().
		Int("chars", len(text)).
		Int("bytes", len(data)).
		Str("voice_id", c.cfg.VoiceID).
		Dur("latency", time.Since(start)).
		Msg("Synthesized audio")

	return newResult(providerCartesia, text, data, MP3, start), nil
}

// Health checks that a key is configured.
func (c *Cartesia) Health(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return WrapError(providerCartesia, ErrNoAPIKey)
	}
	return nil
}

// Close closes the client and cleans up resources
func (c *Cartesia) Close() error {
	c.fetcher.close()
	return nil
}

// Name returns "cartesia".
func (c *Cartesia) Name() string {
	return providerCartesia
}

var _ Provider = (*Cartesia)(nil)
