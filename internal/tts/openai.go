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
	providerOpenAI = "openai"
	openAITTSURL   = "https://api.openai.com/v1/audio/speech"
)

// OpenAIConfig configures the OpenAI speech provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // tts-1, tts-1-hd
	Voice      string // alloy, echo, fable, onyx, nova, shimmer
	URL        string
	HTTPClient *http.Client
	Retry      *resilience.RetryConfig
}

// OpenAI implements Provider for OpenAI TTS
type OpenAI struct {
	cfg     OpenAIConfig
	fetcher httpFetcher
	logger  zerolog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	if cfg.URL == "" {
		cfg.URL = openAITTSURL
	}

	return &OpenAI{
		cfg:     cfg,
		fetcher: newHTTPFetcher(providerOpenAI, cfg.HTTPClient, cfg.Retry),
		logger:  observability.Component("tts.openai"),
	}, nil
}

type openAIRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize converts text to MP3.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}

	body, err := json.Marshal(openAIRequest{
		Model:          o.cfg.Model,
		Voice:          o.cfg.Voice,
		Input:          text,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	data, err := o.fetcher.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		recordFailure(providerOpenAI, start)
		return nil, err
	}

	o.logger.Debug().
		Int("chars", len(text)).
		Int("bytes", len(data)).
		Str("voice", o.cfg.Voice).
		Dur("latency", time.Since(start)).
		Msg("Synthesized audio")

	return newResult(providerOpenAI, text, data, MP3, start), nil
}

// Health checks that a key is configured.
func (o *OpenAI) Health(ctx context.Context) error {
	if o.cfg.APIKey == "" {
		return WrapError(providerOpenAI, ErrNoAPIKey)
	}
	return nil
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.fetcher.close()
	return nil
}

// Name returns "openai".
func (o *OpenAI) Name() string {
	return providerOpenAI
}

var _ Provider = (*OpenAI)(nil)
