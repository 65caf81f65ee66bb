package tts

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/config"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/resilience"
)

// NewFromConfig builds the providers named in TTS_PROVIDERS, in order, as one
// bounded Provider. Providers that lack credentials are skipped with a warning.
func NewFromConfig(cfg *config.Config) (Provider, error) {
	logger := observability.Component("tts")
	httpClient := &http.Client{}
	retry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	var providers []Provider
	for _, name := range strings.Split(cfg.TTSProviders, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		var (
			p   Provider
			err error
		)
		switch name {
		case providerGoogle:
			p = NewGoogleTranslate(GoogleConfig{
				URL:        cfg.GTTSURL,
				Language:   cfg.TTSLanguage,
				Slow:       cfg.TTSSlow,
				HTTPClient: httpClient,
				Retry:      retry,
			})
		case providerOpenAI:
			p, err = NewOpenAI(OpenAIConfig{
				APIKey:     cfg.OpenAIAPIKey,
				Model:      cfg.OpenAITTSModel,
				Voice:      cfg.OpenAITTSVoice,
				HTTPClient: httpClient,
				Retry:      retry,
			})
		case providerCartesia:
			p, err = NewCartesia(CartesiaConfig{
				APIKey:     cfg.CartesiaAPIKey,
				VoiceID:    cfg.CartesiaVoiceID,
				ModelID:    cfg.CartesiaModelID,
				Language:   cfg.TTSLanguage,
				HTTPClient: httpClient,
				Retry:      retry,
			})
		default:
			return nil, fmt.Errorf("unknown TTS provider %q", name)
		}
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("Skipping TTS provider")
			continue
		}
		providers = append(providers, p)
	}

	chain, err := NewChain(providers...)
	if err != nil {
		return nil, fmt.Errorf("TTS_PROVIDERS=%q: %w", cfg.TTSProviders, err)
	}

	logger.Info().
		Str("providers", chain.Name()).
		Dur("timeout", cfg.SynthesisBudget()).
		Msg("TTS providers configured")

	return WithTimeout(chain, cfg.SynthesisBudget()), nil
}
