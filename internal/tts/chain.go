package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/rs/zerolog"
)

// Chain implements Provider by trying multiple providers in order.
// The first successful provider wins; if all fail, returns a *ChainError.
type Chain struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewChain creates a provider chain that tries providers in order.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}

	return &Chain{
		providers: providers,
		logger:    observability.Component("tts.chain"),
	}, nil
}

// Synthesize tries each provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for i, p := range c.providers {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info().
					Str("provider", p.Name()).
					Int("provider_index", i).
					Msg("Fallback provider succeeded")
			}
			return result, nil
		}

		errs = append(errs, err)
		c.logger.Warn().
			Err(err).
			Str("provider", p.Name()).
			Int("provider_index", i).
			Msg("Provider failed, trying next")

		if ctx.Err() != nil {
			return nil, fmt.Errorf("tts chain: %w", ctx.Err())
		}
	}

	return nil, &ChainError{Errors: errs}
}

// Health returns an error only if every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	for _, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Name joins the provider names, e.g. "gtts>openai".
func (c *Chain) Name() string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// Bounded caps every Synthesize call at a fixed deadline.
type Bounded struct {
	Provider
	timeout time.Duration
}

// WithTimeout wraps p so no synthesis outlives timeout.
func WithTimeout(p Provider, timeout time.Duration) *Bounded {
	return &Bounded{Provider: p, timeout: timeout}
}

// Synthesize runs the wrapped provider under the deadline.
func (b *Bounded) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if b.timeout <= 0 {
		return b.Provider.Synthesize(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Provider.Synthesize(ctx, text)
}

var (
	_ Provider = (*Chain)(nil)
	_ Provider = (*Bounded)(nil)
)
