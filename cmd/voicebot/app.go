package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicebot/internal/cache"
	"github.com/lexiqai/voicebot/internal/completion"
	"github.com/lexiqai/voicebot/internal/config"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/persona"
	"github.com/lexiqai/voicebot/internal/pipeline"
	"github.com/lexiqai/voicebot/internal/resilience"
	"github.com/lexiqai/voicebot/internal/tts"
)

// app holds what both surfaces share: configuration, the completion client,
// the synthesizer and the response caches.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	completer  *completion.Client
	synth      tts.Provider
	replies    *cache.Memo[completion.Result]
	recordings *cache.Memo[*tts.AudioResult]
	breakers   []*resilience.CircuitBreaker
}

// loadApp reads configuration, starts logging and builds the shared components.
// options picks the surface's completion budget.
func loadApp(surface string, options func(*config.Config) completion.Options) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	p, err := persona.Select(cfg.Persona, cfg.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("select persona: %w", err)
	}

	if cfg.CompletionAPIKey == "" {
		logger.Warn().Msg("OPENROUTER_API_KEY not set; every reply will be the fallback")
	}

	breaker := newBreaker(cfg, "completion")
	completer := completion.NewClient(completion.Config{
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
		URL:     cfg.CompletionURL,
		Referer: cfg.CompletionReferer,
		Title:   cfg.CompletionTitle,
		Persona: p,
		Options: options(cfg),
		Breaker: breaker,
	})

	synth, err := tts.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	replies, recordings, err := pipeline.NewCaches(cfg.CacheSize, cfg.AudioCacheSize)
	if err != nil {
		synth.Close()
		return nil, err
	}

	logger.Info().
		Str("surface", surface).
		Str("model", cfg.CompletionModel).
		Str("persona", p.Name).
		Bool("completion_key_set", cfg.CompletionAPIKey != "").
		Str("tts", synth.Name()).
		Int("cache_size", cfg.CacheSize).
		Int("audio_cache_size", cfg.AudioCacheSize).
		Str("log_level", cfg.LogLevel).
		Msg("Voicebot starting")

	return &app{
		cfg:        cfg,
		logger:     logger,
		completer:  completer,
		synth:      synth,
		replies:    replies,
		recordings: recordings,
		breakers:   []*resilience.CircuitBreaker{breaker},
	}, nil
}

func newBreaker(cfg *config.Config, name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(
		name,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
}

// breaker creates a breaker whose counters are reported at shutdown.
func (a *app) breaker(name string) *resilience.CircuitBreaker {
	cb := newBreaker(a.cfg, name)
	a.breakers = append(a.breakers, cb)
	return cb
}

// checks are the readiness checks shared by /ready and the gRPC health service.
func (a *app) checks() map[string]observability.HealthCheckFunc {
	return map[string]observability.HealthCheckFunc{
		"completion": a.completer.Health,
		"tts": func(ctx context.Context) (bool, error) {
			if err := a.synth.Health(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}
}

// startGRPCHealth serves the gRPC health protocol when GRPC_HEALTH_PORT is set.
// The returned stop func is always safe to call.
func (a *app) startGRPCHealth(checks map[string]observability.HealthCheckFunc) (func(), error) {
	if a.cfg.GRPCHealthPort == "" {
		return func() {}, nil
	}

	lis, err := net.Listen("tcp", ":"+a.cfg.GRPCHealthPort)
	if err != nil {
		return nil, fmt.Errorf("listen for gRPC health on %s: %w", a.cfg.GRPCHealthPort, err)
	}

	hs := observability.NewGRPCHealthServer(checks, 10*time.Second)
	go func() {
		if err := hs.Serve(lis); err != nil {
			a.logger.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()
	a.logger.Info().Str("port", a.cfg.GRPCHealthPort).Msg("gRPC health service enabled")
	return hs.Stop, nil
}

func (a *app) close() {
	a.logStats()
	if err := a.synth.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Error closing TTS provider")
	}
}

// logStats reports cache effectiveness and dependency failure rates for the session.
func (a *app) logStats() {
	for _, m := range []interface {
		Name() string
		Stats() cache.Stats
	}{a.replies, a.recordings} {
		st := m.Stats()
		a.logger.Info().
			Str("cache", m.Name()).
			Int("entries", st.Entries).
			Int64("hits", st.Hits).
			Int64("misses", st.Misses).
			Int64("evictions", st.Evictions).
			Msg("Cache stats")
	}
	for _, cb := range a.breakers {
		state, requests, failures, rate := cb.GetStats()
		a.logger.Info().
			Str("breaker", cb.Name()).
			Str("state", state.String()).
			Int64("requests", requests).
			Int64("failures", failures).
			Float64("failure_rate", rate).
			Msg("Circuit breaker stats")
	}
}
