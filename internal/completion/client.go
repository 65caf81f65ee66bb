// Package completion talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default). Complete never fails: on any error it returns the
// fallback reply marked as degraded.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/persona"
	"github.com/lexiqai/voicebot/internal/resilience"
	"github.com/rs/zerolog"
)

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	URL     string
	Referer string // sent as HTTP-Referer
	Title   string // sent as X-Title
	Persona persona.Persona
	Options Options

	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker // optional
}

// Client sends one utterance plus the persona to the completion service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a completion client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Breaker != nil {
		name := cfg.Breaker.Name()
		cfg.Breaker.OnStateChange = func(_ string, state resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(state))
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    cfg.Breaker,
		logger:     observability.Component("completion"),
	}
}

// Complete returns the model's reply to utterance, or the fallback.
func (c *Client) Complete(ctx context.Context, utterance string) Result {
	start := time.Now()

	result := c.complete(ctx, utterance)

	observability.RecordCompletion(!result.Degraded(), time.Since(start))
	if result.Degraded() {
		observability.RecordError("completion_fallback", "completion")
		c.logger.Warn().
			Err(result.Err).
			Str("model", c.cfg.Model).
			Bool("timeout", IsTimeout(result)).
			Dur("latency", time.Since(start)).
			Msg("Completion failed, using fallback reply")
	} else {
		c.logger.Debug().
			Str("model", c.cfg.Model).
			Int("reply_chars", len(result.Text)).
			Dur("latency", time.Since(start)).
			Msg("Completion succeeded")
	}
	return result
}

func (c *Client) complete(ctx context.Context, utterance string) Result {
	if c.cfg.APIKey == "" {
		return fallback(ErrNoAPIKey)
	}

	text, err := c.call(ctx, utterance)
	if err != nil {
		return fallback(err)
	}
	return Result{Text: text, Status: StatusOK}
}

// call sends through the breaker. Requests the caller abandons do not count
// against the service.
func (c *Client) call(ctx context.Context, utterance string) (string, error) {
	if c.breaker == nil {
		return c.send(ctx, utterance)
	}

	var text string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		text, err = c.send(ctx, utterance)
		return err
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) && !resilience.Abandoned(ctx, err) {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
	}
	return text, err
}

func (c *Client) send(ctx context.Context, utterance string) (string, error) {
	if c.cfg.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Options.Timeout)
		defer cancel()
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: c.cfg.Persona.Prompt},
			{Role: "user", Content: utterance},
		},
		Temperature: c.cfg.Options.Temperature,
		MaxTokens:   c.cfg.Options.MaxTokens,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", ErrEmptyReply
	}

	return parsed.Choices[0].Message.Content, nil
}

// Health reports whether completions can currently succeed.
func (c *Client) Health(ctx context.Context) (bool, error) {
	if c.cfg.APIKey == "" {
		return false, ErrNoAPIKey
	}
	if c.breaker != nil && c.breaker.GetState() == resilience.StateOpen {
		return false, resilience.ErrCircuitOpen
	}
	return true, nil
}

// IsTimeout reports whether a degraded result was caused by the request deadline.
func IsTimeout(r Result) bool {
	return errors.Is(r.Err, context.DeadlineExceeded)
}
