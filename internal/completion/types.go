package completion

import (
	"errors"
	"fmt"
	"time"
)

// FallbackText is the reply substituted whenever the completion service cannot answer.
const FallbackText = "I apologize, but I encountered an error while processing your request."

// Status tells a genuine reply apart from the fallback.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Result is the outcome of one completion. Text is never empty.
type Result struct {
	Text   string
	Status Status
	Err    error // Cause of a degraded result, nil when Status is StatusOK
}

// Degraded reports whether Text is the fallback.
func (r Result) Degraded() bool {
	return r.Status == StatusDegraded
}

func fallback(err error) Result {
	return Result{Text: FallbackText, Status: StatusDegraded, Err: err}
}

// Options are the per-surface request settings.
type Options struct {
	Timeout     time.Duration
	Temperature *float64 // omitted from the request when nil
	MaxTokens   int      // omitted from the request when zero
}

// WebOptions returns the short-budget settings used behind the web endpoint.
func WebOptions(timeout time.Duration, temperature float64, maxTokens int) Options {
	return Options{Timeout: timeout, Temperature: &temperature, MaxTokens: maxTokens}
}

// VoiceOptions returns the settings used by the voice loop.
func VoiceOptions(timeout time.Duration) Options {
	return Options{Timeout: timeout}
}

// ErrNoAPIKey means no credentials were configured; the remote service is never contacted.
var ErrNoAPIKey = errors.New("completion API key not configured")

// ErrEmptyReply means the service answered 200 without a usable choice.
var ErrEmptyReply = errors.New("completion response has no content")

// StatusError is a non-200 answer from the completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion API error %d: %s", e.StatusCode, e.Body)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}
