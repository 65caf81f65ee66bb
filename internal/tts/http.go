package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/voicebot/internal/audio"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/resilience"
)

// httpFetcher performs one provider request with retries on transient failures.
type httpFetcher struct {
	provider string
	client   *http.Client
	retry    *resilience.RetryConfig
}

func newHTTPFetcher(provider string, client *http.Client, retry *resilience.RetryConfig) httpFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return httpFetcher{provider: provider, client: client, retry: retry}
}

// fetch builds a fresh request per attempt and returns the response body.
func (f httpFetcher) fetch(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var body []byte

	err := resilience.Retry(ctx, func(ctx context.Context) error {
		req, err := newRequest(ctx)
		if err != nil {
			return WrapError(f.provider, err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return WrapError(f.provider, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return parseAPIError(f.provider, resp)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return WrapError(f.provider, err)
		}
		if len(data) == 0 {
			return WrapError(f.provider, ErrEmptyAudio)
		}
		body = data
		return nil
	}, f.retry, isRetryable)

	return body, err
}

func (f httpFetcher) close() {
	f.client.CloseIdleConnections()
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return resilience.IsRetryableNetworkError(err)
}

// parseAPIError extracts a message from the common JSON error shapes.
func parseAPIError(provider string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		var nested struct {
			Message string `json:"message"`
		}
		var flat string
		switch {
		case json.Unmarshal(body.Error, &nested) == nil && nested.Message != "":
			msg = nested.Message
		case json.Unmarshal(body.Error, &flat) == nil && flat != "":
			msg = flat
		case body.Message != "":
			msg = body.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}

// newResult fills in the derived fields and records the call.
func newResult(provider, text string, data []byte, format AudioFormat, start time.Time) *AudioResult {
	latency := time.Since(start)
	observability.RecordTTS(provider, true, latency)

	return &AudioResult{
		Audio:     data,
		Format:    format,
		Duration:  audio.EstimateDuration(data, text, fallbackCharDuration),
		CharCount: len(text),
		LatencyMs: latency.Milliseconds(),
		Provider:  provider,
	}
}

func recordFailure(provider string, start time.Time) {
	observability.RecordTTS(provider, false, time.Since(start))
}
