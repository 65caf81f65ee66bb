package tts

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/resilience"
	"github.com/rs/zerolog"
)

const (
	providerGoogle = "gtts"
	googleTTSURL   = "https://translate.google.com/translate_tts"

	// googleMaxChars is the longest text the endpoint accepts per request.
	googleMaxChars = 100
)

// GoogleConfig configures the Google Translate voice.
type GoogleConfig struct {
	URL        string
	Language   string // e.g. "en"
	Slow       bool
	HTTPClient *http.Client
	Retry      *resilience.RetryConfig
}

// GoogleTranslate implements Provider with the Google Translate voice.
// It needs no credentials. Long text is split into parts that are fetched in
// order and concatenated; MP3 frames concatenate cleanly.
type GoogleTranslate struct {
	cfg     GoogleConfig
	fetcher httpFetcher
	logger  zerolog.Logger
}

// NewGoogleTranslate creates the Google Translate provider.
func NewGoogleTranslate(cfg GoogleConfig) *GoogleTranslate {
	if cfg.URL == "" {
		cfg.URL = googleTTSURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &GoogleTranslate{
		cfg:     cfg,
		fetcher: newHTTPFetcher(providerGoogle, cfg.HTTPClient, cfg.Retry),
		logger:  observability.Component("tts.gtts"),
	}
}

// Synthesize converts text to MP3.
func (g *GoogleTranslate) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	parts := splitText(text, googleMaxChars)
	if len(parts) == 0 {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}

	var buf bytes.Buffer
	for i, part := range parts {
		data, err := g.fetcher.fetch(ctx, func(ctx context.Context) (*http.Request, error) {
			return g.newRequest(ctx, part, i, len(parts))
		})
		if err != nil {
			recordFailure(providerGoogle, start)
			return nil, err
		}
		buf.Write(data)
	}

	g.logger.Debug().
		Int("chars", len(text)).
		Int("parts", len(parts)).
		Int("bytes", buf.Len()).
		Dur("latency", time.Since(start)).
		Msg("Synthesized audio")

	return newResult(providerGoogle, text, buf.Bytes(), AudioFormat{
		Encoding:   EncodingMP3Voice,
		SampleRate: 24000,
		Channels:   1,
	}, start), nil
}

func (g *GoogleTranslate) newRequest(ctx context.Context, part string, idx, total int) (*http.Request, error) {
	speed := "1"
	if g.cfg.Slow {
		speed = "0.3"
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", part)
	q.Set("tl", g.cfg.Language)
	q.Set("client", "tw-ob")
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(part)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://translate.google.com/")
	return req, nil
}

// Health reports healthy; the endpoint needs no credentials.
func (g *GoogleTranslate) Health(ctx context.Context) error {
	return nil
}

// Close releases idle connections.
func (g *GoogleTranslate) Close() error {
	g.fetcher.close()
	return nil
}

// Name returns "gtts".
func (g *GoogleTranslate) Name() string {
	return providerGoogle
}

// splitText breaks text on whitespace into parts of at most max runes.
// Words longer than max are cut.
func splitText(text string, max int) []string {
	var parts []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > max {
			flush()
			runes := []rune(word)
			parts = append(parts, string(runes[:max]))
			word = string(runes[max:])
		}

		n := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+n > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += n
	}
	flush()

	return parts
}

var _ Provider = (*GoogleTranslate)(nil)
