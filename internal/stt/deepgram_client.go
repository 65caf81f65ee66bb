package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicebot/internal/audio"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/resilience"
)

// chunkBytes is how much PCM is written per websocket frame (100ms at 16kHz).
const chunkBytes = 3200

// DeepgramConfig configures the Deepgram transcriber.
type DeepgramConfig struct {
	APIKey      string
	Model       string
	Language    string
	IdleTimeout time.Duration // wait after the last transcript before giving up on more
	Timeout     time.Duration // overall bound for one utterance
	Reconnect   *resilience.ReconnectConfig
	Breaker     *resilience.CircuitBreaker // optional
}

// session is the part of a live Deepgram connection the transcriber uses.
type session interface {
	Write(p []byte) (int, error)
	Finish()
}

type dialFunc func(ctx context.Context, sampleRate int, c *collector) (session, error)

// DeepgramClient implements Transcriber with one Deepgram live session per utterance.
type DeepgramClient struct {
	cfg    DeepgramConfig
	dial   dialFunc
	logger zerolog.Logger
}

// NewDeepgramClient creates a Deepgram transcriber.
func NewDeepgramClient(cfg DeepgramConfig) (*DeepgramClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 1500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Breaker != nil {
		name := cfg.Breaker.Name()
		cfg.Breaker.OnStateChange = func(_ string, state resilience.CircuitState) {
			observability.UpdateCircuitBreakerState(name, int(state))
		}
	}

	d := &DeepgramClient{cfg: cfg, logger: observability.Component("stt.deepgram")}
	d.dial = d.dialLive
	return d, nil
}

// Transcribe streams the utterance and joins the final transcripts.
func (d *DeepgramClient) Transcribe(ctx context.Context, utt *audio.Utterance) (string, error) {
	if utt == nil || len(utt.PCM) == 0 {
		return "", ErrUnintelligible
	}

	caller := ctx
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if d.cfg.Breaker != nil && !d.cfg.Breaker.Allow() {
		return "", fmt.Errorf("deepgram: %w", resilience.ErrCircuitOpen)
	}

	col := newCollector()
	var sess session
	err := resilience.Reconnect(ctx, "deepgram", func(ctx context.Context) error {
		s, err := d.dial(ctx, utt.SampleRate, col)
		if err != nil {
			return err
		}
		sess = s
		return nil
	}, d.cfg.Reconnect)
	d.recordResult(caller, err)
	if err != nil {
		return "", fmt.Errorf("deepgram session: %w", err)
	}
	defer sess.Finish()

	for off := 0; off < len(utt.PCM); off += chunkBytes {
		end := min(off+chunkBytes, len(utt.PCM))
		if _, err := sess.Write(utt.PCM[off:end]); err != nil {
			return "", fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
	}

	text, err := col.wait(ctx, d.cfg.IdleTimeout)
	if err != nil {
		return "", err
	}

	d.logger.Debug().
		Str("transcript", text).
		Dur("audio", utt.Duration).
		Msg("Deepgram final transcription")
	return text, nil
}

func (d *DeepgramClient) recordResult(caller context.Context, err error) {
	if d.cfg.Breaker == nil {
		return
	}
	d.cfg.Breaker.Finish(caller, err)
	if err != nil && !resilience.Abandoned(caller, err) {
		observability.IncrementCircuitBreakerFailures(d.cfg.Breaker.Name())
	}
}

// dialLive opens a Deepgram websocket for linear16 mono audio.
func (d *DeepgramClient) dialLive(ctx context.Context, sampleRate int, c *collector) (session, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       d.cfg.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,   // required for UtteranceEnd events
		UtteranceEndMs: "1000", // string in v3
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     sampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		collector:              c,
		logger:                 d.logger,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.cfg.APIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, errors.New("failed to connect to Deepgram")
	}

	d.logger.Debug().Str("model", d.cfg.Model).Str("language", d.cfg.Language).Msg("Deepgram session opened")
	return client, nil
}

// Health reports whether sessions can currently be opened.
func (d *DeepgramClient) Health(ctx context.Context) (bool, error) {
	if d.cfg.Breaker != nil && d.cfg.Breaker.GetState() == resilience.StateOpen {
		return false, resilience.ErrCircuitOpen
	}
	return true, nil
}

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	collector *collector
	logger    zerolog.Logger
}

// Message forwards transcript results to the collector
func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return nil
	}

	alt := msg.Channel.Alternatives[0]
	m.collector.add(TranscriptionResult{
		Text:       alt.Transcript,
		IsFinal:    msg.IsFinal,
		Confidence: alt.Confidence,
		StartTime:  msg.Start,
		Duration:   msg.Duration,
	})
	return nil
}

// UtteranceEnd marks the transcript complete
func (m *messageCallbackHandler) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	m.collector.finish()
	return nil
}

// Close marks the transcript complete when the server hangs up
func (m *messageCallbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	m.collector.finish()
	return nil
}

// Error records a recognition-service failure
func (m *messageCallbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	m.logger.Warn().Interface("error", er).Msg("Deepgram error")
	m.collector.fail(fmt.Errorf("deepgram error: %+v", er))
	return nil
}

// collector gathers transcript events for one utterance.
type collector struct {
	mu      sync.Mutex
	finals  []string
	err     error
	events  chan struct{} // signalled on every final transcript
	done    chan struct{}
	closeMu sync.Once
}

func newCollector() *collector {
	return &collector{
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (c *collector) add(r TranscriptionResult) {
	text := strings.TrimSpace(r.Text)
	if !r.IsFinal || text == "" {
		return
	}
	c.mu.Lock()
	c.finals = append(c.finals, text)
	c.mu.Unlock()

	select {
	case c.events <- struct{}{}:
	default:
	}
}

func (c *collector) finish() {
	c.closeMu.Do(func() { close(c.done) })
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.finish()
}

// wait returns the joined transcript once the service signals the end of the
// utterance, no transcript arrives for idle, or ctx ends.
func (c *collector) wait(ctx context.Context, idle time.Duration) (string, error) {
	timer := time.NewTimer(idle)
	defer timer.Stop()

loop:
	for {
		select {
		case <-c.done:
			break loop
		case <-timer.C:
			break loop
		case <-ctx.Done():
			break loop
		case <-c.events:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return "", c.err
	}
	if len(c.finals) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", ErrUnintelligible
	}
	return strings.Join(c.finals, " "), nil
}

var _ Transcriber = (*DeepgramClient)(nil)
