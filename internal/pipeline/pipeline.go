// Package pipeline turns an utterance into a spoken reply:
// cached completion, then cached synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiqai/voicebot/internal/cache"
	"github.com/lexiqai/voicebot/internal/completion"
	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/synthesis"
	"github.com/lexiqai/voicebot/internal/tts"
)

var (
	// ErrEmptyUtterance is returned before any work for a blank utterance.
	ErrEmptyUtterance = errors.New("empty utterance")

	// ErrSynthesis wraps every synthesis failure; there is no audio fallback.
	ErrSynthesis = errors.New("speech synthesis failed")
)

// State is a turn's position in the pipeline.
type State string

const (
	StateReceived     State = "received"
	StateCompleting   State = "completing"
	StateSynthesizing State = "synthesizing"
	StateDone         State = "done"
)

// Completer produces reply text. It never fails; failures come back degraded.
type Completer interface {
	Complete(ctx context.Context, utterance string) completion.Result
}

// Reply is the outcome of one turn.
type Reply struct {
	TurnID      string
	Text        string
	Status      completion.Status
	Audio       *tts.AudioResult
	TextCached  bool
	AudioCached bool
}

// Pipeline holds the process-wide caches and scheduler shared by all turns.
type Pipeline struct {
	completer  Completer
	scheduler  synthesis.Scheduler
	replies    *cache.Memo[completion.Result]
	recordings *cache.Memo[*tts.AudioResult]
}

// New wires a pipeline. The caches may be shared between pipelines.
func New(completer Completer, scheduler synthesis.Scheduler, replies *cache.Memo[completion.Result], recordings *cache.Memo[*tts.AudioResult]) *Pipeline {
	return &Pipeline{
		completer:  completer,
		scheduler:  scheduler,
		replies:    replies,
		recordings: recordings,
	}
}

// NewCaches creates the reply and audio caches with the configured sizes.
func NewCaches(replySize, audioSize int) (*cache.Memo[completion.Result], *cache.Memo[*tts.AudioResult], error) {
	replies, err := cache.New[completion.Result]("completion", replySize)
	if err != nil {
		return nil, nil, err
	}
	recordings, err := cache.New[*tts.AudioResult]("audio", audioSize)
	if err != nil {
		return nil, nil, err
	}
	return replies, recordings, nil
}

// Process runs one turn. Completion failures never surface as errors; the
// reply carries the fallback text with a degraded status. Synthesis failures
// are returned wrapped in ErrSynthesis.
func (p *Pipeline) Process(ctx context.Context, utterance string) (*Reply, error) {
	if utterance == "" {
		return nil, ErrEmptyUtterance
	}

	reply := &Reply{TurnID: observability.NewCorrelationID()}
	logger := observability.WithCorrelationID(reply.TurnID)
	start := time.Now()

	logger.Debug().Str("state", string(StateReceived)).Int("chars", len(utterance)).Msg("Turn received")

	// Degraded results are handed back but not stored.
	logger.Debug().Str("state", string(StateCompleting)).Msg("Turn state")
	result, hit, err := p.replies.Resolve(ctx, utterance, func(ctx context.Context) (completion.Result, bool, error) {
		r := p.completer.Complete(ctx, utterance)
		return r, !r.Degraded(), nil
	})
	if err != nil {
		// Only the caller's ctx can end a wait on a completion.
		result = completion.Result{Text: completion.FallbackText, Status: completion.StatusDegraded, Err: err}
	}
	reply.Text = result.Text
	reply.Status = result.Status
	reply.TextCached = hit

	logger.Debug().Str("state", string(StateSynthesizing)).Bool("text_cached", hit).Msg("Turn state")
	audio, hit, err := p.recordings.Resolve(ctx, reply.Text, func(ctx context.Context) (*tts.AudioResult, bool, error) {
		a, err := p.scheduler.Run(ctx, reply.Text)
		return a, err == nil, err
	})
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Synthesis failed")
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	reply.Audio = audio
	reply.AudioCached = hit

	logger.Info().
		Str("state", string(StateDone)).
		Str("status", string(reply.Status)).
		Bool("text_cached", reply.TextCached).
		Bool("audio_cached", reply.AudioCached).
		Dur("elapsed", time.Since(start)).
		Msg("Turn complete")

	return reply, nil
}
