// Package synthesis runs speech synthesis jobs for the pipeline.
package synthesis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lexiqai/voicebot/internal/observability"
	"github.com/lexiqai/voicebot/internal/tts"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("synthesis pool closed")

// Scheduler runs one synthesis and returns its result.
type Scheduler interface {
	Run(ctx context.Context, text string) (*tts.AudioResult, error)
}

// Inline synthesizes on the caller's goroutine.
type Inline struct {
	Provider tts.Provider
}

// Run calls the provider directly.
func (s Inline) Run(ctx context.Context, text string) (*tts.AudioResult, error) {
	return s.Provider.Synthesize(ctx, text)
}

type job struct {
	ctx      context.Context
	text     string
	enqueued time.Time
	done     chan result
}

type result struct {
	audio *tts.AudioResult
	err   error
}

// Pool runs synthesis on a fixed number of workers. Callers block until a
// worker takes their job and finishes it; extra jobs wait, none are rejected.
type Pool struct {
	provider tts.Provider
	jobs     chan job
	quit     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	logger   zerolog.Logger
}

// NewPool starts workers goroutines.
func NewPool(provider tts.Provider, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		provider: provider,
		jobs:     make(chan job),
		quit:     make(chan struct{}),
		logger:   observability.Component("synthesis"),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}

	p.logger.Info().Int("workers", workers).Str("provider", provider.Name()).Msg("Synthesis pool started")
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case j := <-p.jobs:
			observability.SynthesisStarted(time.Since(j.enqueued))
			audio, err := p.provider.Synthesize(j.ctx, j.text)
			observability.SynthesisFinished()

			if err != nil {
				p.logger.Debug().Err(err).Int("worker", id).Msg("Synthesis job failed")
			}
			// done is buffered so a caller that gave up never blocks the worker
			j.done <- result{audio: audio, err: err}
		}
	}
}

// Run submits text and waits for its audio.
func (p *Pool) Run(ctx context.Context, text string) (*tts.AudioResult, error) {
	j := job{ctx: ctx, text: text, enqueued: time.Now(), done: make(chan result, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrClosed
	}

	select {
	case r := <-j.done:
		return r.audio, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the workers after their current jobs finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.wg.Wait()
		p.logger.Info().Msg("Synthesis pool stopped")
	})
}

var (
	_ Scheduler = Inline{}
	_ Scheduler = (*Pool)(nil)
)
