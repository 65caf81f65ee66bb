package synthesis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lexiqai/voicebot/internal/tts"
)

// gate is a synthesizer that blocks until released and tracks peak concurrency.
type gate struct {
	release chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
	entered chan struct{}
}

func newGate() *gate {
	return &gate{release: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (g *gate) mock() *tts.Mock {
	return &tts.Mock{SynthesizeFunc: func(ctx context.Context, text string) (*tts.AudioResult, error) {
		n := g.active.Add(1)
		for {
			p := g.peak.Load()
			if n <= p || g.peak.CompareAndSwap(p, n) {
				break
			}
		}
		g.entered <- struct{}{}
		<-g.release
		g.active.Add(-1)
		return tts.FakeAudio(text), nil
	}}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	g := newGate()
	pool := NewPool(g.mock(), 3)
	defer pool.Close()

	const jobs = 5
	var wg sync.WaitGroup
	var finished atomic.Int32
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Run(context.Background(), "hello"); err != nil {
				t.Errorf("Run failed: %v", err)
			}
			finished.Add(1)
		}()
	}

	for i := 0; i < 3; i++ {
		<-g.entered
	}
	// Give a 4th job the chance to (wrongly) start.
	time.Sleep(50 * time.Millisecond)
	if got := g.active.Load(); got != 3 {
		t.Errorf("Expected 3 active syntheses, got %d", got)
	}
	if finished.Load() != 0 {
		t.Error("Expected all callers to still be waiting")
	}

	close(g.release)
	wg.Wait()

	if peak := g.peak.Load(); peak > 3 {
		t.Errorf("Expected at most 3 concurrent syntheses, peak was %d", peak)
	}
	if finished.Load() != jobs {
		t.Errorf("Expected all %d jobs to finish, got %d", jobs, finished.Load())
	}
}

func TestPool_ReturnsProviderError(t *testing.T) {
	boom := errors.New("engine down")
	pool := NewPool(tts.WithError(boom), 1)
	defer pool.Close()

	if _, err := pool.Run(context.Background(), "hi"); !errors.Is(err, boom) {
		t.Errorf("Expected provider error, got %v", err)
	}
}

func TestPool_QueuedJobHonorsContext(t *testing.T) {
	g := newGate()
	pool := NewPool(g.mock(), 1)
	defer pool.Close()
	defer close(g.release)

	go pool.Run(context.Background(), "first")
	<-g.entered

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := pool.Run(ctx, "second"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while queued, got %v", err)
	}
}

func TestPool_RunAfterClose(t *testing.T) {
	pool := NewPool(tts.NewMock(), 2)
	pool.Close()
	pool.Close()

	if _, err := pool.Run(context.Background(), "hi"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestInline(t *testing.T) {
	mock := tts.NewMock()
	audio, err := Inline{Provider: mock}.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(audio.Audio) != string(tts.FakeAudio("hi").Audio) {
		t.Errorf("Unexpected audio %q", audio.Audio)
	}
	if mock.CallCount("Synthesize") != 1 {
		t.Error("Expected one synthesis call")
	}
}
