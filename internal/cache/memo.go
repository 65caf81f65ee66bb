// Package cache memoizes pipeline stages by exact input text.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lexiqai/voicebot/internal/observability"
)

// FillFunc produces the value for a missing key. cacheable=false returns the
// value to every waiting caller without storing it.
type FillFunc[V any] func(ctx context.Context) (value V, cacheable bool, err error)

// Stats is a point-in-time view of a memo.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Memo is a size-bounded LRU map from input text to a stage result.
// Concurrent misses for the same key share one fill.
type Memo[V any] struct {
	name  string
	items *lru.Cache[string, V]
	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a memo holding at most size entries.
func New[V any](name string, size int) (*Memo[V], error) {
	m := &Memo[V]{name: name}
	items, err := lru.NewWithEvict[string, V](size, func(string, V) {
		m.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	m.items = items
	return m, nil
}

// Lookup returns the cached value for key and marks it recently used.
func (m *Memo[V]) Lookup(key string) (V, bool) {
	v, ok := m.items.Get(key)
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	observability.RecordCacheLookup(m.name, ok)
	return v, ok
}

// Store inserts or replaces key, evicting the least recently used entry when full.
func (m *Memo[V]) Store(key string, value V) {
	m.items.Add(key, value)
}

// Resolve returns the cached value for key, or runs fill once for all concurrent
// callers asking for the same key. hit reports whether the cache answered.
// The shared fill keeps the starting caller's values but not its cancellation,
// so one caller giving up never fails the others; each caller still stops
// waiting when its own ctx is done.
func (m *Memo[V]) Resolve(ctx context.Context, key string, fill FillFunc[V]) (value V, hit bool, err error) {
	if v, ok := m.Lookup(key); ok {
		return v, true, nil
	}

	fillCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		// A fill that finished between Lookup and DoChan already stored the value.
		if v, ok := m.items.Peek(key); ok {
			return v, nil
		}
		v, cacheable, err := fill(fillCtx)
		if err != nil {
			return v, err
		}
		if cacheable {
			m.Store(key, v)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		v, _ := res.Val.(V)
		return v, false, res.Err
	}
}

// Len returns the number of cached entries.
func (m *Memo[V]) Len() int {
	return m.items.Len()
}

// Stats returns counters since creation.
func (m *Memo[V]) Stats() Stats {
	return Stats{
		Entries:   m.items.Len(),
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
	}
}

// Name returns the label used in metrics.
func (m *Memo[V]) Name() string {
	return m.name
}
