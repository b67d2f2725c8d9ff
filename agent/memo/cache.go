// Package memo deduplicates equivalent expensive work within one request.
//
// A Cache stores the handle of an in-flight computation under its key, so a caller
// that races in before the first one finishes waits on the same result instead of
// starting a second computation. Failed computations are evicted so a later call
// may retry. A Cache must never outlive the request that created it.
package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

var ErrClosed = errors.New("memo cache is closed")

// ComputeFunc produces the value stored under a key.
type ComputeFunc func(ctx context.Context) (any, error)

type Stats struct {
	Computes int64
	Hits     int64
}

type future struct {
	done chan struct{}
	val  any
	err  error
}

func (f *future) wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type Cache struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[Key]*future
	closed  bool

	computes atomic.Int64
	hits     atomic.Int64
}

// New creates a cache bound to the request context. Computations run under that
// context (not the caller's), so one caller's deadline does not fail other waiters.
func New(ctx context.Context) *Cache {
	cctx, cancel := context.WithCancel(ctx)
	return &Cache{
		ctx:     cctx,
		cancel:  cancel,
		entries: make(map[Key]*future, 4),
	}
}

// GetOrCompute returns the value for key, starting fn only if no computation for the
// key is pending or completed. ctx bounds how long this caller waits.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, fn ComputeFunc) (any, error) {
	if fn == nil {
		return nil, fmt.Errorf("memo: nil compute func for key=%s", key)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if f, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		zerolog.Ctx(ctx).Debug().Str("memo_key", string(key)).Msg("memo: attached to existing computation")
		return f.wait(ctx)
	}
	f := &future{done: make(chan struct{})}
	c.entries[key] = f
	c.mu.Unlock()

	c.computes.Add(1)
	go c.run(key, f, fn)

	return f.wait(ctx)
}

func (c *Cache) run(key Key, f *future, fn ComputeFunc) {
	var pc panics.Catcher
	pc.Try(func() {
		f.val, f.err = fn(c.ctx)
	})
	if r := pc.Recovered(); r != nil {
		f.val, f.err = nil, fmt.Errorf("memo: computation panicked: %w", r.AsError())
	}

	if f.err != nil {
		c.mu.Lock()
		if c.entries[key] == f {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	close(f.done)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Computes: c.computes.Load(),
		Hits:     c.hits.Load(),
	}
}

// Close cancels pending computations and drops every entry.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.entries = make(map[Key]*future)
	c.mu.Unlock()
	c.cancel()
}

type ctxKey struct{}

func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Cache, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Cache)
	return c, ok && c != nil
}

// Do memoizes through the cache attached to ctx, or calls fn directly when there is none.
func Do(ctx context.Context, key Key, fn ComputeFunc) (any, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return fn(ctx)
	}
	return c.GetOrCompute(ctx, key, fn)
}
