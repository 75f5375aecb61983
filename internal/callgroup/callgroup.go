// Package callgroup deduplicates concurrent calls by key.
//
// If several goroutines ask for the same key while a call is in flight,
// only the first runs fn. The rest wait for it and receive the same value
// and error. Once fn returns the key is forgotten, so a later call runs fn
// again. Nothing is cached.
package callgroup

import (
	"context"
	"sync"
)

// Result is the outcome of one call.
type Result[V any] struct {
	Val    V
	Err    error
	Shared bool // true when the value came from another caller's execution
}

// Group deduplicates concurrent calls by key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// DoChan executes fn if no call is in flight for key and returns a channel
// that receives the result exactly once. The channel is never closed.
func (g *Group[K, V]) DoChan(key K, fn func() (V, error)) <-chan Result[V] {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, shared := g.calls[key]
	if !shared {
		c = &call[V]{done: make(chan struct{})}
		g.calls[key] = c
	}
	g.mu.Unlock()

	if !shared {
		go func() {
			c.val, c.err = fn()

			// Forget the key before waking waiters so that a caller who
			// has seen the result always starts a fresh execution.
			g.mu.Lock()
			delete(g.calls, key)
			g.mu.Unlock()
			close(c.done)
		}()
	}

	ch := make(chan Result[V], 1)
	go func() {
		<-c.done
		ch <- Result[V]{Val: c.val, Err: c.err, Shared: shared}
	}()
	return ch
}

// Do is DoChan for callers that want to block. If ctx ends first, Do
// returns ctx.Err() and the in-flight call keeps running for the others.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, bool, error) {
	select {
	case r := <-g.DoChan(key, fn):
		return r.Val, r.Shared, r.Err
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}
