// Package keylock serializes operations that share a key. Keys are operator
// identities; at most one operation per key runs at a time and waiters are
// served in arrival order.
package keylock

import (
	"context"
	"sync"
)

type Lock struct {
	mu   sync.Mutex
	keys map[string]*entry
}

type entry struct {
	held    bool
	waiters []chan struct{}
}

func New() *Lock {
	return &Lock{keys: map[string]*entry{}}
}

// RunExclusive runs fn while holding the lock for key and returns its error.
// Entries are created on first use and kept for the life of the Lock. A
// caller whose ctx ends while queued returns ctx.Err() without running fn.
func (l *Lock) RunExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx, key); err != nil {
		return err
	}
	defer l.release(key)
	return fn(ctx)
}

func (l *Lock) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	if l.keys == nil {
		l.keys = map[string]*entry{}
	}
	e, ok := l.keys[key]
	if !ok {
		e = &entry{}
		l.keys[key] = e
	}
	if !e.held {
		e.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	for i, w := range e.waiters {
		if w == ch {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
	l.mu.Unlock()
	// Ownership was handed over while ctx ended; pass it on.
	l.release(key)
	return ctx.Err()
}

func (l *Lock) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.keys[key]
	if e == nil {
		return
	}
	if len(e.waiters) == 0 {
		e.held = false
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}

// Keys returns the number of keys seen so far.
func (l *Lock) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
