// Package lock serializes conflicting operations on a single event so that
// capacity checks and the writes that depend on them cannot interleave.
package lock

import (
	"context"
	"sync"
)

// Release gives up a held lock. It is safe to call more than once.
type Release func()

// Locker acquires a named mutual-exclusion lock. Acquire blocks until the lock
// is held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. It only serializes callers inside
// one process; run several replicas against one store with RedisLocker.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*keyedEntry)}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// held returns the number of keys with waiters or holders.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
