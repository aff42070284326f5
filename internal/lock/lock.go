// Package lock serializes the check-then-act sequence of booking mutations
// per (clinic, location) key. The default implementation is an in-process
// keyed mutex; a Redis-backed locker is available for deployments where
// several agent processes share one cache.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAcquired = errors.New("room lock not acquired")

// Locker runs fn while holding an exclusive lock for key. Distinct keys do
// not contend. Implementations may fail fast with ErrNotAcquired instead of
// waiting.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type keyLock struct {
	slot chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Waiters block until the holder of the
// same key finishes or their context is cancelled; keys with no waiters are
// dropped from the table.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{slot: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	drop := func() {
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		drop()
		return err
	}

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		drop()
		return ctx.Err()
	}

	defer func() {
		<-l.slot
		drop()
	}()
	return fn(ctx)
}
