package buffer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// contentLock is the per-buffer exclusive lock held while a caller
// reads or mutates the page. Acquisition suspends the goroutine and
// can be abandoned through the context, which is the only
// recoverable failure in this layer.
type contentLock struct {
	sem    *semaphore.Weighted
	locked atomic.Bool
}

func newContentLock() *contentLock {
	return &contentLock{
		sem: semaphore.NewWeighted(1),
	}
}

// acquire blocks until the lock is free or ctx is done. On
// cancellation the ctx error is returned and the lock is not held.
func (l *contentLock) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.locked.Store(true)
	return nil
}

func (l *contentLock) release() {
	if !l.locked.Load() {
		panic("buffer: releasing content lock that is not held")
	}
	l.locked.Store(false)
	l.sem.Release(1)
}

// held reports whether the lock is currently taken. Used to verify
// the caller's side of the commit/release contract.
func (l *contentLock) held() bool {
	return l.locked.Load()
}
