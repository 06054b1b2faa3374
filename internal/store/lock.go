package store

import (
	"context"
	"time"
)

// dirLock serializes the id-uniqueness check and atomic-write sequence for
// a single store directory. Acquisition waits up to a timeout so a stuck
// writer surfaces as a distinct lock failure instead of blocking forever.
type dirLock struct {
	sem chan struct{}
}

func newDirLock() *dirLock {
	return &dirLock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is held, the timeout elapses, or ctx is
// canceled. Returns false when the lock was not acquired.
func (l *dirLock) Acquire(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *dirLock) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release releases the lock. Must only be called after a successful
// Acquire or TryAcquire.
func (l *dirLock) Release() {
	<-l.sem
}
