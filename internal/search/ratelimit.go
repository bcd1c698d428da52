// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// limiter combines a bounded concurrency permit with an optional minimum
// inter-request interval. Permits gate whole adapter calls; the interval
// gates every individual network call an adapter makes.
type limiter struct {
	sem      *semaphore.Weighted
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func newLimiter(permits int64, interval time.Duration) *limiter {
	if permits <= 0 {
		permits = 1
	}
	return &limiter{
		sem:      semaphore.NewWeighted(permits),
		interval: interval,
	}
}

// acquire takes a concurrency permit, blocking until one is available or
// the context is cancelled.
func (l *limiter) acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// release returns a concurrency permit.
func (l *limiter) release() {
	l.sem.Release(1)
}

// wait blocks until this caller's interval slot arrives. Callers get
// slots in arrival order, spaced by the configured interval. A zero
// interval returns immediately.
func (l *limiter) wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	wake := l.next
	if wake.Before(now) {
		wake = now
	}
	l.next = wake.Add(l.interval)
	l.mu.Unlock()

	d := time.Until(wake)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
