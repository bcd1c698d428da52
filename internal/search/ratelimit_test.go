// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiterInterval(t *testing.T) {
	l := newLimiter(1, 30*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	elapsed := time.Since(start)
	// Slots at 0, 30ms, 60ms.
	if elapsed < 55*time.Millisecond {
		t.Errorf("three interval slots took only %v", elapsed)
	}
}

func TestLimiterZeroIntervalImmediate(t *testing.T) {
	l := newLimiter(2, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("zero interval should not block")
	}
}

func TestLimiterWaitCancellation(t *testing.T) {
	l := newLimiter(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	// First slot is immediate; the second would wait an hour.
	if err := l.wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancel()
	if err := l.wait(ctx); err == nil {
		t.Error("cancelled wait should return the context error")
	}
}

func TestLimiterPermits(t *testing.T) {
	l := newLimiter(2, 0)
	ctx := context.Background()

	if err := l.acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Third acquire must block until a release.
	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.acquire(ctx); err == nil {
			close(acquired)
			l.release()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should have blocked")
	case <-time.After(20 * time.Millisecond):
	}

	l.release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("release did not unblock the waiter")
	}
	wg.Wait()
	l.release()
}
