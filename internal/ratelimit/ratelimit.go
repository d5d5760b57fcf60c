// Package ratelimit bounds each principal to a fixed number of admitted
// calls per rolling window. Correctness under concurrent calls for the
// same principal rests entirely on the WindowStore's atomic
// read-modify-write; the limiter itself holds no cross-call state, so
// service instances can be replicated horizontally.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalefocus/dalefocus/internal/apperr"
)

// Window is the per-principal counter record. One record per principal,
// reused across windows, never deleted.
type Window struct {
	// Start is when the current window opened.
	Start time.Time
	// Count is the number of admitted calls since Start.
	Count int
}

// WindowStore is the atomic compare-and-swap primitive the limiter needs:
// a keyed read-modify-write that no concurrent update for the same key can
// interleave with. A database transaction, an actor per key, or a
// distributed lock all satisfy it.
type WindowStore interface {
	// UpdateWindow atomically applies fn to the principal's window.
	// fn receives the stored window (zero value and exists=false when the
	// principal has none) and returns the window to persist. When fn
	// returns an error nothing is persisted and the error is returned
	// unchanged.
	UpdateWindow(ctx context.Context, principal string, fn func(w Window, exists bool) (Window, error)) error
}

// errLimited marks a rejection inside the store callback so it can be
// told apart from store failures.
var errLimited = errors.New("window exhausted")

// Limiter admits or rejects calls per principal over a sliding window.
// The window slides from the first call after a reset rather than being a
// fixed calendar bucket: bursts are capped per rolling interval, which is
// a deliberate simplification over a token bucket.
type Limiter struct {
	store WindowStore

	mu       sync.RWMutex
	window   time.Duration
	capacity int

	now func() time.Time
}

// New creates a Limiter over the given store with the given window size
// and capacity.
func New(store WindowStore, window time.Duration, capacity int) *Limiter {
	return &Limiter{
		store:    store,
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

// SetClock overrides the limiter's time source (for testing).
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// UpdateLimits replaces the window size and capacity. Safe to call while
// the limiter is serving; used for config hot-reload.
func (l *Limiter) UpdateLimits(window time.Duration, capacity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if window > 0 {
		l.window = window
	}
	if capacity > 0 {
		l.capacity = capacity
	}
}

// Limits returns the current window size and capacity.
func (l *Limiter) Limits() (time.Duration, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.window, l.capacity
}

// Allow admits or rejects one call for the principal. A rejection is a
// terminal ResourceExhausted for that call: no retry, no backoff.
func (l *Limiter) Allow(ctx context.Context, principal string) error {
	window, capacity := l.Limits()
	now := l.now()

	err := l.store.UpdateWindow(ctx, principal, func(w Window, exists bool) (Window, error) {
		switch {
		case !exists:
			return Window{Start: now, Count: 1}, nil
		case now.Sub(w.Start) >= window:
			return Window{Start: now, Count: 1}, nil
		case w.Count < capacity:
			w.Count++
			return w, nil
		default:
			return w, errLimited
		}
	})

	if errors.Is(err, errLimited) {
		return apperr.New(apperr.ResourceExhausted,
			fmt.Sprintf("rate limit exceeded: max %d calls per %s", capacity, window))
	}
	if err != nil {
		return fmt.Errorf("update rate limit window: %w", err)
	}
	return nil
}
