package elevation

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so pacing can be tested without real waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimiter spaces consecutive calls by at least minDelay. Each Wait
// reserves the next free slot (never earlier than last slot + minDelay), so
// concurrent callers are paced as well as sequential ones.
type RateLimiter struct {
	mu       sync.Mutex
	clock    Clock
	minDelay time.Duration
	last     time.Time
}

// NewRateLimiter creates a limiter; a nil clock means SystemClock.
func NewRateLimiter(minDelay time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock{}
	}
	if minDelay < 0 {
		minDelay = 0
	}
	return &RateLimiter{clock: clock, minDelay: minDelay}
}

// MinDelay returns the configured spacing.
func (l *RateLimiter) MinDelay() time.Duration { return l.minDelay }

// Wait blocks until the caller's slot is due. The first call never waits.
// If ctx is cancelled while waiting, the reserved slot stays consumed.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := l.clock.Now()
	slot := now
	if !l.last.IsZero() {
		if next := l.last.Add(l.minDelay); next.After(now) {
			slot = next
		}
	}
	l.last = slot
	l.mu.Unlock()

	return l.clock.Sleep(ctx, slot.Sub(now))
}
