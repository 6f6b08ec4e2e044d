package elevation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FirstCallIsImmediate(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	l := NewRateLimiter(time.Second, clock)

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, start, clock.Now())
}

func TestRateLimiter_SpacesConsecutiveCalls(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(250*time.Millisecond, clock)

	var stamps []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Wait(context.Background()))
		stamps = append(stamps, clock.Now())
	}

	for i := 1; i < len(stamps); i++ {
		assert.Equal(t, 250*time.Millisecond, stamps[i].Sub(stamps[i-1]))
	}
}

func TestRateLimiter_NoWaitWhenDelayAlreadyElapsed(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(100*time.Millisecond, clock)

	require.NoError(t, l.Wait(context.Background()))
	// a slow call took longer than the spacing
	require.NoError(t, clock.Sleep(context.Background(), 300*time.Millisecond))
	before := clock.Now()

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, before, clock.Now())
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	l := NewRateLimiter(time.Hour, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestRateLimiter_RealClockSpacing(t *testing.T) {
	l := NewRateLimiter(20*time.Millisecond, nil)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiter_ConcurrentCallersGetDistinctSlots(t *testing.T) {
	l := NewRateLimiter(10*time.Millisecond, nil)

	var (
		mu     sync.Mutex
		stamps []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 4)
	first, last := stamps[0], stamps[0]
	for _, s := range stamps {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 20*time.Millisecond)
}
