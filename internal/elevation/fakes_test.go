package elevation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances only when someone sleeps on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

const fakeTag ProviderTag = "fake"

// fakeBatch answers every lookup with the same values (or error).
type fakeBatch struct {
	name     string
	values   []*float64
	err      error
	parseErr bool
	calls    int
}

func (f *fakeBatch) Name() string { return f.name }

func (f *fakeBatch) BatchLookup(_ context.Context, _ []Waypoint) (ProviderResponse, error) {
	f.calls++
	if f.err != nil {
		return ProviderResponse{}, f.err
	}
	return ProviderResponse{Provider: fakeTag, Payload: f.values}, nil
}

func (f *fakeBatch) Normalize(resp ProviderResponse, waypoints []Waypoint) ([]ElevationRecord, error) {
	if f.parseErr {
		return nil, &ParseError{Provider: f.name, Err: errors.New("unexpected token")}
	}
	values, ok := resp.Payload.([]*float64)
	if !ok || len(values) != len(waypoints) {
		return nil, &ParseError{Provider: f.name, Err: errors.New("length mismatch")}
	}
	return RecordsFromValues(waypoints, values), nil
}

// fakeSingle answers per waypoint index and records when each call started.
type fakeSingle struct {
	mu        sync.Mutex
	name      string
	clock     Clock
	available error
	values    map[int]float64
	errs      map[int]error
	cancel    context.CancelFunc
	cancelAt  int
	starts    []time.Time
	indexes   []int
}

func (f *fakeSingle) Name() string { return f.name }

func (f *fakeSingle) Available() error { return f.available }

func (f *fakeSingle) SingleLookup(ctx context.Context, wp Waypoint) (ProviderResponse, error) {
	f.mu.Lock()
	if f.clock != nil {
		f.starts = append(f.starts, f.clock.Now())
	}
	f.indexes = append(f.indexes, wp.Index)
	calls := len(f.indexes)
	f.mu.Unlock()

	if f.cancel != nil && calls == f.cancelAt {
		f.cancel()
		return ProviderResponse{}, ctx.Err()
	}
	if err, ok := f.errs[wp.Index]; ok {
		return ProviderResponse{}, err
	}
	if v, ok := f.values[wp.Index]; ok {
		return ProviderResponse{Provider: fakeTag, Payload: &v}, nil
	}
	return ProviderResponse{Provider: fakeTag, Payload: (*float64)(nil)}, nil
}

func (f *fakeSingle) NormalizePoint(resp ProviderResponse, wp Waypoint) (ElevationRecord, error) {
	v, ok := resp.Payload.(*float64)
	if !ok {
		return ElevationRecord{}, &ParseError{Provider: f.name, Err: fmt.Errorf("payload %T", resp.Payload)}
	}
	if v == nil {
		return Failed(wp, NoElevationData), nil
	}
	return Resolved(wp, *v), nil
}

func (f *fakeSingle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexes)
}

func ptr(v float64) *float64 { return &v }

func waypointsN(n int) []Waypoint {
	coords := make([][2]float64, n)
	for i := range coords {
		coords[i] = [2]float64{46.5 + float64(i)*0.01, 7.9 + float64(i)*0.01}
	}
	return NewWaypoints(coords)
}
