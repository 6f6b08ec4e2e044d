package elevation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingStore struct {
	mu      sync.Mutex
	reports map[string][]ElevationReport
}

func newRecordingStore() *recordingStore {
	return &recordingStore{reports: map[string][]ElevationReport{}}
}

func (s *recordingStore) SaveReport(itinerary string, report ElevationReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[itinerary] = append(s.reports[itinerary], report)
}

func (s *recordingStore) GetLatest(itinerary string) (ElevationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[itinerary]
	if len(r) == 0 {
		return ElevationReport{}, errors.New("not found")
	}
	return r[len(r)-1], nil
}

func (s *recordingStore) GetRange(itinerary string, _, _ time.Time) ([]ElevationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[itinerary], nil
}

type recordingSink struct {
	err       error
	published []ElevationReport
}

func (s *recordingSink) Publish(_ context.Context, report ElevationReport) error {
	s.published = append(s.published, report)
	return s.err
}

func TestService_Resolve(t *testing.T) {
	clock := newFakeClock()
	a := &fakeBatch{name: "a", values: []*float64{ptr(100), ptr(200), nil}}
	o := NewOrchestrator([]BatchProvider{a}, nil, OrchestratorConfig{Acceptance: DefaultAcceptance(), Clock: clock}, zap.NewNop())
	svc := NewService(o, nil, nil, clock, zap.NewNop())

	report, err := svc.Resolve(context.Background(), waypointsN(3))
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "a", report.Provider)
	assert.Equal(t, clock.Now(), report.Timestamp)
	assert.Equal(t, 3, report.TotalPoints)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.FailCount)
}

func TestService_ResolveRejectsInvalidCoordinates(t *testing.T) {
	a := &fakeBatch{name: "a", values: []*float64{ptr(1)}}
	o := NewOrchestrator([]BatchProvider{a}, nil, OrchestratorConfig{}, nil)
	svc := NewService(o, nil, nil, nil, nil)

	wps := []Waypoint{{Latitude: 123, Longitude: 7, Index: 0}}
	_, err := svc.Resolve(context.Background(), wps)
	require.ErrorIs(t, err, ErrInvalidWaypoints)
	assert.Equal(t, 0, a.calls)
}

func TestService_ResolveSurfacesExhaustion(t *testing.T) {
	a := &fakeBatch{name: "a", err: netErr("a")}
	b := &fakeBatch{name: "b", err: netErr("b")}
	c := &fakeSingle{name: "c", available: ErrMissingCredential}
	o := NewOrchestrator([]BatchProvider{a, b}, c, OrchestratorConfig{Clock: newFakeClock()}, nil)
	store := newRecordingStore()
	sink := &recordingSink{}
	svc := NewService(o, store, []ReportSink{sink}, nil, nil)

	report, err := svc.ResolveAndStore(context.Background(), "walk", waypointsN(1))

	var exhausted *ExhaustedProvidersError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, ElevationReport{}, report)
	assert.Empty(t, store.reports)
	assert.Empty(t, sink.published)
}

func TestService_ResolveAndStore(t *testing.T) {
	clock := newFakeClock()
	b := &fakeBatch{name: "b", values: []*float64{ptr(50), ptr(75)}}
	o := NewOrchestrator([]BatchProvider{&fakeBatch{name: "a", err: netErr("a")}, b}, nil,
		OrchestratorConfig{Acceptance: DefaultAcceptance(), Clock: clock}, nil)

	store := newRecordingStore()
	okSink := &recordingSink{}
	failingSink := &recordingSink{err: errors.New("broker down")}
	svc := NewService(o, store, []ReportSink{failingSink, okSink}, clock, zap.NewNop())

	report, err := svc.ResolveAndStore(context.Background(), "walk", waypointsN(2))
	require.NoError(t, err)
	assert.Equal(t, "walk", report.Itinerary)

	latest, err := svc.GetLatest("walk")
	require.NoError(t, err)
	assert.Equal(t, report, latest)

	require.Len(t, failingSink.published, 1)
	require.Len(t, okSink.published, 1, "a failing sink does not stop the others")
	assert.Equal(t, report.ID, okSink.published[0].ID)
}

func TestService_WithoutStore(t *testing.T) {
	svc := NewService(NewOrchestrator(nil, nil, OrchestratorConfig{}, nil), nil, nil, nil, nil)

	_, err := svc.GetLatest("walk")
	assert.Error(t, err)
	_, err = svc.GetRange("walk", time.Now(), time.Now())
	assert.Error(t, err)
}
