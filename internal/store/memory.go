package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

var (
	// ErrNotFound is returned when no report is available for a given itinerary.
	ErrNotFound = errors.New("no elevation report for itinerary")
)

// ReportHistory holds a time-ordered list of elevation reports for an itinerary.
type ReportHistory struct {
	Reports []elevation.ElevationReport
}

// MemoryStore is a concurrency-safe in-memory implementation of elevation.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: itinerary name, value: history
	data map[string]*ReportHistory

	// retention configuration
	maxHistory int           // max number of reports per itinerary
	maxAge     time.Duration // optional max age for reports

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*ReportHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveReport appends a new report for an itinerary and enforces retention.
// The newest report is always kept, however old its timestamp.
func (s *MemoryStore) SaveReport(itinerary string, report elevation.ElevationReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[itinerary]
	if !ok {
		history = &ReportHistory{}
		s.data[itinerary] = history
	}

	history.Reports = append(history.Reports, report)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Reports) > s.maxHistory {
		over := len(history.Reports) - s.maxHistory
		history.Reports = history.Reports[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Reports)-1; i++ {
			if !history.Reports[i].Timestamp.Before(cutoff) {
				break
			}
		}
		history.Reports = history.Reports[i:]
	}
}

// GetLatest returns the most recent report for an itinerary.
func (s *MemoryStore) GetLatest(itinerary string) (elevation.ElevationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[itinerary]
	if !ok || len(history.Reports) == 0 {
		return elevation.ElevationReport{}, ErrNotFound
	}
	return history.Reports[len(history.Reports)-1], nil
}

// GetRange returns all reports for an itinerary between from and to (inclusive).
func (s *MemoryStore) GetRange(itinerary string, from, to time.Time) ([]elevation.ElevationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[itinerary]
	if !ok || len(history.Reports) == 0 {
		return nil, ErrNotFound
	}

	var result []elevation.ElevationReport
	for _, r := range history.Reports {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Itineraries lists the names with at least one stored report.
func (s *MemoryStore) Itineraries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name, h := range s.data {
		if len(h.Reports) > 0 {
			names = append(names, name)
		}
	}
	return names
}
