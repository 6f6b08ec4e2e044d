package elevation

import (
	"context"
	"time"
)

// BatchProvider resolves a whole waypoint sequence with a single call
// (e.g. USGS, Open-Elevation, Google Maps).
type BatchProvider interface {
	Name() string
	BatchLookup(ctx context.Context, waypoints []Waypoint) (ProviderResponse, error)
	// Normalize turns the provider's own response into exactly one record per
	// waypoint, in input order, or fails with a *ParseError.
	Normalize(resp ProviderResponse, waypoints []Waypoint) ([]ElevationRecord, error)
}

// SingleProvider resolves one waypoint per call (e.g. OpenTopography).
type SingleProvider interface {
	Name() string
	// Available reports whether the provider can issue calls at all, e.g. it
	// returns ErrMissingCredential when no API key is configured.
	Available() error
	SingleLookup(ctx context.Context, wp Waypoint) (ProviderResponse, error)
	NormalizePoint(resp ProviderResponse, wp Waypoint) (ElevationRecord, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveReport(itinerary string, report ElevationReport)
	GetLatest(itinerary string) (ElevationReport, error)
	GetRange(itinerary string, from, to time.Time) ([]ElevationReport, error)
}

// ReportSink receives every completed report (file, database, message bus).
type ReportSink interface {
	Publish(ctx context.Context, report ElevationReport) error
}
