package elevation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnavailable marks a provider that cannot issue calls at all.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrMissingCredential is returned by providers that need an API key and have none.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrProviderUnavailable)
	// ErrInvalidWaypoints is returned when waypoint indexes do not match their positions
	// or coordinates are out of range.
	ErrInvalidWaypoints = errors.New("invalid waypoints")
)

// NetworkError is a transport failure, timeout, open circuit or non-success
// status from a provider call.
type NetworkError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means a provider response did not match the expected schema.
type ParseError struct {
	Provider string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Provider, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DataError is a single point answered without an elevation. It never aborts
// a run; it only ends up as the Error of that point's record.
type DataError struct {
	Index int
}

func (e *DataError) Error() string { return NoElevationData }

// ExhaustedProvidersError is the only fatal pipeline error: every batch
// provider failed and the sequential stage could not be executed.
type ExhaustedProvidersError struct {
	Attempts []error
	Err      error
}

func (e *ExhaustedProvidersError) Error() string {
	var b strings.Builder
	b.WriteString("all elevation providers exhausted")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Attempts) > 0 {
		parts := make([]string, len(e.Attempts))
		for i, a := range e.Attempts {
			parts[i] = a.Error()
		}
		b.WriteString(" (previous attempts: ")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ExhaustedProvidersError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
