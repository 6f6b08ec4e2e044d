package elevation

import (
	"time"
)

// ProviderTag identifies which provider variant produced a response.
type ProviderTag string

const (
	ProviderUSGS           ProviderTag = "usgs"
	ProviderOpenElevation  ProviderTag = "open-elevation"
	ProviderOpenTopography ProviderTag = "opentopography"
	ProviderGoogleMaps     ProviderTag = "googlemaps"
)

// NoElevationData is the record error for a point the provider answered without a value.
const NoElevationData = "No elevation data"

// Waypoint is one coordinate of an itinerary. Index is its position in the
// input sequence and is the only key used to realign provider results.
type Waypoint struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Index     int     `json:"-"`
}

// NewWaypoints indexes raw coordinate pairs in input order.
func NewWaypoints(coords [][2]float64) []Waypoint {
	wps := make([]Waypoint, len(coords))
	for i, c := range coords {
		wps[i] = Waypoint{Latitude: c[0], Longitude: c[1], Index: i}
	}
	return wps
}

// ProviderResponse is the raw answer of a provider call. HTTP providers carry
// the response body as []byte; client-library providers carry decoded values.
// It only lives until the matching normalizer has consumed it.
type ProviderResponse struct {
	Provider ProviderTag
	Payload  any
}

// ElevationRecord is the resolved elevation of a single waypoint.
// Success is true iff Elevation is set; Error is set iff Success is false.
type ElevationRecord struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
}

// Resolved builds a successful record for wp.
func Resolved(wp Waypoint, meters float64) ElevationRecord {
	v := meters
	return ElevationRecord{
		Latitude:  wp.Latitude,
		Longitude: wp.Longitude,
		Elevation: &v,
		Success:   true,
	}
}

// Failed builds a failed record for wp carrying msg.
func Failed(wp Waypoint, msg string) ElevationRecord {
	if msg == "" {
		msg = "unknown error"
	}
	return ElevationRecord{
		Latitude:  wp.Latitude,
		Longitude: wp.Longitude,
		Success:   false,
		Error:     msg,
	}
}

// RecordsFromValues aligns per-point values with waypoints by position; the
// caller guarantees len(values) == len(waypoints). A nil value yields a failed
// record with NoElevationData.
func RecordsFromValues(waypoints []Waypoint, values []*float64) []ElevationRecord {
	records := make([]ElevationRecord, len(waypoints))
	for i, wp := range waypoints {
		if values[i] == nil {
			records[i] = Failed(wp, (&DataError{Index: wp.Index}).Error())
			continue
		}
		records[i] = Resolved(wp, *values[i])
	}
	return records
}

// ElevationReport is the final result of one pipeline run.
type ElevationReport struct {
	ID           string            `json:"id,omitempty"`
	Itinerary    string            `json:"itinerary,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Timestamp    time.Time         `json:"timestamp"` // always UTC
	TotalPoints  int               `json:"totalPoints"`
	SuccessCount int               `json:"successfulRequests"`
	FailCount    int               `json:"failedRequests"`
	Records      []ElevationRecord `json:"elevationData"`
}
