package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

var validate = validator.New()

// ErrEmpty is returned for an itinerary file without points.
var ErrEmpty = errors.New("itinerary has no points")

type point struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type document struct {
	Itinerary []point `json:"itinerary"`
}

// Decode reads an itinerary document of the form
//
//	{"itinerary": [{"latitude": 46.55, "longitude": 7.83}, ...]}
//
// and returns its points as indexed waypoints with validated coordinates.
func Decode(r io.Reader) ([]elevation.Waypoint, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode itinerary: %w", err)
	}
	if len(doc.Itinerary) == 0 {
		return nil, ErrEmpty
	}

	waypoints := make([]elevation.Waypoint, len(doc.Itinerary))
	for i, p := range doc.Itinerary {
		if p.Latitude == nil || p.Longitude == nil {
			return nil, fmt.Errorf("itinerary point %d: latitude and longitude are required", i)
		}
		wp := elevation.Waypoint{Latitude: *p.Latitude, Longitude: *p.Longitude, Index: i}
		if err := validate.Struct(wp); err != nil {
			return nil, fmt.Errorf("invalid itinerary point %d: %w", i, err)
		}
		waypoints[i] = wp
	}
	return waypoints, nil
}

// LoadFile opens and decodes the itinerary at path.
func LoadFile(path string) ([]elevation.Waypoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open itinerary: %w", err)
	}
	defer f.Close()

	waypoints, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return waypoints, nil
}

// Name derives the itinerary name from its file name: "walks/eiger.json" is "eiger".
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
