package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// DefaultUSGSBaseURL is the batch point query endpoint.
const DefaultUSGSBaseURL = "https://epqs.nationalmap.gov/v1/batch"

// USGSProvider is the free, key-less batch provider queried first. All
// coordinates travel in a single "locations" query parameter
// (lat,lon|lat,lon|...) and the answer holds one nested value array per point:
//
//	{"elevations": [[1523.4], [1530.1], [null]]}
type USGSProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewUSGSProvider(cfg HTTPClientConfig, baseURL string) *USGSProvider {
	if baseURL == "" {
		baseURL = DefaultUSGSBaseURL
	}
	return &USGSProvider{
		name:    string(elevation.ProviderUSGS),
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker(string(elevation.ProviderUSGS)),
	}
}

func (p *USGSProvider) Name() string {
	return p.name
}

func (p *USGSProvider) BatchLookup(ctx context.Context, waypoints []elevation.Waypoint) (elevation.ProviderResponse, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("locations", encodeLocations(waypoints))
		values.Set("units", "Meters")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return elevation.ProviderResponse{}, err
	}
	return elevation.ProviderResponse{Provider: elevation.ProviderUSGS, Payload: body}, nil
}

func (p *USGSProvider) Normalize(resp elevation.ProviderResponse, waypoints []elevation.Waypoint) ([]elevation.ElevationRecord, error) {
	body, err := payloadBytes(p.name, elevation.ProviderUSGS, resp)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Elevations [][]*float64 `json:"elevations"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, &elevation.ParseError{Provider: p.name, Err: err}
	}
	if payload.Elevations == nil {
		return nil, &elevation.ParseError{Provider: p.name, Err: fmt.Errorf("missing elevations array")}
	}
	if len(payload.Elevations) != len(waypoints) {
		return nil, &elevation.ParseError{
			Provider: p.name,
			Err:      fmt.Errorf("got %d elevations for %d waypoints", len(payload.Elevations), len(waypoints)),
		}
	}

	values := make([]*float64, len(waypoints))
	for i, point := range payload.Elevations {
		if len(point) > 0 {
			values[i] = point[0]
		}
	}
	return elevation.RecordsFromValues(waypoints, values), nil
}

func encodeLocations(waypoints []elevation.Waypoint) string {
	parts := make([]string, len(waypoints))
	for i, wp := range waypoints {
		parts[i] = formatCoord(wp.Latitude) + "," + formatCoord(wp.Longitude)
	}
	return strings.Join(parts, "|")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// payloadBytes checks the response came from the expected provider and holds a raw body.
func payloadBytes(provider string, want elevation.ProviderTag, resp elevation.ProviderResponse) ([]byte, error) {
	if resp.Provider != want {
		return nil, &elevation.ParseError{
			Provider: provider,
			Err:      fmt.Errorf("response produced by %q", resp.Provider),
		}
	}
	body, ok := resp.Payload.([]byte)
	if !ok {
		return nil, &elevation.ParseError{
			Provider: provider,
			Err:      fmt.Errorf("unexpected payload type %T", resp.Payload),
		}
	}
	return body, nil
}
