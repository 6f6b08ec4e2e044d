package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// DefaultOpenElevationBaseURL is the public Open-Elevation lookup endpoint.
const DefaultOpenElevationBaseURL = "https://api.open-elevation.com/api/v1/lookup"

// OpenElevationProvider is the free batch provider queried second.
type OpenElevationProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenElevationProvider(cfg HTTPClientConfig, baseURL string) *OpenElevationProvider {
	if baseURL == "" {
		baseURL = DefaultOpenElevationBaseURL
	}
	return &OpenElevationProvider{
		name:    string(elevation.ProviderOpenElevation),
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newCircuitBreaker(string(elevation.ProviderOpenElevation)),
	}
}

func (p *OpenElevationProvider) Name() string {
	return p.name
}

type openElevationLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *OpenElevationProvider) BatchLookup(ctx context.Context, waypoints []elevation.Waypoint) (elevation.ProviderResponse, error) {
	locations := make([]openElevationLocation, len(waypoints))
	for i, wp := range waypoints {
		locations[i] = openElevationLocation{Latitude: wp.Latitude, Longitude: wp.Longitude}
	}
	postData, err := json.Marshal(struct {
		Locations []openElevationLocation `json:"locations"`
	}{Locations: locations})
	if err != nil {
		return elevation.ProviderResponse{}, fmt.Errorf("encode open-elevation request: %w", err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(postData))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	body, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return elevation.ProviderResponse{}, err
	}
	return elevation.ProviderResponse{Provider: elevation.ProviderOpenElevation, Payload: body}, nil
}

func (p *OpenElevationProvider) Normalize(resp elevation.ProviderResponse, waypoints []elevation.Waypoint) ([]elevation.ElevationRecord, error) {
	body, err := payloadBytes(p.name, elevation.ProviderOpenElevation, resp)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			Elevation *float64 `json:"elevation"`
		} `json:"results"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, &elevation.ParseError{Provider: p.name, Err: err}
	}
	if payload.Results == nil {
		return nil, &elevation.ParseError{Provider: p.name, Err: fmt.Errorf("missing results array")}
	}
	if len(payload.Results) != len(waypoints) {
		return nil, &elevation.ParseError{
			Provider: p.name,
			Err:      fmt.Errorf("got %d results for %d waypoints", len(payload.Results), len(waypoints)),
		}
	}

	values := make([]*float64, len(waypoints))
	for i, r := range payload.Results {
		values[i] = r.Elevation
	}
	return elevation.RecordsFromValues(waypoints, values), nil
}
