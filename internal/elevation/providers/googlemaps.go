package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"googlemaps.github.io/maps"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// GoogleMapsProvider is an optional, key-gated batch provider backed by the
// Google Maps Elevation API client.
type GoogleMapsProvider struct {
	name    string
	client  *maps.Client
	circuit *gobreaker.CircuitBreaker
}

// NewGoogleMapsProvider builds the provider. baseURL is only set in tests.
func NewGoogleMapsProvider(httpClient *http.Client, apiKey, baseURL string) (*GoogleMapsProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google maps api key is not configured: %w", elevation.ErrMissingCredential)
	}

	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}

	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps.NewClient: %w", err)
	}

	return &GoogleMapsProvider{
		name:    string(elevation.ProviderGoogleMaps),
		client:  client,
		circuit: newCircuitBreaker(string(elevation.ProviderGoogleMaps)),
	}, nil
}

func (p *GoogleMapsProvider) Name() string {
	return p.name
}

func (p *GoogleMapsProvider) BatchLookup(ctx context.Context, waypoints []elevation.Waypoint) (elevation.ProviderResponse, error) {
	locations := make([]maps.LatLng, len(waypoints))
	for i, wp := range waypoints {
		locations[i] = maps.LatLng{Lat: wp.Latitude, Lng: wp.Longitude}
	}

	result, err := p.circuit.Execute(func() (interface{}, error) {
		return p.client.Elevation(ctx, &maps.ElevationRequest{Locations: locations})
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return elevation.ProviderResponse{}, ctxErr
		}
		return elevation.ProviderResponse{}, &elevation.NetworkError{Provider: p.name, Err: err}
	}
	return elevation.ProviderResponse{Provider: elevation.ProviderGoogleMaps, Payload: result}, nil
}

func (p *GoogleMapsProvider) Normalize(resp elevation.ProviderResponse, waypoints []elevation.Waypoint) ([]elevation.ElevationRecord, error) {
	if resp.Provider != elevation.ProviderGoogleMaps {
		return nil, &elevation.ParseError{Provider: p.name, Err: fmt.Errorf("response produced by %q", resp.Provider)}
	}
	results, ok := resp.Payload.([]maps.ElevationResult)
	if !ok {
		return nil, &elevation.ParseError{Provider: p.name, Err: fmt.Errorf("unexpected payload type %T", resp.Payload)}
	}
	if len(results) != len(waypoints) {
		return nil, &elevation.ParseError{
			Provider: p.name,
			Err:      fmt.Errorf("got %d results for %d waypoints", len(results), len(waypoints)),
		}
	}

	values := make([]*float64, len(waypoints))
	for i, r := range results {
		values[i] = float64Ptr(r.Elevation)
	}
	return elevation.RecordsFromValues(waypoints, values), nil
}
