package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

const (
	// DefaultOpenTopographyBaseURL is the single point query endpoint.
	DefaultOpenTopographyBaseURL = "https://portal.opentopography.org/API/pointquery"
	// DefaultOpenTopographyDataset is the global 30m SRTM raster.
	DefaultOpenTopographyDataset = "SRTMGL1"
)

// OpenTopographyProvider is the key-gated, single-point provider used as the
// last resort. Each call carries one coordinate pair and the API key; the
// answer is a single object such as {"elevation": 1523.4}. It never retries:
// a failed point becomes a failed record.
type OpenTopographyProvider struct {
	name    string
	apiKey  string
	dataset string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenTopographyProvider(cfg HTTPClientConfig, baseURL, apiKey, dataset string) *OpenTopographyProvider {
	if baseURL == "" {
		baseURL = DefaultOpenTopographyBaseURL
	}
	if dataset == "" {
		dataset = DefaultOpenTopographyDataset
	}
	// Every call must pass the orchestrator's rate limiter; an internal retry would not.
	cfg.Backoff.MaxRetries = 0
	return &OpenTopographyProvider{
		name:    string(elevation.ProviderOpenTopography),
		apiKey:  apiKey,
		dataset: dataset,
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newPointCircuitBreaker(string(elevation.ProviderOpenTopography)),
	}
}

func (p *OpenTopographyProvider) Name() string {
	return p.name
}

func (p *OpenTopographyProvider) Available() error {
	if p.apiKey == "" {
		return fmt.Errorf("opentopography api key is not configured: %w", elevation.ErrMissingCredential)
	}
	if p.httpCfg.Client == nil {
		return fmt.Errorf("%w: %v", elevation.ErrProviderUnavailable, errNoHTTPClient)
	}
	return nil
}

func (p *OpenTopographyProvider) SingleLookup(ctx context.Context, wp elevation.Waypoint) (elevation.ProviderResponse, error) {
	if err := p.Available(); err != nil {
		return elevation.ProviderResponse{}, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", formatCoord(wp.Latitude))
		values.Set("lon", formatCoord(wp.Longitude))
		values.Set("demtype", p.dataset)
		values.Set("API_Key", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return elevation.ProviderResponse{}, err
	}
	return elevation.ProviderResponse{Provider: elevation.ProviderOpenTopography, Payload: body}, nil
}

func (p *OpenTopographyProvider) NormalizePoint(resp elevation.ProviderResponse, wp elevation.Waypoint) (elevation.ElevationRecord, error) {
	body, err := payloadBytes(p.name, elevation.ProviderOpenTopography, resp)
	if err != nil {
		return elevation.ElevationRecord{}, err
	}

	var payload struct {
		Elevation *float64 `json:"elevation"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&payload); err != nil {
		return elevation.ElevationRecord{}, &elevation.ParseError{Provider: p.name, Err: err}
	}
	if payload.Elevation == nil {
		return elevation.Failed(wp, (&elevation.DataError{Index: wp.Index}).Error()), nil
	}
	return elevation.Resolved(wp, *payload.Elevation), nil
}
