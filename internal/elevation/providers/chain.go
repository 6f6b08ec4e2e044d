package providers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

// ChainConfig holds everything needed to build the provider fallback chain.
type ChainConfig struct {
	HTTPClient *http.Client
	Backoff    BackoffConfig

	USGSBaseURL           string
	OpenElevationBaseURL  string
	OpenTopographyBaseURL string
	OpenTopographyAPIKey  string
	OpenTopographyDataset string
	GoogleMapsAPIKey      string
}

// NewChain builds the providers in fallback order: USGS, Open-Elevation,
// Google Maps when a key is configured, and OpenTopography point by point.
// Without a Google key the chain is exactly USGS, Open-Elevation, OpenTopography.
func NewChain(cfg ChainConfig, logger *zap.Logger) ([]elevation.BatchProvider, elevation.SingleProvider) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	httpCfg := HTTPClientConfig{
		Client:  cfg.HTTPClient,
		Backoff: cfg.Backoff,
		Logger:  logger.Named("providers"),
	}

	batch := []elevation.BatchProvider{
		NewUSGSProvider(httpCfg, cfg.USGSBaseURL),
		NewOpenElevationProvider(httpCfg, cfg.OpenElevationBaseURL),
	}

	if cfg.GoogleMapsAPIKey != "" {
		google, err := NewGoogleMapsProvider(cfg.HTTPClient, cfg.GoogleMapsAPIKey, "")
		if err != nil {
			logger.Warn("google maps provider disabled", zap.Error(err))
		} else {
			batch = append(batch, google)
		}
	}

	sequential := NewOpenTopographyProvider(httpCfg, cfg.OpenTopographyBaseURL, cfg.OpenTopographyAPIKey, cfg.OpenTopographyDataset)
	if err := sequential.Available(); err != nil {
		logger.Warn("sequential fallback provider unavailable; runs fail once batch providers are exhausted",
			zap.String("provider", sequential.Name()),
			zap.Error(err),
		)
	}
	return batch, sequential
}
