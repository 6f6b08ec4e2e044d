package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
)

const testMapsKey = "AIza-test-key"

func TestNewGoogleMapsProvider_RequiresKey(t *testing.T) {
	p, err := NewGoogleMapsProvider(nil, "", "")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, elevation.ErrMissingCredential)
}

func TestGoogleMapsProvider_BatchLookupAndNormalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/elevation/json", r.URL.Path)
		assert.Equal(t, testMapsKey, r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [
				{"elevation": 1608.6, "location": {"lat": 39.7391536, "lng": -104.9847034}, "resolution": 4.77},
				{"elevation": -50.8, "location": {"lat": 36.455556, "lng": -116.866667}, "resolution": 19.08}
			]
		}`)
	}))
	defer srv.Close()

	p, err := NewGoogleMapsProvider(srv.Client(), testMapsKey, srv.URL)
	require.NoError(t, err)

	wps := elevation.NewWaypoints([][2]float64{{39.7391536, -104.9847034}, {36.455556, -116.866667}})
	resp, err := p.BatchLookup(context.Background(), wps)
	require.NoError(t, err)

	records, err := p.Normalize(resp, wps)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1608.6, *records[0].Elevation)
	assert.Equal(t, -50.8, *records[1].Elevation)
	assert.True(t, records[1].Success)
}

func TestGoogleMapsProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "results": []}`)
	}))
	defer srv.Close()

	p, err := NewGoogleMapsProvider(srv.Client(), testMapsKey, srv.URL)
	require.NoError(t, err)

	_, err = p.BatchLookup(context.Background(), testWaypoints())
	assert.True(t, elevation.IsNetworkError(err), "got %v", err)
}

func TestGoogleMapsProvider_NormalizeMismatch(t *testing.T) {
	p, err := NewGoogleMapsProvider(nil, testMapsKey, "")
	require.NoError(t, err)

	_, err = p.Normalize(elevation.ProviderResponse{
		Provider: elevation.ProviderGoogleMaps,
		Payload:  []maps.ElevationResult{{Elevation: 1}},
	}, testWaypoints())
	assert.True(t, elevation.IsParseError(err))

	_, err = p.Normalize(elevation.ProviderResponse{Provider: elevation.ProviderGoogleMaps, Payload: []byte("{}")}, testWaypoints())
	assert.True(t, elevation.IsParseError(err))
}
