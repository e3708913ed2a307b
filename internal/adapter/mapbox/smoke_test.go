//go:build mapbox

package mapbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, discardLogger(),
		WithProximity(domain.Geo{Lat: 39.952, Lon: -75.195}),
		WithMetrics(observability.NewMetricsForTesting()))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "30th Street Station, Philadelphia")
	require.NoError(t, err)

	assert.InDelta(t, 39.955, result.Lat, 0.05, "lat should be near 30th Street Station")
	assert.InDelta(t, -75.182, result.Lon, 0.05, "lon should be near 30th Street Station")
	assert.Contains(t, result.FormattedAddress, "Philadelphia")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 39.952, -75.195)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FormattedAddress)
	assert.NotEmpty(t, result.PlaceName)
}

func TestSmoke_ForwardGeocode_Nonsense(t *testing.T) {
	c := smokeClient(t)

	// Fuzzy matching may still return something; only the absence of an
	// error is asserted.
	_, err := c.ForwardGeocode(context.Background(), "XYZNONEXISTENT99 ZZ")
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	cached, err := NewCachedGeocoder(smokeClient(t), 10, observability.NewMetricsForTesting())
	require.NoError(t, err)

	r1, err := cached.ForwardGeocode(context.Background(), "Philadelphia City Hall")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Philadelphia")

	r2, err := cached.ForwardGeocode(context.Background(), "Philadelphia City Hall")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
