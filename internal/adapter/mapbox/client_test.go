package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string, opts ...Option) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	opts = append([]Option{WithBaseURL(baseURL), WithMetrics(m)}, opts...)
	return NewClient(testToken, 5*time.Second, discardLogger(), opts...), m
}

func TestClient_ForwardGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "3001 Market St, Philadelphia")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "-75.195000,39.952000", r.URL.Query().Get("proximity"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{-75.1836, 39.9556},
					PlaceName: "3001 Market St, Philadelphia, Pennsylvania 19104, United States",
					Text:      "Market St",
					Relevance: 0.95,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, WithProximity(domain.Geo{Lat: 39.952, Lon: -75.195}))
	result, err := c.ForwardGeocode(context.Background(), "3001 Market St, Philadelphia")
	require.NoError(t, err)

	assert.Equal(t, 39.9556, result.Lat)
	assert.Equal(t, -75.1836, result.Lon)
	assert.Equal(t, "Market St", result.PlaceName)
	assert.Equal(t, 0.95, result.Confidence)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "success")), 0)
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "-75.195000,39.952000")
		resp := response{
			Features: []feature{
				{
					Center:    []float64{-75.195, 39.952},
					PlaceName: "University City, Philadelphia, Pennsylvania",
					Text:      "University City",
					Relevance: 0.98,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	result, err := c.ReverseGeocode(context.Background(), 39.952, -75.195)
	require.NoError(t, err)

	assert.Equal(t, "University City, Philadelphia, Pennsylvania", result.FormattedAddress)
	assert.Equal(t, "University City", result.PlaceName)
	assert.Equal(t, 0.98, result.Confidence)
}

func TestClient_ForwardGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL)
	result, err := c.ForwardGeocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.Equal(t, domain.GeocodeZeroResults, domain.ClassifyGeocode(result, err))
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "empty")), 0)
}

func TestClient_ForwardGeocode_BlankAddressSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	result, err := c.ForwardGeocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.False(t, called)
}

func TestClient_ForwardGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c, m := testClient(srv.URL)
	_, err := c.ForwardGeocode(context.Background(), "30th Street Station")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("forward", "error")), 0)
}

func TestClient_ForwardGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(testToken, 50*time.Millisecond, discardLogger(), WithBaseURL(srv.URL))
	_, err := c.ForwardGeocode(context.Background(), "30th Street Station")
	require.Error(t, err)
}

func TestClient_ForwardGeocode_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":`))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.ForwardGeocode(context.Background(), "City Hall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
