package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
// A result without coordinates means the provider found nothing.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Found reports whether the provider returned a position.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Geocoder resolves addresses and positions.
type Geocoder interface {
	// ForwardGeocode converts a free-form address to coordinates.
	ForwardGeocode(ctx context.Context, address string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// GeocodeStatus classifies the outcome of a geocode request.
type GeocodeStatus string

const (
	GeocodeOK          GeocodeStatus = "ok"
	GeocodeZeroResults GeocodeStatus = "zero_results"
	GeocodeFailed      GeocodeStatus = "error"
)

// ClassifyGeocode maps a provider response onto a status.
func ClassifyGeocode(result GeocodingResult, err error) GeocodeStatus {
	switch {
	case err != nil:
		return GeocodeFailed
	case !result.Found():
		return GeocodeZeroResults
	default:
		return GeocodeOK
	}
}
