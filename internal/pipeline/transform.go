package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// ErrNoPosition is returned for a row with neither coordinates nor a
// resolvable location.
var ErrNoPosition = errors.New("no position")

// RowTransformer converts one report spreadsheet row into a marker, geocoding
// the location when the row carries no coordinates.
type RowTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a RowTransformer. Pass a nil geocoder to accept only
// rows that carry their own coordinates.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *RowTransformer {
	return &RowTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// rowError collects every problem found in a row so the whole list can be
// reported at once.
type rowError struct {
	reasons []string
}

func (e *rowError) Error() string {
	return strings.Join(e.reasons, "; ")
}

func (e *rowError) add(format string, args ...any) {
	e.reasons = append(e.reasons, fmt.Sprintf(format, args...))
}

// Transform maps record onto a marker through cols, which must be aligned
// with record.
func (t *RowTransformer) Transform(ctx context.Context, cols []domain.Column, record []string) (domain.Marker, error) {
	m := domain.Marker{Categories: map[string]bool{}}
	rerr := &rowError{}

	for i, col := range cols {
		if err := col.Field.Set(&m, record[i]); err != nil {
			rerr.add("%s: %v", col.Header, err)
		}
	}

	if m.Date.IsZero() && !hasField(cols, domain.FieldDate) {
		rerr.add("Date/Time Format: missing date")
	}
	if m.Description == "" {
		rerr.add("Description: required")
	}
	if m.PictureURL != "" && !validURL(m.PictureURL) {
		rerr.add("Picture URL: %q is not an http(s) URL", m.PictureURL)
	}
	if len(rerr.reasons) > 0 {
		return domain.Marker{}, rerr
	}

	if m.Geo.IsZero() {
		geo, err := t.locate(ctx, m.Location)
		if err != nil {
			return domain.Marker{}, err
		}
		m.Geo = geo
	}
	return m, nil
}

func (t *RowTransformer) locate(ctx context.Context, location string) (domain.Geo, error) {
	if strings.TrimSpace(location) == "" {
		return domain.Geo{}, fmt.Errorf("%w: empty location", ErrNoPosition)
	}
	if t.geocoder == nil {
		return domain.Geo{}, fmt.Errorf("%w: no coordinates and geocoding is disabled", ErrNoPosition)
	}

	result, err := t.geocoder.ForwardGeocode(ctx, location)
	switch domain.ClassifyGeocode(result, err) {
	case domain.GeocodeFailed:
		t.logger.Warn("geocode failed during import", "location", location, "error", err)
		return domain.Geo{}, fmt.Errorf("%w: failed to geocode %q: %w", ErrNoPosition, location, err)
	case domain.GeocodeZeroResults:
		return domain.Geo{}, fmt.Errorf("%w: failed to geocode %q", ErrNoPosition, location)
	}
	return domain.Geo{Lat: result.Lat, Lon: result.Lon}, nil
}

func hasField(cols []domain.Column, f domain.Field) bool {
	for _, col := range cols {
		if col.Field == f {
			return true
		}
	}
	return false
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
