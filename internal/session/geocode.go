package session

import (
	"context"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// GeocodeOutcome is the result of an address search or a device locate.
type GeocodeOutcome struct {
	Status domain.GeocodeStatus `json:"status"`
	Center domain.Geo           `json:"center,omitzero"`
	Label  string               `json:"label,omitempty"`
	// Stale is set when a newer search or locate was issued before this one
	// completed. A stale outcome does not move the map.
	Stale bool   `json:"stale,omitempty"`
	Error string `json:"error,omitempty"`
}

// begin takes the next request sequence number.
func (s *Session) begin(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.do(ctx, func() {
		s.seq++
		seq = s.seq
	})
	return seq, err
}

// Geocode resolves an address and, when it is found, centers the map on it.
// The provider call runs outside the session loop; zero results and provider
// errors leave the map untouched. The returned error is only set when the
// session itself could not be reached.
func (s *Session) Geocode(ctx context.Context, address string) (GeocodeOutcome, error) {
	seq, err := s.begin(ctx)
	if err != nil {
		return GeocodeOutcome{}, err
	}

	if s.geocoder == nil {
		return GeocodeOutcome{Status: domain.GeocodeFailed, Error: ErrGeocodingDisabled.Error()}, nil
	}

	result, gerr := s.geocoder.ForwardGeocode(ctx, address)
	out := GeocodeOutcome{Status: domain.ClassifyGeocode(result, gerr)}
	switch out.Status {
	case domain.GeocodeFailed:
		s.logger.Warn("geocode failed", "error", gerr, "address", address)
		out.Error = gerr.Error()
		return out, nil
	case domain.GeocodeZeroResults:
		s.logger.Info("geocode found no results", "address", address)
		return out, nil
	}

	out.Center = domain.Geo{Lat: result.Lat, Lon: result.Lon}
	out.Label = result.FormattedAddress
	err = s.do(ctx, func() {
		if seq != s.seq {
			out.Stale = true
			return
		}
		s.view.Center = out.Center
		s.view.Label = out.Label
	})
	if err != nil {
		return GeocodeOutcome{}, err
	}
	if out.Stale {
		s.logger.Debug("discarding stale geocode", "address", address, "seq", seq)
	}
	return out, nil
}

// Locate centers the map on the device position. The center moves
// immediately; a reverse geocode then labels it if no newer request has been
// issued in the meantime.
func (s *Session) Locate(ctx context.Context, pos domain.Geo) (GeocodeOutcome, error) {
	var seq uint64
	err := s.do(ctx, func() {
		s.seq++
		seq = s.seq
		s.view.Center = pos
		s.view.Label = ""
	})
	if err != nil {
		return GeocodeOutcome{}, err
	}

	out := GeocodeOutcome{Status: domain.GeocodeOK, Center: pos}
	if s.geocoder == nil {
		return out, nil
	}

	result, gerr := s.geocoder.ReverseGeocode(ctx, pos.Lat, pos.Lon)
	if gerr != nil {
		s.logger.Warn("reverse geocode failed", "error", gerr, "lat", pos.Lat, "lon", pos.Lon)
		return out, nil
	}
	if result.FormattedAddress == "" {
		return out, nil
	}

	err = s.do(ctx, func() {
		if seq != s.seq {
			out.Stale = true
			return
		}
		s.view.Label = result.FormattedAddress
		out.Label = result.FormattedAddress
	})
	if err != nil {
		return GeocodeOutcome{}, err
	}
	return out, nil
}
