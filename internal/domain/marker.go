package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether the coordinate is the 0,0 placeholder used for
// reports that were never geocoded.
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

// Valid reports whether the coordinate lies within WGS-84 bounds.
func (g Geo) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Contact holds the optional reporter contact details. Only admins see them.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether no contact detail was supplied.
func (c Contact) IsZero() bool {
	return c.Name == "" && c.Phone == "" && c.Email == ""
}

// Marker is one incident report as it appears on the map.
type Marker struct {
	ID         string          `json:"id"`
	Geo        Geo             `json:"geo"`
	Date       time.Time       `json:"date"`
	Categories map[string]bool `json:"categories"`

	Location            string   `json:"location,omitempty"`
	Description         string   `json:"description,omitempty"`
	Injuries            string   `json:"injuries,omitempty"`
	InjuriesDescription string   `json:"injuries_description,omitempty"`
	RoadConditions      string   `json:"road_conditions,omitempty"`
	Witness             string   `json:"witness,omitempty"`
	Deaths              int      `json:"deaths,omitempty"`
	LicensePlates       []string `json:"license_plates,omitempty"`
	PictureURL          string   `json:"picture_url,omitempty"`

	Contact Contact `json:"contact,omitzero"`
}

// HasAnyCategory reports whether at least one of the enabled categories is
// flagged true on the marker.
func (m Marker) HasAnyCategory(enabled CategorySet) bool {
	for key, on := range m.Categories {
		if on && enabled[key] {
			return true
		}
	}
	return false
}

// GenerateID produces a deterministic ID from the marker's identifying fields.
// Re-importing the same report yields the same ID.
func GenerateID(m Marker) string {
	input := fmt.Sprintf("%s|%.5f|%.5f|%s|%s",
		m.Date.UTC().Format(time.RFC3339), m.Geo.Lat, m.Geo.Lon, m.Location, m.Description)
	hash := sha256.Sum256([]byte(input))
	return "inc-" + hex.EncodeToString(hash[:8])
}

// MinDate returns the earliest incident date among markers, or the zero time
// for an empty slice.
func MinDate(markers []Marker) time.Time {
	var minDate time.Time
	for i, m := range markers {
		if i == 0 || m.Date.Before(minDate) {
			minDate = m.Date
		}
	}
	return minDate
}

// BoundsOf returns the smallest rectangle enclosing every marker position.
// The second return value is false for an empty slice.
func BoundsOf(markers []Marker) (Rectangle, bool) {
	if len(markers) == 0 {
		return Rectangle{}, false
	}
	r := Rectangle{SouthWest: markers[0].Geo, NorthEast: markers[0].Geo}
	for _, m := range markers[1:] {
		r.SouthWest.Lat = min(r.SouthWest.Lat, m.Geo.Lat)
		r.SouthWest.Lon = min(r.SouthWest.Lon, m.Geo.Lon)
		r.NorthEast.Lat = max(r.NorthEast.Lat, m.Geo.Lat)
		r.NorthEast.Lon = max(r.NorthEast.Lon, m.Geo.Lon)
	}
	return r, true
}
