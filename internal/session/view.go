package session

import (
	"time"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// View is the map viewport state.
type View struct {
	Center domain.Geo `json:"center"`
	// Label names the center when it came from a search or a located device.
	Label string `json:"label,omitempty"`
	// Bounds encloses every loaded report; nil when none are loaded.
	Bounds *domain.Rectangle `json:"bounds,omitempty"`
}

func (v View) clone() View {
	if v.Bounds != nil {
		b := *v.Bounds
		v.Bounds = &b
	}
	return v
}

// ShapeView describes the drawn shape.
type ShapeView struct {
	Type      string            `json:"type"`
	// Active is false for a malformed shape, which filters nothing.
	Active    bool              `json:"active"`
	Rectangle *domain.Rectangle `json:"rectangle,omitempty"`
	Vertices  []domain.Geo      `json:"vertices,omitempty"`
}

// FilterView is the filter state as shown to a client.
type FilterView struct {
	Dates      domain.DateRange   `json:"dates"`
	MinDate    time.Time          `json:"min_date"`
	Categories domain.CategorySet `json:"categories"`
	Shape      *ShapeView         `json:"shape,omitempty"`
}

func newFilterView(f domain.FilterState) FilterView {
	fv := FilterView{
		Dates:      f.Dates,
		MinDate:    f.MinDate,
		Categories: f.Categories.Clone(),
	}
	switch shape := f.Spatial.(type) {
	case domain.Rectangle:
		fv.Shape = &ShapeView{Type: shape.Kind(), Active: shape.Valid(), Rectangle: &shape}
	case *domain.Polygon:
		fv.Shape = &ShapeView{Type: shape.Kind(), Active: shape.Active(), Vertices: append([]domain.Geo(nil), shape.Vertices...)}
	}
	return fv
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID      string          `json:"id"`
	Schema  domain.Schema   `json:"schema"`
	Filter  FilterView      `json:"filter"`
	View    View            `json:"view"`
	Total   int             `json:"total"`
	Visible int             `json:"visible"`
	Markers []domain.Marker `json:"-"`
}
