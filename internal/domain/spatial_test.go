package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectangle_Contains(t *testing.T) {
	r := Rectangle{SouthWest: Geo{Lat: 39.9, Lon: -75.3}, NorthEast: Geo{Lat: 40.0, Lon: -75.1}}

	assert.Equal(t, "rectangle", r.Kind())
	assert.True(t, r.Contains(Geo{Lat: 39.95, Lon: -75.2}))
	assert.False(t, r.Contains(Geo{Lat: 40.05, Lon: -75.2}))
	assert.False(t, r.Contains(Geo{Lat: 39.95, Lon: -75.0}))
}

func TestRectangle_AntimeridianCrossing(t *testing.T) {
	r := Rectangle{SouthWest: Geo{Lat: -20, Lon: 170}, NorthEast: Geo{Lat: -10, Lon: -170}}

	assert.True(t, r.Contains(Geo{Lat: -15, Lon: 175}))
	assert.True(t, r.Contains(Geo{Lat: -15, Lon: -175}))
	assert.False(t, r.Contains(Geo{Lat: -15, Lon: 0}))
}

func TestRectangle_DegenerateContainsEverything(t *testing.T) {
	assert.True(t, Rectangle{}.Contains(Geo{Lat: 10, Lon: 10}))

	flat := Rectangle{SouthWest: Geo{Lat: 40, Lon: -75}, NorthEast: Geo{Lat: 40, Lon: -74}}
	assert.False(t, flat.Valid())
	assert.True(t, flat.Contains(Geo{Lat: 0, Lon: 0}))
}

func TestPolygon_Contains(t *testing.T) {
	// Triangle around central Philadelphia.
	p := NewPolygon([]Geo{
		{Lat: 39.90, Lon: -75.25},
		{Lat: 39.90, Lon: -75.10},
		{Lat: 40.00, Lon: -75.175},
	})

	assert.Equal(t, "polygon", p.Kind())
	assert.True(t, p.Valid())
	assert.True(t, p.Active())
	assert.True(t, p.Contains(Geo{Lat: 39.93, Lon: -75.17}))
	assert.False(t, p.Contains(Geo{Lat: 39.99, Lon: -75.24}))
	assert.False(t, p.Contains(Geo{Lat: 41.0, Lon: -75.17}))
}

func TestPolygon_ExplicitlyClosedRing(t *testing.T) {
	p := NewPolygon([]Geo{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 10},
		{Lat: 10, Lon: 10},
		{Lat: 10, Lon: 0},
		{Lat: 0, Lon: 0},
	})
	assert.True(t, p.Contains(Geo{Lat: 5, Lon: 5}))
	assert.False(t, p.Contains(Geo{Lat: 15, Lon: 5}))
}

func TestPolygon_MalformedContainsEverything(t *testing.T) {
	tests := []struct {
		name     string
		vertices []Geo
	}{
		{"no vertices", nil},
		{"two vertices", []Geo{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
		{"repeated vertex", []Geo{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 1, Lon: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolygon(tt.vertices)
			assert.False(t, p.Valid())
			assert.True(t, p.Contains(Geo{Lat: 50, Lon: 50}))
		})
	}
}

func TestPolygon_NonSimpleRingContainsEverything(t *testing.T) {
	tests := []struct {
		name     string
		vertices []Geo
	}{
		{"bow-tie", []Geo{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 1}, {Lat: 1, Lon: 0}}},
		{"collinear", []Geo{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolygon(tt.vertices)
			assert.True(t, p.Valid())
			assert.False(t, p.Active())
			for _, pos := range []Geo{{Lat: 0.5, Lon: 0.5}, {Lat: 0.1, Lon: 0.5}, {Lat: 50, Lon: 50}, {Lat: -30, Lon: 120}} {
				assert.True(t, p.Contains(pos), "position %v", pos)
			}

			visible := Recompute([]Marker{
				{ID: "in", Geo: Geo{Lat: 0.5, Lon: 0.5}, Categories: map[string]bool{"car": true}},
				{ID: "out", Geo: Geo{Lat: 40, Lon: -75}, Categories: map[string]bool{"car": true}},
			}, FilterState{Spatial: p, Categories: CategorySet{"car": true}})
			assert.Len(t, visible, 2)
		})
	}
}

func TestRectangle_Center(t *testing.T) {
	r := Rectangle{SouthWest: Geo{Lat: 39.9, Lon: -75.3}, NorthEast: Geo{Lat: 40.1, Lon: -75.1}}
	c := r.Center()
	assert.InDelta(t, 40.0, c.Lat, 1e-9)
	assert.InDelta(t, -75.2, c.Lon, 1e-9)

	crossing := Rectangle{SouthWest: Geo{Lat: -10, Lon: 170}, NorthEast: Geo{Lat: 10, Lon: -170}}
	assert.InDelta(t, 180.0, crossing.Center().Lon, 1e-9)
}
