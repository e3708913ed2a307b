package domain

import (
	geom "github.com/peterstace/simplefeatures/geom"
)

// Selector is a drawn shape that constrains markers by position.
type Selector interface {
	// Kind is "rectangle" or "polygon".
	Kind() string
	// Contains reports whether the position lies inside the shape. A
	// malformed shape contains every position.
	Contains(p Geo) bool
}

// Rectangle is an axis-aligned lat/lon box. A box whose south-west longitude
// is greater than its north-east longitude crosses the antimeridian.
type Rectangle struct {
	SouthWest Geo `json:"south_west"`
	NorthEast Geo `json:"north_east"`
}

func (Rectangle) Kind() string { return "rectangle" }

// Valid reports whether the rectangle encloses a non-empty area.
func (r Rectangle) Valid() bool {
	return r.SouthWest.Lat < r.NorthEast.Lat && r.SouthWest.Lon != r.NorthEast.Lon
}

// Center returns the midpoint of the rectangle.
func (r Rectangle) Center() Geo {
	lon := (r.SouthWest.Lon + r.NorthEast.Lon) / 2
	if r.SouthWest.Lon > r.NorthEast.Lon {
		lon += 180
		if lon > 180 {
			lon -= 360
		}
	}
	return Geo{Lat: (r.SouthWest.Lat + r.NorthEast.Lat) / 2, Lon: lon}
}

func (r Rectangle) Contains(p Geo) bool {
	if !r.Valid() {
		return true
	}
	pt := geom.XY{X: p.Lon, Y: p.Lat}
	if r.SouthWest.Lon < r.NorthEast.Lon {
		return envelopeContains(r.SouthWest.Lon, r.NorthEast.Lon, r.SouthWest.Lat, r.NorthEast.Lat, pt)
	}
	// Antimeridian crossing: split into an eastern and a western box.
	return envelopeContains(r.SouthWest.Lon, 180, r.SouthWest.Lat, r.NorthEast.Lat, pt) ||
		envelopeContains(-180, r.NorthEast.Lon, r.SouthWest.Lat, r.NorthEast.Lat, pt)
}

// envelopeContains reports whether pt lies in the box. A box that cannot be
// built (non-finite bounds) contains every position.
func envelopeContains(minLon, maxLon, minLat, maxLat float64, pt geom.XY) bool {
	env, err := geom.NewEnvelope([]geom.XY{{X: minLon, Y: minLat}, {X: maxLon, Y: maxLat}})
	if err != nil {
		return true
	}
	return env.Contains(pt)
}

// Polygon is an arbitrary drawn shape given by its vertices in drawing order.
// The ring is closed implicitly.
type Polygon struct {
	Vertices []Geo `json:"vertices"`

	poly  geom.Polygon
	built bool
}

// NewPolygon builds a polygon selector from its vertices. A ring that is not
// simple (self-intersecting or collinear) leaves the selector inactive.
func NewPolygon(vertices []Geo) *Polygon {
	p := &Polygon{Vertices: vertices}
	if !p.Valid() {
		return p
	}
	if poly, err := buildPolygon(vertices); err == nil {
		p.poly = poly
		p.built = true
	}
	return p
}

func (*Polygon) Kind() string { return "polygon" }

// Valid reports whether the polygon has at least three distinct vertices.
// A valid polygon may still be inactive; see Active.
func (p *Polygon) Valid() bool {
	seen := make(map[Geo]struct{}, len(p.Vertices))
	for _, v := range p.Vertices {
		seen[v] = struct{}{}
	}
	return len(seen) >= 3
}

// Active reports whether the polygon constrains positions at all.
func (p *Polygon) Active() bool {
	return p.built
}

func (p *Polygon) Contains(pos Geo) bool {
	if !p.built {
		return true
	}
	pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: pos.Lon, Y: pos.Lat}, Type: geom.DimXY})
	if err != nil {
		return false
	}
	return geom.Intersects(p.poly.AsGeometry(), pt.AsGeometry())
}

func buildPolygon(vertices []Geo) (geom.Polygon, error) {
	coords := make([]float64, 0, 2*(len(vertices)+1))
	for _, v := range vertices {
		coords = append(coords, v.Lon, v.Lat)
	}
	first, last := vertices[0], vertices[len(vertices)-1]
	if first != last {
		coords = append(coords, first.Lon, first.Lat)
	}
	ring, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, err
	}
	return geom.NewPolygon([]geom.LineString{ring})
}
