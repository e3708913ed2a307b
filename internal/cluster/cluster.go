// Package cluster groups visible markers into screen-space grid cells, the
// server-side counterpart of a map marker clusterer.
package cluster

import (
	"math"
	"sort"
	"sync"

	"github.com/wroge/wgs84"

	"github.com/couchcryptid/incident-map/internal/domain"
)

const (
	tileSize = 256

	// originShift is half the Web Mercator world width in meters.
	originShift = 20037508.342789244

	// maxLat is the Web Mercator latitude limit.
	maxLat = 85.05112878
)

// Options configures the grid clusterer.
type Options struct {
	// GridSize is the cell edge in screen pixels.
	GridSize int
	// MaxZoom is the highest zoom that still clusters; above it every marker
	// is shown on its own.
	MaxZoom int
	// MinClusterSize is the smallest cell population drawn as a cluster.
	MinClusterSize int
}

// DefaultOptions mirrors the browser clusterer settings.
func DefaultOptions() Options {
	return Options{GridSize: 50, MaxZoom: 15, MinClusterSize: 15}
}

// Cluster is a group of markers drawn as one icon.
type Cluster struct {
	Center    domain.Geo       `json:"center"`
	Bounds    domain.Rectangle `json:"bounds"`
	Count     int              `json:"count"`
	MarkerIDs []string         `json:"marker_ids"`
}

type point struct {
	marker domain.Marker
	x, y   float64 // EPSG:3857 meters
}

// Index holds the projected visible set and answers cluster queries per zoom.
// Rebuild is called from the session loop while Clusters is called from HTTP
// handlers, so both take the lock.
type Index struct {
	opts Options

	mu     sync.RWMutex
	points []point
	gen    uint64
	cache  map[int]result
}

type result struct {
	clusters []Cluster
	singles  []domain.Marker
}

// NewIndex creates an empty index. Non-positive options fall back to the
// defaults.
func NewIndex(opts Options) *Index {
	def := DefaultOptions()
	if opts.GridSize <= 0 {
		opts.GridSize = def.GridSize
	}
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = def.MaxZoom
	}
	if opts.MinClusterSize <= 0 {
		opts.MinClusterSize = def.MinClusterSize
	}
	return &Index{opts: opts, cache: map[int]result{}}
}

// Options returns the effective clusterer settings.
func (ix *Index) Options() Options {
	return ix.opts
}

// Rebuild replaces the indexed markers with visible.
func (ix *Index) Rebuild(visible []domain.Marker) {
	transform := wgs84.EPSG().Transform(4326, 3857)

	points := make([]point, len(visible))
	for i, m := range visible {
		lat := math.Max(-maxLat, math.Min(maxLat, m.Geo.Lat))
		x, y, _ := transform(m.Geo.Lon, lat, 0)
		points[i] = point{marker: m, x: x, y: y}
	}

	ix.mu.Lock()
	ix.points = points
	ix.gen++
	ix.cache = map[int]result{}
	ix.mu.Unlock()
}

// Len returns the number of indexed markers.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.points)
}

// Clusters groups the indexed markers for zoom. It returns the clusters and
// the markers drawn individually, the latter in visible order.
func (ix *Index) Clusters(zoom int) ([]Cluster, []domain.Marker) {
	if zoom < 0 {
		zoom = 0
	}

	ix.mu.RLock()
	if r, ok := ix.cache[zoom]; ok {
		ix.mu.RUnlock()
		return r.clusters, r.singles
	}
	points, gen := ix.points, ix.gen
	ix.mu.RUnlock()

	r := ix.group(points, zoom)

	ix.mu.Lock()
	// Skip caching if a Rebuild swapped the points meanwhile.
	if ix.gen == gen {
		ix.cache[zoom] = r
	}
	ix.mu.Unlock()
	return r.clusters, r.singles
}

type cellKey struct{ col, row int64 }

func (ix *Index) group(points []point, zoom int) result {
	singles := make([]domain.Marker, 0, len(points))
	if zoom > ix.opts.MaxZoom {
		for _, p := range points {
			singles = append(singles, p.marker)
		}
		return result{clusters: []Cluster{}, singles: singles}
	}

	worldSize := float64(tileSize) * math.Exp2(float64(zoom))
	grid := float64(ix.opts.GridSize)

	cells := map[cellKey][]int{}
	var order []cellKey
	for i, p := range points {
		px := (p.x + originShift) / (2 * originShift) * worldSize
		py := (originShift - p.y) / (2 * originShift) * worldSize
		key := cellKey{col: int64(math.Floor(px / grid)), row: int64(math.Floor(py / grid))}
		if _, ok := cells[key]; !ok {
			order = append(order, key)
		}
		cells[key] = append(cells[key], i)
	}

	clustered := make([]bool, len(points))
	clusters := []Cluster{}
	for _, key := range order {
		members := cells[key]
		if len(members) < ix.opts.MinClusterSize {
			continue
		}
		clusters = append(clusters, newCluster(points, members))
		for _, i := range members {
			clustered[i] = true
		}
	}
	for i, p := range points {
		if !clustered[i] {
			singles = append(singles, p.marker)
		}
	}
	return result{clusters: clusters, singles: singles}
}

func newCluster(points []point, members []int) Cluster {
	c := Cluster{Count: len(members), MarkerIDs: make([]string, 0, len(members))}
	group := make([]domain.Marker, 0, len(members))
	var sumLat, sumLon float64
	for _, i := range members {
		m := points[i].marker
		group = append(group, m)
		c.MarkerIDs = append(c.MarkerIDs, m.ID)
		sumLat += m.Geo.Lat
		sumLon += m.Geo.Lon
	}
	n := float64(len(members))
	c.Center = domain.Geo{Lat: sumLat / n, Lon: sumLon / n}
	c.Bounds, _ = domain.BoundsOf(group)
	sort.Strings(c.MarkerIDs)
	return c
}
