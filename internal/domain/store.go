package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownMarker is returned when a visible subset names a marker that was
// never loaded.
var ErrUnknownMarker = errors.New("unknown marker")

// MarkerStore holds the complete marker sequence of a session and the subset
// currently visible. It is not safe for concurrent use; the session event
// loop owns it.
type MarkerStore struct {
	all     []Marker
	index   map[string]int
	on      []bool
	visible []Marker
}

// NewMarkerStore returns an empty store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{index: map[string]int{}}
}

// Initialize loads the session's markers and makes all of them visible.
// Missing IDs are generated and duplicate IDs get a numeric suffix so every
// marker stays addressable.
func (s *MarkerStore) Initialize(markers []Marker) {
	s.all = make([]Marker, len(markers))
	s.index = make(map[string]int, len(markers))
	s.on = make([]bool, len(markers))

	for i, m := range markers {
		if m.ID == "" {
			m.ID = GenerateID(m)
		}
		base := m.ID
		for n := 2; ; n++ {
			if _, dup := s.index[m.ID]; !dup {
				break
			}
			m.ID = base + "-" + strconv.Itoa(n)
		}
		s.all[i] = m
		s.index[m.ID] = i
		s.on[i] = true
	}
	s.visible = append([]Marker(nil), s.all...)
}

// SetVisible replaces the visible subset. Every marker must come from the
// store; duplicates collapse. The stored visible order follows the store
// order.
func (s *MarkerStore) SetVisible(subset []Marker) error {
	on := make([]bool, len(s.all))
	for _, m := range subset {
		i, ok := s.index[m.ID]
		if !ok {
			return fmt.Errorf("set visible %q: %w", m.ID, ErrUnknownMarker)
		}
		on[i] = true
	}

	visible := make([]Marker, 0, len(subset))
	for i, m := range s.all {
		if on[i] {
			visible = append(visible, m)
		}
	}
	s.on = on
	s.visible = visible
	return nil
}

// All returns the complete marker sequence. Callers must not modify it.
func (s *MarkerStore) All() []Marker {
	return s.all
}

// Visible returns the visible subset. Callers must not modify it.
func (s *MarkerStore) Visible() []Marker {
	return s.visible
}

// IsVisible reports whether the marker with the given ID is on the map.
func (s *MarkerStore) IsVisible(id string) bool {
	i, ok := s.index[id]
	return ok && s.on[i]
}

// Len returns the number of loaded markers.
func (s *MarkerStore) Len() int {
	return len(s.all)
}
