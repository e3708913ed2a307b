package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerStore_InitializeMakesAllVisible(t *testing.T) {
	s := NewMarkerStore()
	markers := []Marker{
		marker("a", day(2023, 1, 1), "car"),
		marker("b", day(2023, 2, 1), "bus"),
	}
	s.Initialize(markers)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, ids(s.Visible()))
	assert.True(t, s.IsVisible("a"))
	assert.True(t, s.IsVisible("b"))
}

func TestMarkerStore_InitializeAssignsIDs(t *testing.T) {
	s := NewMarkerStore()
	m := marker("", day(2023, 1, 1), "car")
	s.Initialize([]Marker{m, m, marker("x", day(2023, 1, 1)), marker("x", day(2023, 1, 2))})

	all := s.All()
	require.Len(t, all, 4)
	assert.Equal(t, GenerateID(m), all[0].ID)
	assert.Equal(t, GenerateID(m)+"-2", all[1].ID)
	assert.Equal(t, "x", all[2].ID)
	assert.Equal(t, "x-2", all[3].ID)
}

func TestMarkerStore_SetVisible(t *testing.T) {
	s := NewMarkerStore()
	a := marker("a", day(2023, 1, 1), "car")
	b := marker("b", day(2023, 2, 1), "bus")
	c := marker("c", day(2023, 3, 1), "truck")
	s.Initialize([]Marker{a, b, c})

	require.NoError(t, s.SetVisible([]Marker{c, a, a}))

	assert.Equal(t, []string{"a", "c"}, ids(s.Visible()))
	assert.True(t, s.IsVisible("a"))
	assert.False(t, s.IsVisible("b"))
	assert.True(t, s.IsVisible("c"))
	assert.False(t, s.IsVisible("missing"))
}

func TestMarkerStore_SetVisibleRejectsUnknown(t *testing.T) {
	s := NewMarkerStore()
	s.Initialize([]Marker{marker("a", day(2023, 1, 1), "car")})
	require.NoError(t, s.SetVisible(nil))

	err := s.SetVisible([]Marker{marker("zzz", day(2023, 1, 1))})
	require.ErrorIs(t, err, ErrUnknownMarker)
	assert.Empty(t, s.Visible(), "failed update must not change visibility")
}

func TestMarkerStore_Empty(t *testing.T) {
	s := NewMarkerStore()
	s.Initialize(nil)

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Visible())
	require.NoError(t, s.SetVisible(Recompute(s.All(), FilterState{})))
}

func TestMinDateAndBounds(t *testing.T) {
	a := marker("a", day(2023, 5, 1))
	a.Geo = Geo{Lat: 39.90, Lon: -75.30}
	b := marker("b", day(2022, 1, 1))
	b.Geo = Geo{Lat: 40.10, Lon: -75.00}

	assert.Equal(t, day(2022, 1, 1), MinDate([]Marker{a, b}))
	assert.True(t, MinDate(nil).IsZero())

	bounds, ok := BoundsOf([]Marker{a, b})
	require.True(t, ok)
	assert.Equal(t, Geo{Lat: 39.90, Lon: -75.30}, bounds.SouthWest)
	assert.Equal(t, Geo{Lat: 40.10, Lon: -75.00}, bounds.NorthEast)

	_, ok = BoundsOf(nil)
	assert.False(t, ok)
}

func TestGenerateID_Deterministic(t *testing.T) {
	m := Marker{Date: time.Date(2023, 1, 1, 8, 30, 0, 0, time.UTC), Geo: Geo{Lat: 39.95, Lon: -75.19}, Location: "30th St"}
	assert.Equal(t, GenerateID(m), GenerateID(m))

	other := m
	other.Location = "34th St"
	assert.NotEqual(t, GenerateID(m), GenerateID(other))
	assert.Regexp(t, `^inc-[0-9a-f]{16}$`, GenerateID(m))
}
