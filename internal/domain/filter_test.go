package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func marker(id string, date time.Time, cats ...string) Marker {
	m := Marker{ID: id, Date: date, Geo: Geo{Lat: 39.95, Lon: -75.19}, Categories: map[string]bool{}}
	for _, c := range cats {
		m.Categories[c] = true
	}
	return m
}

func ids(markers []Marker) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = m.ID
	}
	return out
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{Start: day(2023, 1, 1), End: day(2023, 6, 1)}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"at start is included", day(2023, 1, 1), true},
		{"inside", day(2023, 3, 15), true},
		{"just before end", day(2023, 6, 1).Add(-time.Nanosecond), true},
		{"at end is excluded", day(2023, 6, 1), false},
		{"before start", day(2022, 12, 31), false},
		{"after end", day(2023, 7, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Contains(tt.at))
		})
	}
}

func TestDateRange_UnsetBoundsAreInactive(t *testing.T) {
	assert.True(t, DateRange{}.Contains(day(1999, 1, 1)))
	assert.True(t, DateRange{Start: day(2023, 1, 1)}.Contains(day(2030, 1, 1)))
	assert.True(t, DateRange{End: day(2023, 1, 1)}.Contains(day(2000, 1, 1)))
	assert.False(t, DateRange{End: day(2023, 1, 1)}.Contains(day(2023, 1, 1)))
}

func TestHasAnyCategory_InclusiveOr(t *testing.T) {
	m := Marker{Categories: map[string]bool{"car": true, "bus": false}}

	assert.False(t, m.HasAnyCategory(CategorySet{"bus": true}))
	assert.True(t, m.HasAnyCategory(CategorySet{"car": true}))
	assert.True(t, m.HasAnyCategory(CategorySet{"car": true, "bus": true}))
	assert.False(t, m.HasAnyCategory(CategorySet{"car": false, "bus": true}))

	none := Marker{Categories: map[string]bool{"car": false, "bus": false}}
	assert.False(t, none.HasAnyCategory(CategorySet{"car": true, "bus": true, "truck": true}))
	assert.False(t, Marker{}.HasAnyCategory(CategorySet{"car": true}))
}

func TestRecompute_Scenario(t *testing.T) {
	m1 := marker("m1", day(2023, 1, 1), "car")
	m2 := marker("m2", day(2023, 6, 1), "bus")

	f := FilterState{
		Dates:      DateRange{Start: day(2023, 1, 1), End: day(2023, 6, 1)},
		Categories: CategorySet{"car": true},
	}

	visible := Recompute([]Marker{m1, m2}, f)
	assert.Equal(t, []string{"m1"}, ids(visible))
}

func TestRecompute_EmptyInput(t *testing.T) {
	visible := Recompute(nil, FilterState{Categories: CategorySet{"car": true}})
	require.NotNil(t, visible)
	assert.Empty(t, visible)
}

func TestRecompute_StartAfterEndYieldsNothing(t *testing.T) {
	all := []Marker{
		marker("a", day(2023, 2, 1), "car"),
		marker("b", day(2023, 4, 1), "car"),
	}
	f := FilterState{
		Dates:      DateRange{Start: day(2023, 5, 1), End: day(2023, 1, 1)},
		Categories: CategorySet{"car": true},
	}
	assert.Empty(t, Recompute(all, f))
}

func TestRecompute_NoCategoriesCheckedShowsNothing(t *testing.T) {
	all := []Marker{marker("a", day(2023, 2, 1), "car", "bus")}
	assert.Empty(t, Recompute(all, FilterState{Categories: CategorySet{}}))
	assert.Empty(t, Recompute(all, FilterState{}))
}

func TestRecompute_SubsetOrderAndIdempotence(t *testing.T) {
	all := []Marker{
		marker("a", day(2023, 1, 5), "car"),
		marker("b", day(2023, 2, 5), "bus"),
		marker("c", day(2023, 3, 5), "truck"),
		marker("d", day(2023, 4, 5), "car", "truck"),
		marker("e", day(2023, 5, 5)),
	}
	f := FilterState{
		Dates:      DateRange{Start: day(2023, 1, 1), End: day(2023, 12, 1)},
		Categories: CategorySet{"car": true, "truck": true},
	}

	once := Recompute(all, f)
	assert.Equal(t, []string{"a", "c", "d"}, ids(once))

	twice := Recompute(once, f)
	assert.Equal(t, ids(once), ids(twice))

	allIDs := map[string]bool{}
	for _, m := range all {
		allIDs[m.ID] = true
	}
	for _, m := range once {
		assert.True(t, allIDs[m.ID], "visible marker %s not in input", m.ID)
	}
}

func TestRecompute_SpatialSelector(t *testing.T) {
	inside := marker("in", day(2023, 1, 5), "car")
	inside.Geo = Geo{Lat: 39.95, Lon: -75.19}
	outside := marker("out", day(2023, 1, 5), "car")
	outside.Geo = Geo{Lat: 40.5, Lon: -74.0}

	rect := Rectangle{SouthWest: Geo{Lat: 39.9, Lon: -75.3}, NorthEast: Geo{Lat: 40.0, Lon: -75.1}}
	f := FilterState{Spatial: rect, Categories: CategorySet{"car": true}}

	assert.Equal(t, []string{"in"}, ids(Recompute([]Marker{inside, outside}, f)))

	f.Spatial = nil
	assert.Equal(t, []string{"in", "out"}, ids(Recompute([]Marker{inside, outside}, f)))
}

func TestFilterState_ResetDates(t *testing.T) {
	now := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	f := FilterState{MinDate: day(2022, 3, 1), Dates: DateRange{Start: day(2023, 1, 1), End: day(2023, 2, 1)}}
	f.ResetDates()

	assert.Equal(t, day(2022, 3, 1), f.Dates.Start)
	assert.Equal(t, now, f.Dates.End)
}

func TestFilterState_ResetRestoresAll(t *testing.T) {
	now := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	defer SetClock(nil)

	all := []Marker{
		marker("a", day(2022, 3, 1), "car"),
		marker("b", day(2023, 6, 1), "bus"),
		marker("c", day(2024, 1, 1), "truck"),
	}
	f := FilterState{
		MinDate:    MinDate(all),
		Dates:      DateRange{Start: day(2023, 1, 1), End: day(2023, 2, 1)},
		Categories: CategorySet{"car": true, "bus": true, "truck": true},
	}
	assert.Empty(t, Recompute(all, f))

	f.ResetDates()
	assert.Equal(t, ids(all), ids(Recompute(all, f)))
}

func TestCategorySet_Clone(t *testing.T) {
	orig := CategorySet{"car": true}
	clone := orig.Clone()
	clone["bus"] = true

	assert.Len(t, orig, 1)
	assert.ElementsMatch(t, []string{"car", "bus"}, clone.Keys())
}
