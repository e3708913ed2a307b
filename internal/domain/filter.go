package domain

import "time"

// DateRange is the half-open interval [Start, End). A zero bound is inactive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in the interval. A marker dated exactly at
// End is excluded.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// CategorySet is the set of enabled category keys.
type CategorySet map[string]bool

// Clone returns an independent copy of the set.
func (c CategorySet) Clone() CategorySet {
	out := make(CategorySet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Keys returns the enabled keys.
func (c CategorySet) Keys() []string {
	keys := make([]string, 0, len(c))
	for k, on := range c {
		if on {
			keys = append(keys, k)
		}
	}
	return keys
}

// FilterState is the complete set of filter inputs for a session.
type FilterState struct {
	Dates      DateRange
	MinDate    time.Time
	Spatial    Selector
	Categories CategorySet
}

// Matches reports whether a marker passes every active predicate.
func (f FilterState) Matches(m Marker) bool {
	if !f.Dates.Contains(m.Date) {
		return false
	}
	if f.Spatial != nil && !f.Spatial.Contains(m.Geo) {
		return false
	}
	return m.HasAnyCategory(f.Categories)
}

// ResetDates restores the range to [MinDate, now).
func (f *FilterState) ResetDates() {
	f.Dates = DateRange{Start: f.MinDate, End: clock.Now()}
}

// Recompute returns the markers of all that pass the filter, in their
// original order. The result is never nil.
func Recompute(all []Marker, f FilterState) []Marker {
	visible := make([]Marker, 0, len(all))
	for _, m := range all {
		if f.Matches(m) {
			visible = append(visible, m)
		}
	}
	return visible
}
