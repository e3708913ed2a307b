// Package domain models incident reports shown on the map and the rules that
// decide which of them are visible.
//
// # Markers
//
// A [Marker] is one incident report: a position, an incident instant, a set
// of category flags and free-text details. Markers are loaded once per
// session and never change afterwards; only their visibility does. The
// [MarkerStore] keeps the complete sequence and the visible subset.
//
// # Filtering
//
// [Recompute] evaluates every marker against a [FilterState], a conjunction
// of three independent predicates:
//
//	date:     Start <= Date < End      (half-open; a zero bound is inactive)
//	spatial:  inside the Rectangle or Polygon, if one is drawn
//	category: at least one enabled category flag is true (inclusive OR)
//
// Malformed inputs never fail: an unset date bound, a polygon with fewer
// than three vertices or a degenerate rectangle makes its predicate always
// true. A Start after End simply matches nothing.
//
// With every category unchecked nothing is visible. That follows directly
// from the inclusive-OR rule and is kept as is.
//
// # Schemas
//
// Category vocabularies and export columns differ between deployments
// (vehicles: car/bus/truck/bicycle/pedestrian; modes:
// automobile/bicycle/pedestrian/other). A [Schema] carries both so the store,
// the filter and the formatter stay schema-parametric. Column fields are
// referenced by name, see [Field].
//
// # Export
//
// [FormatCSV] joins columns with "," and multi-valued cells with ";". Cells
// are not quoted, so a comma inside free text shifts the columns of that row.
// This is a known limitation of the export format.
//
// # IDs
//
// Marker IDs are truncated SHA-256 hashes of date|lat|lon|location|
// description, so re-importing the same report yields the same ID. See
// [GenerateID].
package domain
