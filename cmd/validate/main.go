// Command validate performs data integrity checks on a reports spreadsheet
// before it is loaded into the map: header and row shape, import errors,
// schema alignment of the parsed markers, and a lossless export round trip.
// When a markers JSON file (for example genmock -json-out) is given, it is
// cross-checked against the spreadsheet.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -schema vehicles \
//	  -csv data/mock/reports.csv \
//	  -json data/mock/reports.json
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
	"github.com/couchcryptid/incident-map/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	schemaName := flag.String("schema", "vehicles", "built-in schema name")
	schemaPath := flag.String("schema-file", "", "schema YAML file, overrides -schema")
	csvPath := flag.String("csv", "", "path to the reports CSV")
	jsonPath := flag.String("json", "", "optional path to a markers JSON file to cross-check")
	asOf := flag.String("as-of", "", "treat this date (YYYY-MM-DD) as today for future-date checks")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if *asOf != "" {
		t, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: -as-of: %v\n", err)
			os.Exit(1)
		}
		domain.SetClock(clockwork.NewFakeClockAt(t))
	}

	schema, err := config.LoadSchema(*schemaName, *schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(schema, *csvPath, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(schema domain.Schema, csvPath, jsonPath string) int {
	fmt.Println("=== Incident Report Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read CSV: %v\n", err)
		return 1
	}

	rows, err := loadRows(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	res, err := parse(schema, data)
	if err != nil && !errors.Is(err, pipeline.ErrHeaderMismatch) {
		fmt.Fprintf(os.Stderr, "FATAL: parse CSV: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateShape(schema, rows),
		validateImport(res, err),
		validateSchemaAlignment(schema, res.Markers),
		validateRoundTrip(schema, res.Markers, includesAdmin(schema, rows)),
	}

	var jsonMarkers []domain.Marker
	if jsonPath != "" {
		jsonMarkers, err = loadJSON[domain.Marker](jsonPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load JSON: %v\n", err)
			return 1
		}
		phases = append(phases, validateCrossRef(res.Markers, jsonMarkers))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV rows, %d imported markers", max(len(rows)-1, 0), len(res.Markers))
	if jsonPath != "" {
		fmt.Printf(", %d JSON markers", len(jsonMarkers))
	}
	fmt.Println()

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// loadRows reads the raw records, header included, without any schema.
func loadRows(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	return rows, nil
}

func parse(schema domain.Schema, data []byte) (pipeline.Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parser := pipeline.NewParser(schema, pipeline.NewTransformer(nil, logger), logger, observability.NewMetricsForTesting())
	res, err := parser.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		return pipeline.Result{}, err
	}
	for i := range res.Markers {
		res.Markers[i].ID = domain.GenerateID(res.Markers[i])
	}
	return res, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func includesAdmin(schema domain.Schema, rows [][]string) bool {
	return len(rows) > 0 && len(rows[0]) == len(schema.Header(true))
}

// ── Phase 1: Header and Shape ──
// Validates the header against the schema and that every row has the
// header's width. A wider row usually means an unquoted comma in a cell.

func validateShape(schema domain.Schema, rows [][]string) *phase {
	p := &phase{name: "Phase 1: Header and Shape (raw CSV)"}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	base, admin := schema.Header(false), schema.Header(true)
	if !headerEqual(header, base) && !headerEqual(header, admin) {
		p.errorf("header %q matches neither %q nor the admin header", strings.Join(header, ","), strings.Join(base, ","))
		return p
	}

	for i, row := range rows[1:] {
		if len(row) != len(header) {
			p.errorf("line %d: %d cells, header has %d", i+2, len(row), len(header))
		}
	}
	return p
}

func headerEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want[i]) {
			return false
		}
	}
	return true
}

// ── Phase 2: Import ──
// Validates that every row is accepted by the import parser without
// geocoding, so the file loads the same way in every environment.

func validateImport(res pipeline.Result, parseErr error) *phase {
	p := &phase{name: "Phase 2: Import (parser)"}
	if parseErr != nil {
		p.errorf("%v", parseErr)
		return p
	}
	for _, e := range res.Errors {
		p.errorf("%s", e)
	}
	return p
}

// ── Phase 3: Schema Alignment ──
// Validates parsed markers against the map's display rules.

func validateSchemaAlignment(schema domain.Schema, markers []domain.Marker) *phase {
	p := &phase{name: "Phase 3: Schema Alignment (markers)"}

	now := domain.Now()
	seen := map[string]int{}
	for i := range markers {
		m := &markers[i]
		pf := func(format string, args ...any) {
			p.errorf("marker %d (ID %s): "+format, append([]any{i, m.ID}, args...)...)
		}

		if !m.HasAnyCategory(schema.AllCategories()) {
			pf("no category flagged, hidden even with every box checked")
		}
		if m.Geo.IsZero() {
			pf("coordinates are both zero")
		} else if !m.Geo.Valid() {
			pf("coordinates out of range: %g,%g", m.Geo.Lat, m.Geo.Lon)
		}
		if m.Date.After(now) {
			pf("date %s is in the future, hidden by the default date range", m.Date.Format(domain.DateLayout))
		}
		if prev, dup := seen[m.ID]; dup {
			pf("duplicate of marker %d", prev)
		} else {
			seen[m.ID] = i
		}
	}
	return p
}

// ── Phase 4: Export Round Trip ──
// Validates that exporting the markers and importing the export again yields
// the same markers.

func validateRoundTrip(schema domain.Schema, markers []domain.Marker, admin bool) *phase {
	p := &phase{name: "Phase 4: Export Round Trip"}

	exported := domain.FormatCSV(schema, markers, admin)
	res, err := parse(schema, []byte(exported))
	if err != nil {
		p.errorf("re-import: %v", err)
		return p
	}
	for _, e := range res.Errors {
		p.errorf("re-import %s", e)
	}
	if len(res.Markers) != len(markers) {
		p.errorf("count: exported %d, re-imported %d", len(markers), len(res.Markers))
		return p
	}
	for i := range markers {
		if diff := cmp.Diff(markers[i], res.Markers[i], markerOpts...); diff != "" {
			p.errorf("marker %d (ID %s) changed (-before +after):\n%s", i, markers[i].ID, diff)
		}
	}
	return p
}

// ── Phase 5: Cross Reference ──
// Validates the markers JSON against the spreadsheet by ID.

func validateCrossRef(csvMarkers, jsonMarkers []domain.Marker) *phase {
	p := &phase{name: "Phase 5: Cross Reference (JSON vs CSV)"}

	byID := make(map[string]*domain.Marker, len(csvMarkers))
	for i := range csvMarkers {
		byID[csvMarkers[i].ID] = &csvMarkers[i]
	}

	if len(jsonMarkers) != len(csvMarkers) {
		p.errorf("count: CSV has %d markers, JSON has %d", len(csvMarkers), len(jsonMarkers))
	}
	for i := range jsonMarkers {
		want, ok := byID[jsonMarkers[i].ID]
		if !ok {
			p.errorf("JSON marker %d: ID %q not found in CSV", i, jsonMarkers[i].ID)
			continue
		}
		if diff := cmp.Diff(*want, jsonMarkers[i], markerOpts...); diff != "" {
			p.errorf("ID %s differs (-csv +json):\n%s", want.ID, diff)
		}
	}
	return p
}

// markerOpts compare markers ignoring nil versus empty collections and the
// false category flags that JSON and CSV represent differently.
var markerOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmp.FilterPath(func(path cmp.Path) bool {
		return path.Last().String() == ".Categories"
	}, cmp.Transformer("trueFlags", trueFlags)),
}

func trueFlags(flags map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k, v := range flags {
		if v {
			out[k] = true
		}
	}
	return out
}
