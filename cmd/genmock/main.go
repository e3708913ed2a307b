// Command genmock generates a deterministic mock reports spreadsheet for a
// deployment schema. Rows are rendered with the same formatter the map uses
// for downloads and then parsed back with the import parser, so the fixture
// is guaranteed to load.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -schema vehicles \
//	  -count 250 \
//	  -csv-out data/mock/reports.csv \
//	  -json-out data/mock/reports.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/incident-map/internal/config"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
	"github.com/couchcryptid/incident-map/internal/pipeline"
)

var (
	baseDate = time.Date(2023, time.January, 1, 7, 0, 0, 0, time.UTC)
	center   = domain.Geo{Lat: 39.952, Lon: -75.195}
)

var (
	streets = []string{
		"Market St", "Chestnut St", "Walnut St", "Spruce St", "Pine St",
		"Broad St", "Spring Garden St", "Girard Ave", "Lancaster Ave", "Baltimore Ave",
	}
	crossings = []string{"30th St", "22nd St", "15th St", "12th St", "5th St", "40th St"}
	summaries = []string{
		"Vehicle blocked the bike lane",
		"Passed too close while overtaking",
		"Door opened into traffic",
		"Right hook at the intersection",
		"Ran the red light",
		"Pulled out without looking",
	}
	conditions = []string{"dry", "wet", "icy", ""}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	schemaName := flag.String("schema", "vehicles", "built-in schema name")
	schemaPath := flag.String("schema-file", "", "schema YAML file, overrides -schema")
	count := flag.Int("count", 250, "number of reports to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	admin := flag.Bool("admin", true, "include contact columns")
	csvOut := flag.String("csv-out", "", "output path for the reports CSV")
	jsonOut := flag.String("json-out", "", "optional output path for the parsed markers as JSON")
	flag.Parse()

	if *csvOut == "" || *count <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, positive -count")
	}

	schema, err := config.LoadSchema(*schemaName, *schemaPath)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	markers := make([]domain.Marker, *count)
	for i := range markers {
		markers[i] = mockMarker(rng, schema, i)
	}

	body := domain.FormatCSV(schema, markers, *admin)
	parsed, err := roundTrip(schema, body)
	if err != nil {
		return fmt.Errorf("verify generated csv: %w", err)
	}

	if err := writeFile(*csvOut, []byte(body+"\n")); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	log.Printf("wrote %d reports: %s", len(parsed), *csvOut)

	if *jsonOut != "" {
		data, err := json.MarshalIndent(parsed, "", "  ")
		if err != nil {
			return err
		}
		if err := writeFile(*jsonOut, append(data, '\n')); err != nil {
			return fmt.Errorf("writing json: %w", err)
		}
		log.Printf("wrote markers: %s", *jsonOut)
	}

	printStats(schema, parsed)
	return nil
}

func mockMarker(rng *rand.Rand, schema domain.Schema, i int) domain.Marker {
	m := domain.Marker{
		Geo: domain.Geo{
			Lat: round(center.Lat+rng.NormFloat64()*0.03, 5),
			Lon: round(center.Lon+rng.NormFloat64()*0.04, 5),
		},
		Date:           baseDate.Add(time.Duration(rng.IntN(365*24*60)) * time.Minute),
		Categories:     map[string]bool{},
		Location:       pick(rng, streets) + " & " + pick(rng, crossings),
		Description:    pick(rng, summaries),
		RoadConditions: pick(rng, conditions),
	}

	// Every report has at least one category so it shows with all boxes checked.
	first := schema.Categories[rng.IntN(len(schema.Categories))].Key
	m.Categories[first] = true
	for _, c := range schema.Categories {
		if c.Key != first && rng.IntN(6) == 0 {
			m.Categories[c.Key] = true
		}
	}

	if rng.IntN(4) == 0 {
		m.Injuries = "yes"
		m.InjuriesDescription = "Minor abrasions"
	}
	if rng.IntN(3) == 0 {
		m.LicensePlates = []string{fmt.Sprintf("%c%c%c%04d", 'A'+rng.IntN(26), 'A'+rng.IntN(26), 'A'+rng.IntN(26), rng.IntN(10000))}
	}
	if rng.IntN(5) == 0 {
		m.PictureURL = fmt.Sprintf("https://example.org/reports/%d.jpg", i)
	}
	if rng.IntN(2) == 0 {
		m.Contact = domain.Contact{
			Name:  fmt.Sprintf("Reporter %d", i),
			Email: fmt.Sprintf("reporter%d@example.org", i),
		}
	}
	return m
}

// roundTrip parses the generated CSV with the import parser and fails on any
// rejected row.
func roundTrip(schema domain.Schema, body string) ([]domain.Marker, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parser := pipeline.NewParser(schema, pipeline.NewTransformer(nil, logger), logger, observability.NewMetricsForTesting())
	res, err := parser.Parse(context.Background(), bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%d rows rejected, first: %s", len(res.Errors), res.Errors[0])
	}
	for i := range res.Markers {
		res.Markers[i].ID = domain.GenerateID(res.Markers[i])
	}
	return res.Markers, nil
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type keyCount struct {
	key   string
	count int
}

func printStats(schema domain.Schema, markers []domain.Marker) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(markers))

	counts := make([]keyCount, 0, len(schema.Categories))
	for _, c := range schema.Categories {
		n := 0
		for i := range markers {
			if markers[i].Categories[c.Key] {
				n++
			}
		}
		counts = append(counts, keyCount{c.Key, n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	parts := make([]string, len(counts))
	for i, kc := range counts {
		parts[i] = fmt.Sprintf("%s=%d", kc.key, kc.count)
	}
	fmt.Printf("By category: %s\n", strings.Join(parts, ", "))

	fmt.Printf("Earliest: %s\n", domain.MinDate(markers).Format(domain.DateLayout))
	if bounds, ok := domain.BoundsOf(markers); ok {
		fmt.Printf("Bounds: %g,%g to %g,%g\n",
			bounds.SouthWest.Lat, bounds.SouthWest.Lon, bounds.NorthEast.Lat, bounds.NorthEast.Lon)
	}

	var withContact, firstHalf int
	mid := baseDate.AddDate(0, 6, 0)
	for i := range markers {
		if !markers[i].Contact.IsZero() {
			withContact++
		}
		if markers[i].Date.Before(mid) {
			firstHalf++
		}
	}
	fmt.Printf("With contact: %d\n", withContact)
	fmt.Printf("Before %s: %d\n", mid.Format("2006-01-02"), firstHalf)
}
