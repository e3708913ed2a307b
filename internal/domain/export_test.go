package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Name: "vehicles",
		Categories: []Category{
			{Key: "car", Label: "Car"},
			{Key: "bus", Label: "Bus"},
		},
		Columns: []Column{
			{Header: "DATE", Field: FieldDate},
			{Header: "LOCATION", Field: FieldLocation},
			{Header: "CAR", Field: CategoryField("car")},
			{Header: "BUS", Field: CategoryField("bus")},
			{Header: "LICENSE PLATES", Field: FieldLicensePlates},
			{Header: "DESCRIPTION", Field: FieldDescription},
		},
	}
}

func sampleMarkers() []Marker {
	return []Marker{
		{
			ID:            "a",
			Date:          time.Date(2023, 1, 1, 8, 30, 0, 0, time.UTC),
			Location:      "30th St Station",
			Categories:    map[string]bool{"car": true},
			LicensePlates: []string{"ABC123", "XYZ789"},
			Description:   "Car blocked the bike lane",
			Contact:       Contact{Name: "Pat", Phone: "2155550100", Email: "pat@example.com"},
		},
		{
			ID:          "b",
			Date:        time.Date(2023, 6, 1, 17, 5, 0, 0, time.UTC),
			Location:    "Market St",
			Categories:  map[string]bool{"bus": true},
			Description: "Bus door clipped cyclist",
		},
	}
}

func TestFormatCSV_EmptyIsHeaderOnly(t *testing.T) {
	schema := testSchema()

	assert.Equal(t, "DATE,LOCATION,CAR,BUS,LICENSE PLATES,DESCRIPTION", FormatCSV(schema, nil, false))
	assert.Equal(t,
		"DATE,LOCATION,CAR,BUS,LICENSE PLATES,DESCRIPTION,CONTACT NAME,CONTACT PHONE,CONTACT EMAIL",
		FormatCSV(schema, []Marker{}, true))
}

func TestFormatCSV_Rows(t *testing.T) {
	out := FormatCSV(testSchema(), sampleMarkers(), false)
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "2023-01-01 08:30:00,30th St Station,true,false,ABC123;XYZ789,Car blocked the bike lane", lines[1])
	assert.Equal(t, "2023-06-01 17:05:00,Market St,false,true,,Bus door clipped cyclist", lines[2])
	assert.NotContains(t, out, "pat@example.com")
}

func TestFormatCSV_DateRoundTripsAcrossOffsets(t *testing.T) {
	edt := time.FixedZone("EDT", -4*60*60)
	m := sampleMarkers()[0]
	m.Date = time.Date(2023, 6, 1, 22, 30, 45, 0, edt)

	out := FormatCSV(testSchema(), []Marker{m}, false)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	cell := strings.Split(lines[1], ",")[0]
	assert.Equal(t, "2023-06-02 02:30:45", cell)

	var back Marker
	require.NoError(t, FieldDate.Set(&back, cell))
	assert.True(t, m.Date.Equal(back.Date), "exported %s, re-imported %s", m.Date, back.Date)
	assert.Equal(t, time.UTC, back.Date.Location())
}

func TestFormatCSV_AdminColumns(t *testing.T) {
	out := FormatCSV(testSchema(), sampleMarkers(), true)
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], ",Pat,2155550100,pat@example.com"))
	assert.True(t, strings.HasSuffix(lines[2], ",,,"))
}

func TestFormatCSV_RowWidthMatchesHeader(t *testing.T) {
	schema := testSchema()
	base := len(schema.Columns)

	for _, admin := range []bool{false, true} {
		want := base
		if admin {
			want = base + 3
		}
		lines := strings.Split(FormatCSV(schema, sampleMarkers(), admin), "\n")
		for i, line := range lines {
			assert.Len(t, strings.Split(line, ","), want, "admin=%v line %d", admin, i)
		}
	}
}

func TestFormatCSV_PreservesOrder(t *testing.T) {
	markers := sampleMarkers()
	reversed := []Marker{markers[1], markers[0]}

	lines := strings.Split(FormatCSV(testSchema(), reversed, false), "\n")
	assert.True(t, strings.HasPrefix(lines[1], "2023-06-01"))
	assert.True(t, strings.HasPrefix(lines[2], "2023-01-01"))
}

func TestFormatCSV_EmbeddedDelimiterIsNotEscaped(t *testing.T) {
	m := sampleMarkers()[1]
	m.Description = "left turn, no signal"

	lines := strings.Split(FormatCSV(testSchema(), []Marker{m}, false), "\n")
	assert.Contains(t, lines[1], "left turn, no signal")
	assert.NotContains(t, lines[1], `"`)
}

func TestExport(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 9, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	file := Export(testSchema(), sampleMarkers(), false)

	assert.Equal(t, "IncidentReports-2024-04-26.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	assert.True(t, strings.HasPrefix(file.Body, "DATE,LOCATION"))
}
