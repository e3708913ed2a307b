package domain

import (
	"strings"
	"time"
)

const (
	// ExportContentType is the MIME type of the export payload.
	ExportContentType = "text/csv"

	columnDelimiter = ","
	rowDelimiter    = "\n"
)

// ExportFile is a formatted export ready to hand to a download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        string
	Rows        int
}

// FormatCSV renders markers as a header row followed by one row per marker,
// in the given order. The contact columns are appended only when
// includeAdmin is set. Cells are not quoted.
func FormatCSV(schema Schema, markers []Marker, includeAdmin bool) string {
	cols := schema.ExportColumns(includeAdmin)

	var b strings.Builder
	b.WriteString(strings.Join(schema.Header(includeAdmin), columnDelimiter))

	row := make([]string, len(cols))
	for _, m := range markers {
		for i, c := range cols {
			row[i] = c.Field.Value(m)
		}
		b.WriteString(rowDelimiter)
		b.WriteString(strings.Join(row, columnDelimiter))
	}
	return b.String()
}

// ExportFilename names the download after the export day.
func ExportFilename(t time.Time) string {
	return "IncidentReports-" + t.Format("2006-01-02") + ".csv"
}

// Export formats markers into an ExportFile named after the current day.
func Export(schema Schema, markers []Marker, includeAdmin bool) ExportFile {
	return ExportFile{
		Filename:    ExportFilename(clock.Now()),
		ContentType: ExportContentType,
		Body:        FormatCSV(schema, markers, includeAdmin),
		Rows:        len(markers),
	}
}
