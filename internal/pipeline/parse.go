package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
)

// ErrHeaderMismatch is returned when a report file's header does not list the
// schema columns in order.
var ErrHeaderMismatch = errors.New("header does not match schema")

// RowError describes a rejected spreadsheet row. Line is 1-based and counts
// the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Result is the outcome of parsing a report file.
type Result struct {
	Markers []domain.Marker
	Errors  []RowError
}

// Parser reads report spreadsheets laid out per a schema.
type Parser struct {
	schema      domain.Schema
	transformer *RowTransformer
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewParser creates a Parser for schema.
func NewParser(schema domain.Schema, transformer *RowTransformer, logger *slog.Logger, metrics *observability.Metrics) *Parser {
	return &Parser{
		schema:      schema,
		transformer: transformer,
		logger:      logger,
		metrics:     metrics,
	}
}

// Parse reads every row of r. The header must match the schema columns,
// optionally followed by the admin contact columns, compared
// case-insensitively. Rows that fail are reported in Result.Errors and
// skipped; only a bad header or an unreadable stream fails the whole parse.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("%w: empty file", ErrHeaderMismatch)
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}

	cols, err := p.matchHeader(header)
	if err != nil {
		return Result{}, err
	}

	res := Result{Markers: []domain.Marker{}}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return res, fmt.Errorf("read row: %w", err)
			}
			p.reject(&res, perr.StartLine, perr.Err.Error())
			continue
		}
		line, _ := cr.FieldPos(0)
		if len(record) != len(cols) {
			p.reject(&res, line, fmt.Sprintf("expected %d columns, got %d", len(cols), len(record)))
			continue
		}

		m, err := p.transformer.Transform(ctx, cols, record)
		if err != nil {
			p.reject(&res, line, err.Error())
			continue
		}
		res.Markers = append(res.Markers, m)
		p.count("accepted")
	}

	p.logger.Info("reports parsed", "schema", p.schema.Name, "accepted", len(res.Markers), "rejected", len(res.Errors))
	return res, nil
}

func (p *Parser) reject(res *Result, line int, reason string) {
	res.Errors = append(res.Errors, RowError{Line: line, Reason: reason})
	p.count("rejected")
	p.logger.Debug("report row rejected", "line", line, "reason", reason)
}

func (p *Parser) count(outcome string) {
	if p.metrics != nil {
		p.metrics.ImportRows.WithLabelValues(outcome).Inc()
	}
}

// matchHeader returns the columns the header maps to: the base schema columns,
// with the admin columns appended when present.
func (p *Parser) matchHeader(header []string) ([]domain.Column, error) {
	for _, admin := range []bool{false, true} {
		if equalFold(header, p.schema.Header(admin)) {
			return p.schema.ExportColumns(admin), nil
		}
	}
	return nil, fmt.Errorf("%w %q: want %s", ErrHeaderMismatch, p.schema.Name,
		strings.Join(p.schema.Header(false), ","))
}

func equalFold(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		g := strings.TrimPrefix(strings.TrimSpace(got[i]), "\ufeff")
		if !strings.EqualFold(g, want[i]) {
			return false
		}
	}
	return true
}
