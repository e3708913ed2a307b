package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned for a category key outside the schema's
// vocabulary.
var ErrUnknownCategory = errors.New("unknown category")

// Category is one entry of a deployment's category vocabulary.
type Category struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Column maps an export/import header to a marker field.
type Column struct {
	Header string `yaml:"header" json:"header"`
	Field  Field  `yaml:"field" json:"field"`
}

// Schema describes the marker attributes of one deployment: its category
// vocabulary and the ordered column list used for export and import.
type Schema struct {
	Name       string     `yaml:"name" json:"name"`
	Categories []Category `yaml:"categories" json:"categories"`
	Columns    []Column   `yaml:"columns" json:"columns"`
}

// adminColumns are appended to the base columns for admin exports.
var adminColumns = []Column{
	{Header: "CONTACT NAME", Field: FieldContactName},
	{Header: "CONTACT PHONE", Field: FieldContactPhone},
	{Header: "CONTACT EMAIL", Field: FieldContactEmail},
}

// AdminColumns returns the contact columns shown only to admins.
func AdminColumns() []Column {
	return append([]Column(nil), adminColumns...)
}

// Validate checks that the schema is usable: a name, a non-empty category
// vocabulary with unique keys, and columns that reference known fields.
func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.New("schema name is required")
	}
	if len(s.Categories) == 0 {
		return fmt.Errorf("schema %q: at least one category is required", s.Name)
	}
	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c.Key == "" {
			return fmt.Errorf("schema %q: category key is required", s.Name)
		}
		if seen[c.Key] {
			return fmt.Errorf("schema %q: duplicate category %q", s.Name, c.Key)
		}
		seen[c.Key] = true
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema %q: at least one column is required", s.Name)
	}
	for _, col := range s.Columns {
		if col.Header == "" {
			return fmt.Errorf("schema %q: column header is required for field %q", s.Name, col.Field)
		}
		if key, ok := col.Field.CategoryKey(); ok {
			if !seen[key] {
				return fmt.Errorf("schema %q: column %q: %w %q", s.Name, col.Header, ErrUnknownCategory, key)
			}
			continue
		}
		if !col.Field.Known() || col.Field.AdminOnly() {
			return fmt.Errorf("schema %q: column %q: unknown field %q", s.Name, col.Header, col.Field)
		}
	}
	return nil
}

// HasCategory reports whether key belongs to the vocabulary.
func (s Schema) HasCategory(key string) bool {
	for _, c := range s.Categories {
		if c.Key == key {
			return true
		}
	}
	return false
}

// AllCategories returns a set with every category enabled, the state of the
// checkboxes when a session starts.
func (s Schema) AllCategories() CategorySet {
	set := make(CategorySet, len(s.Categories))
	for _, c := range s.Categories {
		set[c.Key] = true
	}
	return set
}

// ExportColumns returns the base columns, followed by the admin columns when
// includeAdmin is set.
func (s Schema) ExportColumns(includeAdmin bool) []Column {
	cols := append([]Column(nil), s.Columns...)
	if includeAdmin {
		cols = append(cols, adminColumns...)
	}
	return cols
}

// Header returns the header cells of ExportColumns.
func (s Schema) Header(includeAdmin bool) []string {
	cols := s.ExportColumns(includeAdmin)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
	}
	return header
}
