package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names a marker attribute addressable from a schema column.
// Category flags use the "category:<key>" form.
type Field string

const (
	FieldDate                Field = "date"
	FieldLocation            Field = "location"
	FieldLatitude            Field = "latitude"
	FieldLongitude           Field = "longitude"
	FieldDescription         Field = "description"
	FieldInjuries            Field = "injuries"
	FieldInjuriesDescription Field = "injuries_description"
	FieldRoadConditions      Field = "road_conditions"
	FieldWitness             Field = "witness"
	FieldDeaths              Field = "deaths"
	FieldLicensePlates       Field = "license_plates"
	FieldPictureURL          Field = "picture_url"

	FieldContactName  Field = "contact_name"
	FieldContactPhone Field = "contact_phone"
	FieldContactEmail Field = "contact_email"
)

const categoryPrefix = "category:"

// DateLayout is the layout dates are exported in, always in UTC. Sub-second
// precision is dropped.
const DateLayout = "2006-01-02 15:04:05"

// dateLayouts are accepted on import, most specific first. Layouts without a
// zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	DateLayout,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/06 15:04",
	"01/02/2006",
}

// PlateSeparator joins multi-valued cells. It differs from the column
// delimiter so a list never spills into the next column.
const PlateSeparator = ";"

// CategoryField returns the field referencing a category flag.
func CategoryField(key string) Field {
	return Field(categoryPrefix + key)
}

// CategoryKey returns the category key of a "category:<key>" field.
func (f Field) CategoryKey() (string, bool) {
	key, ok := strings.CutPrefix(string(f), categoryPrefix)
	return key, ok && key != ""
}

// Known reports whether the field names a marker attribute.
func (f Field) Known() bool {
	if _, ok := f.CategoryKey(); ok {
		return true
	}
	switch f {
	case FieldDate, FieldLocation, FieldLatitude, FieldLongitude, FieldDescription,
		FieldInjuries, FieldInjuriesDescription, FieldRoadConditions, FieldWitness,
		FieldDeaths, FieldLicensePlates, FieldPictureURL,
		FieldContactName, FieldContactPhone, FieldContactEmail:
		return true
	}
	return false
}

// AdminOnly reports whether the field is one of the contact fields.
func (f Field) AdminOnly() bool {
	return f == FieldContactName || f == FieldContactPhone || f == FieldContactEmail
}

// Value renders the field of m as a single cell.
func (f Field) Value(m Marker) string {
	if key, ok := f.CategoryKey(); ok {
		return strconv.FormatBool(m.Categories[key])
	}
	switch f {
	case FieldDate:
		return m.Date.UTC().Format(DateLayout)
	case FieldLocation:
		return m.Location
	case FieldLatitude:
		return strconv.FormatFloat(m.Geo.Lat, 'f', -1, 64)
	case FieldLongitude:
		return strconv.FormatFloat(m.Geo.Lon, 'f', -1, 64)
	case FieldDescription:
		return m.Description
	case FieldInjuries:
		return m.Injuries
	case FieldInjuriesDescription:
		return m.InjuriesDescription
	case FieldRoadConditions:
		return m.RoadConditions
	case FieldWitness:
		return m.Witness
	case FieldDeaths:
		return strconv.Itoa(m.Deaths)
	case FieldLicensePlates:
		return strings.Join(m.LicensePlates, PlateSeparator)
	case FieldPictureURL:
		return m.PictureURL
	case FieldContactName:
		return m.Contact.Name
	case FieldContactPhone:
		return m.Contact.Phone
	case FieldContactEmail:
		return m.Contact.Email
	}
	return ""
}

// Set parses a cell into the field of m. Empty cells leave numeric fields at
// zero.
func (f Field) Set(m *Marker, cell string) error {
	cell = strings.TrimSpace(cell)
	if key, ok := f.CategoryKey(); ok {
		if m.Categories == nil {
			m.Categories = map[string]bool{}
		}
		m.Categories[key] = parseFlag(cell)
		return nil
	}

	switch f {
	case FieldDate:
		t, err := ParseDate(cell)
		if err != nil {
			return err
		}
		m.Date = t
	case FieldLocation:
		m.Location = cell
	case FieldLatitude:
		v, err := parseFloatOrZero(cell)
		if err != nil {
			return fmt.Errorf("latitude: %w", err)
		}
		m.Geo.Lat = v
	case FieldLongitude:
		v, err := parseFloatOrZero(cell)
		if err != nil {
			return fmt.Errorf("longitude: %w", err)
		}
		m.Geo.Lon = v
	case FieldDescription:
		m.Description = normalizeText(cell)
	case FieldInjuries:
		m.Injuries = cell
	case FieldInjuriesDescription:
		m.InjuriesDescription = cell
	case FieldRoadConditions:
		m.RoadConditions = cell
	case FieldWitness:
		m.Witness = cell
	case FieldDeaths:
		if cell == "" {
			m.Deaths = 0
			return nil
		}
		n, err := strconv.Atoi(cell)
		if err != nil {
			return fmt.Errorf("deaths: %w", err)
		}
		m.Deaths = n
	case FieldLicensePlates:
		m.LicensePlates = splitPlates(cell)
	case FieldPictureURL:
		m.PictureURL = cell
	case FieldContactName:
		m.Contact.Name = cell
	case FieldContactPhone:
		m.Contact.Phone = cell
	case FieldContactEmail:
		m.Contact.Email = cell
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// ParseDate parses an incident date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: unrecognized format", s)
}

// parseFlag treats any non-empty cell as true except explicit negatives.
func parseFlag(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "0", "false", "no", "n":
		return false
	}
	return true
}

func parseFloatOrZero(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// normalizeText folds line breaks into spaces so a description stays on one
// export row.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func splitPlates(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == ',' || r == ' '
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}
