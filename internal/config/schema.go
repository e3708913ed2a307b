package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/incident-map/internal/domain"
)

// ErrUnknownSchema is returned when SCHEMA names no built-in schema.
var ErrUnknownSchema = errors.New("unknown schema")

//go:embed schemas/*.yaml
var builtinSchemas embed.FS

// BuiltinSchemas lists the names of the embedded schemas.
func BuiltinSchemas() []string {
	entries, err := fs.ReadDir(builtinSchemas, "schemas")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// LoadSchema returns the deployment schema. A non-empty file path takes
// precedence over the built-in name.
func LoadSchema(name, file string) (domain.Schema, error) {
	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
		if err != nil {
			return domain.Schema{}, fmt.Errorf("read schema file: %w", err)
		}
	} else {
		data, err = builtinSchemas.ReadFile(path.Join("schemas", name+".yaml"))
		if err != nil {
			return domain.Schema{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownSchema, name, strings.Join(BuiltinSchemas(), ", "))
		}
	}
	return ParseSchema(data)
}

// ParseSchema decodes and validates a YAML schema document.
func ParseSchema(data []byte) (domain.Schema, error) {
	var s domain.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return domain.Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return domain.Schema{}, err
	}
	return s, nil
}
