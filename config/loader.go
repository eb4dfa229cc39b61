// Package config loads a workflow document from bytes into a value.Value,
// format-agnostically (JSON, YAML, TOML), and can watch a document file for
// changes, grounded in the teacher's config/watcher.go and config/reloader.go.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ruleflow/phlow/value"
)

// Format names a supported document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatTOML
)

// FormatFromExtension maps a file extension (as returned by
// filepath.Ext, with or without the leading dot) to a Format. Unknown
// extensions default to YAML, matching the teacher's permissive config
// loading.
func FormatFromExtension(ext string) Format {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return FormatJSON
	case "toml":
		return FormatTOML
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatYAML
	}
}

// Parse decodes raw into a value.Value per format.
func Parse(raw []byte, format Format) (value.Value, error) {
	var decoded any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return value.Value{}, fmt.Errorf("parse json document: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &decoded); err != nil {
			return value.Value{}, fmt.Errorf("parse yaml document: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(raw, &decoded); err != nil {
			return value.Value{}, fmt.Errorf("parse toml document: %w", err)
		}
	default:
		return value.Value{}, fmt.Errorf("unknown document format %d", format)
	}
	return normalize(value.FromAny(decoded)), nil
}

// ParseFile reads path and parses it using the format implied by its
// extension.
func ParseFile(path string, raw []byte) (value.Value, error) {
	return Parse(raw, FormatFromExtension(filepath.Ext(path)))
}

// normalize returns v unchanged. value.FromAny already converts both
// map[string]any and map[any]any decoder output, so there is nothing left to
// rewrite; normalize is kept as the single seam for future document-shape
// quirks.
func normalize(v value.Value) value.Value {
	return v
}
