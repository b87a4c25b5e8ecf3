// Package parser decodes configuration documents into generic maps.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DocumentParser parses raw document bytes into a generic map.
type DocumentParser interface {
	// Parse unmarshals document bytes. An empty document yields an empty map.
	Parse(data []byte) (map[string]any, error)
}

// Format names a document syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf infers the format from a file extension. Unknown extensions are TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// New returns the parser for f.
func New(f Format) (DocumentParser, error) {
	switch f {
	case FormatTOML:
		return NewTOMLParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	case FormatJSON:
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("parser: unsupported format %q", f)
	}
}

// ForPath returns the parser for the file at path.
func ForPath(path string) DocumentParser {
	p, _ := New(FormatOf(path))
	return p
}

// JSONParser implements DocumentParser for JSON.
type JSONParser struct{}

// NewJSONParser creates a new JSONParser.
func NewJSONParser() DocumentParser {
	return &JSONParser{}
}

// Parse unmarshals JSON bytes.
func (p *JSONParser) Parse(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

// YAMLParser implements DocumentParser for YAML.
type YAMLParser struct{}

// NewYAMLParser creates a new YAMLParser.
func NewYAMLParser() DocumentParser {
	return &YAMLParser{}
}

// Parse unmarshals YAML bytes.
func (p *YAMLParser) Parse(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc, nil
}

// TOMLParser implements DocumentParser for TOML.
type TOMLParser struct{}

// NewTOMLParser creates a new TOMLParser.
func NewTOMLParser() DocumentParser {
	return &TOMLParser{}
}

// Parse unmarshals TOML bytes.
func (p *TOMLParser) Parse(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	return doc, nil
}

// Normalize round-trips doc through JSON so that every number is a float64, every
// table a map[string]any and every date a string, whatever syntax it came from.
func Normalize(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return out, nil
}

// Merge overlays src onto dst. Nested tables merge key by key; any other value in src
// replaces the one in dst. dst is modified and returned.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if cur, isMap := dst[k].(map[string]any); ok && isMap {
			dst[k] = Merge(cur, sub)
			continue
		}
		dst[k] = v
	}
	return dst
}
