package story

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a story file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported story file extension: %s", filepath.Base(path))
}

// Load reads, decodes and validates a story file.
func Load(path string) (*Graph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	g, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("story file %s: %w", filepath.Base(path), err)
	}
	return g, nil
}

// Parse decodes and validates a story document.
func Parse(data []byte, format Format) (*Graph, error) {
	s, err := Decode(data, format, false)
	if err != nil {
		return nil, err
	}
	return NewGraph(s)
}

// ParseStrict is Parse, but unknown fields are errors.
func ParseStrict(data []byte, format Format) (*Graph, error) {
	s, err := Decode(data, format, true)
	if err != nil {
		return nil, err
	}
	return NewGraph(s)
}

// Decode unmarshals a story document without validating it.
func Decode(data []byte, format Format, strict bool) (*Story, error) {
	var s Story
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal story: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal story: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported story format %q", format)
	}
	for i := range s.Nodes {
		if td := s.Nodes[i].TimedDecision; td != nil {
			td.normalize()
		}
	}
	return &s, nil
}
