// Package presets holds the default extraction fields per document type.
package presets

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Presets map[string][]entity.SchemaField `yaml:"presets"`
}

// Set maps document types to their default fields.
type Set struct {
	byType map[constants.DocumentType][]entity.SchemaField
}

// Default returns the embedded presets.
func Default() *Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded presets: %v", err))
	}
	return s
}

// Load reads presets from path, or the embedded defaults when path is empty.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return Parse(b)
}

// Parse decodes and checks a presets document.
func Parse(b []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	s := &Set{byType: make(map[constants.DocumentType][]entity.SchemaField, len(f.Presets))}
	for name, fields := range f.Presets {
		dt, ok := constants.ParseDocumentType(name)
		if !ok {
			return nil, fmt.Errorf("presets: unknown document type %q", name)
		}
		seen := map[string]bool{}
		for i, fl := range fields {
			if fl.ID == "" || fl.Name == "" {
				return nil, fmt.Errorf("presets: %s field %d needs id and name", name, i)
			}
			if seen[fl.ID] {
				return nil, fmt.Errorf("presets: %s has duplicate field id %q", name, fl.ID)
			}
			seen[fl.ID] = true
		}
		s.byType[dt] = fields
	}
	return s, nil
}

// Fields returns a copy of the preset fields for t, or nil if none are defined.
func (s *Set) Fields(t constants.DocumentType) []entity.SchemaField {
	fields, ok := s.byType[t]
	if !ok {
		return nil
	}
	out := make([]entity.SchemaField, len(fields))
	copy(out, fields)
	return out
}

// Types lists document types with presets, sorted.
func (s *Set) Types() []constants.DocumentType {
	out := make([]constants.DocumentType, 0, len(s.byType))
	for t := range s.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
