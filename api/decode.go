package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Decode classifies a generically decoded schema document (nested
// map[string]any / []any / scalars, as produced by JSON or YAML decoders)
// into a Schema tree. Key presence decides the variant: attributes wins
// over listType, which wins over string handling. Unknown keys are ignored.
func Decode(v any) (*Schema, error) {
	return decode(v, "$")
}

func decode(v any, path string) (*Schema, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w at %s: expected a mapping, got %T", ErrSchemaShape, path, v)
	}

	s := &Schema{}
	if raw, ok := m["name"]; ok && raw != nil {
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w at %s: name must be a string, got %T", ErrSchemaShape, path, raw)
		}
		s.Name = name
	}

	if raw, ok := m["attributes"]; ok {
		s.Kind = KindObject
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w at %s: attributes must be a sequence, got %T", ErrSchemaShape, path, raw)
		}
		s.Attributes = make([]*Schema, 0, len(items))
		for i, item := range items {
			childPath := fmt.Sprintf("%s.attributes[%d]", path, i)
			child, err := decode(item, childPath)
			if err != nil {
				return nil, err
			}
			if child.Name == "" {
				return nil, fmt.Errorf("%w at %s: attribute has no name", ErrSchemaShape, childPath)
			}
			if s.Attribute(child.Name) != nil {
				return nil, fmt.Errorf("%w at %s: duplicate attribute %q", ErrSchemaShape, childPath, child.Name)
			}
			s.Attributes = append(s.Attributes, child)
		}
		if err := s.Check(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return s, nil
	}

	query, err := optionalString(m, "queryString", path)
	if err != nil {
		return nil, err
	}
	s.QueryString = query

	if raw, ok := m["listType"]; ok {
		s.Kind = KindList
		item, err := decode(raw, path+".listType")
		if err != nil {
			return nil, err
		}
		s.ListType = item
		return s, nil
	}

	s.Kind = KindString
	value, err := optionalString(m, "value", path)
	if err != nil {
		return nil, err
	}
	s.Value = value
	return s, nil
}

// optionalString reads a scalar key. Absent and null both yield nil;
// numbers and booleans are stringified.
func optionalString(m map[string]any, key, path string) (*string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return &v, nil
	case bool, int, int64, uint64, float64:
		s := fmt.Sprint(v)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w at %s: %s must be a scalar, got %T", ErrSchemaShape, path, key, raw)
	}
}

// ParseJSON decodes a JSON schema document.
func ParseJSON(data []byte) (*Schema, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json schema: %w", err)
	}
	return Decode(doc)
}

// ParseYAML decodes a YAML schema document.
func ParseYAML(data []byte) (*Schema, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml schema: %w", err)
	}
	return Decode(doc)
}

// Load reads a schema file, choosing the decoder by extension.
// Anything that is not .json is read as YAML.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var s *Schema
	if strings.EqualFold(filepath.Ext(path), ".json") {
		s, err = ParseJSON(data)
	} else {
		s, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// MarshalJSON encodes the schema in its authoring form.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Document())
}

// UnmarshalJSON decodes and classifies an authoring-form document.
func (s *Schema) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
