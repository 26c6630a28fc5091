package api

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrSchemaShape is returned when a schema node cannot be classified as an
// object, list or string node.
var ErrSchemaShape = errors.New("malformed schema node")

// Kind tags the variant of a schema node.
type Kind int

const (
	// KindString is a leaf: a literal value, a query sent to the completer,
	// or the inherited context when neither is present.
	KindString Kind = iota
	// KindObject holds an ordered set of named attributes.
	KindObject
	// KindList expands one generated line per item into ListType.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Schema describes the shape of one output node and how to fill it.
// It is read-only once constructed; the engine never mutates it.
type Schema struct {
	Kind Kind
	// Name is the attribute name when this schema is a child of an object.
	// Optional on the root.
	Name string

	// Attributes of an object node, in declaration order.
	Attributes []*Schema

	// ListType is applied to every generated item of a list node.
	ListType *Schema

	// QueryString is the template sent to the completer (string and list nodes).
	// nil means the key was absent, which is distinct from an empty template.
	QueryString *string

	// Value is a literal for string nodes. nil means absent.
	Value *string
}

// Object builds an object schema from named attributes.
func Object(attrs ...*Schema) *Schema {
	if attrs == nil {
		attrs = []*Schema{}
	}
	return &Schema{Kind: KindObject, Attributes: attrs}
}

// List builds a list schema. An empty query leaves QueryString unset.
func List(query string, item *Schema) *Schema {
	s := &Schema{Kind: KindList, ListType: item}
	if query != "" {
		s.QueryString = &query
	}
	return s
}

// Literal builds a string schema with a fixed value.
func Literal(v string) *Schema {
	return &Schema{Kind: KindString, Value: &v}
}

// Query builds a string schema filled by the completer.
func Query(q string) *Schema {
	return &Schema{Kind: KindString, QueryString: &q}
}

// Chunk builds a string schema that takes the inherited context verbatim.
func Chunk() *Schema {
	return &Schema{Kind: KindString}
}

// Named returns a shallow copy of s carrying the attribute name.
func Named(name string, s *Schema) *Schema {
	c := *s
	c.Name = name
	return &c
}

// Attribute returns the attribute with the given name, or nil.
func (s *Schema) Attribute(name string) *Schema {
	for _, a := range s.Attributes {
		if a != nil && a.Name == name {
			return a
		}
	}
	return nil
}

// Check reports the first structural problem in s without descending
// into children.
func (s *Schema) Check() error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrSchemaShape)
	}
	switch s.Kind {
	case KindObject:
		seen := make(map[string]bool, len(s.Attributes))
		for i, a := range s.Attributes {
			if a == nil {
				return fmt.Errorf("%w: attribute %d is nil", ErrSchemaShape, i)
			}
			if a.Name == "" {
				return fmt.Errorf("%w: attribute %d has no name", ErrSchemaShape, i)
			}
			if seen[a.Name] {
				return fmt.Errorf("%w: duplicate attribute %q", ErrSchemaShape, a.Name)
			}
			seen[a.Name] = true
		}
	case KindList:
		if s.ListType == nil {
			return fmt.Errorf("%w: list has no listType", ErrSchemaShape)
		}
	case KindString:
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrSchemaShape, int(s.Kind))
	}
	return nil
}

// Document converts s back to its authoring form: nested ordered mappings
// and slices ready for JSON or YAML encoding.
func (s *Schema) Document() *orderedmap.OrderedMap[string, any] {
	doc := orderedmap.New[string, any]()
	if s == nil {
		return doc
	}
	if s.Name != "" {
		doc.Set("name", s.Name)
	}
	switch s.Kind {
	case KindObject:
		attrs := make([]any, 0, len(s.Attributes))
		for _, a := range s.Attributes {
			attrs = append(attrs, a.Document())
		}
		doc.Set("attributes", attrs)
	case KindList:
		if s.QueryString != nil {
			doc.Set("queryString", *s.QueryString)
		}
		doc.Set("listType", s.ListType.Document())
	default:
		if s.Value != nil {
			doc.Set("value", *s.Value)
		}
		if s.QueryString != nil {
			doc.Set("queryString", *s.QueryString)
		}
	}
	return doc
}
