package api

import (
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OutputSchema describes, as JSON Schema, the value produced by generating
// from s: objects keep attribute order and require every attribute, lists
// become arrays, string leaves become strings (const when literal).
func OutputSchema(s *Schema) *jsonschema.Schema {
	out := outputSchema(s)
	out.Version = jsonschema.Version
	if s != nil && s.Name != "" {
		out.Title = s.Name
	}
	return out
}

func outputSchema(s *Schema) *jsonschema.Schema {
	if s == nil {
		return &jsonschema.Schema{Type: "string"}
	}
	switch s.Kind {
	case KindObject:
		props := orderedmap.New[string, *jsonschema.Schema]()
		required := make([]string, 0, len(s.Attributes))
		for _, a := range s.Attributes {
			if a == nil {
				continue
			}
			props.Set(a.Name, outputSchema(a))
			required = append(required, a.Name)
		}
		return &jsonschema.Schema{
			Type:                 "object",
			Properties:           props,
			Required:             required,
			AdditionalProperties: jsonschema.FalseSchema,
		}
	case KindList:
		out := &jsonschema.Schema{
			Type:  "array",
			Items: outputSchema(s.ListType),
		}
		if s.QueryString != nil {
			out.Description = *s.QueryString
		}
		return out
	default:
		out := &jsonschema.Schema{Type: "string"}
		switch {
		case s.Value != nil:
			out.Const = *s.Value
		case s.QueryString != nil:
			out.Description = *s.QueryString
		}
		return out
	}
}
