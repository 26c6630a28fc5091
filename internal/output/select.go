package output

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Select evaluates a JSONPath expression against a generated value.
// A single match is returned as is; otherwise the matches form a []any.
// Selected objects lose their key order.
func Select(v any, path string) (any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	results := x.Get(Plain(v))
	if len(results) == 1 {
		return results[0], nil
	}
	if results == nil {
		return []any{}, nil
	}
	return results, nil
}

// Plain converts ordered mappings to map[string]any, recursively.
func Plain(v any) any {
	switch x := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		m := make(map[string]any, x.Len())
		for p := x.Oldest(); p != nil; p = p.Next() {
			m[p.Key] = Plain(p.Value)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	default:
		return v
	}
}
