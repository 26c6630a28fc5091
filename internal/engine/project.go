package engine

import (
	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/graph"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// project strips bookkeeping from a populated tree, walking it alongside
// the schema. Only declared attributes survive, in declaration order.
func project(tree *graph.Tree, s *api.Schema, id graph.NodeID) any {
	n, _ := tree.Get(id)

	switch s.Kind {
	case api.KindObject:
		out := orderedmap.New[string, any]()
		if n == nil {
			return out
		}
		for _, attr := range s.Attributes {
			child, ok := n.Children[attr.Name]
			if !ok {
				continue
			}
			out.Set(attr.Name, project(tree, attr, child))
		}
		return out

	case api.KindList:
		if n == nil {
			return []any{}
		}
		out := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			out = append(out, project(tree, s.ListType, item))
		}
		return out

	default:
		if n == nil {
			return ""
		}
		return n.Value
	}
}
