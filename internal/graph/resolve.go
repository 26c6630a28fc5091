package graph

import "github.com/agentic-research/shapegen/api"

// Bookkeeping segments every node answers to, in addition to its named
// children.
const (
	ChunkKey  = "_chunk"  // the node's inherited context
	ParentKey = "_parent" // the node's ancestor
	ValueKey  = "_value"  // a resolved string node's value
)

type refKind uint8

const (
	refNone refKind = iota
	refText
	refNode
)

// Ref is the outcome of a path lookup: nothing, a string, or a node.
type Ref struct {
	kind refKind
	text string
	node NodeID
}

func textRef(s string) Ref  { return Ref{kind: refText, text: s} }
func nodeRef(id NodeID) Ref { return Ref{kind: refNode, node: id} }

// Found reports whether the lookup matched anything.
func (r Ref) Found() bool { return r.kind != refNone }

// IsText reports whether the lookup ended on a string.
func (r Ref) IsText() bool { return r.kind == refText }

// Node returns the matched node, if the lookup ended on one.
func (r Ref) Node() (NodeID, bool) { return r.node, r.kind == refNode }

// String returns the resolved text, or "" for nodes and misses.
func (r Ref) String() string {
	if r.kind == refText {
		return r.text
	}
	return ""
}

// Resolve looks path up starting at scope. A segment that is not a direct
// child of the current node is retried, with the full remaining path,
// against each ancestor in turn. Misses never fail; they yield an empty Ref.
func (t *Tree) Resolve(path []string, scope NodeID) Ref {
	if len(path) == 0 {
		return nodeRef(scope)
	}
	n, err := t.get(scope)
	if err != nil {
		return Ref{}
	}
	first, rest := path[0], path[1:]

	if n.Kind == api.KindObject {
		if id, ok := n.Children[first]; ok {
			child := &t.nodes[id]
			if len(rest) == 0 {
				if child.Kind == api.KindString {
					return textRef(child.Value)
				}
				return nodeRef(id)
			}
			// Only objects have named children to descend into.
			if child.Kind != api.KindObject {
				return Ref{}
			}
			return t.Resolve(rest, id)
		}
	}

	switch first {
	case ChunkKey:
		if len(rest) == 0 {
			return textRef(n.Context)
		}
		return Ref{}
	case ParentKey:
		if n.Ancestor == NoNode {
			return Ref{}
		}
		return t.Resolve(rest, n.Ancestor)
	case ValueKey:
		if n.Kind == api.KindString && n.Resolved {
			if len(rest) == 0 {
				return textRef(n.Value)
			}
			return Ref{}
		}
	}

	if n.Ancestor != NoNode {
		return t.Resolve(path, n.Ancestor)
	}
	return Ref{}
}
