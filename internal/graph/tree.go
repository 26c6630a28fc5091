package graph

import (
	"errors"
	"fmt"

	"github.com/agentic-research/shapegen/api"
)

var (
	ErrNotFound        = errors.New("node not found")
	ErrShapeMismatch   = errors.New("node shape mismatch")
	ErrAlreadyResolved = errors.New("string node already resolved")
	ErrDuplicateChild  = errors.New("duplicate child name")
)

// NodeID indexes a Node in its Tree's arena.
type NodeID int32

// NoNode marks the absence of an ancestor.
const NoNode NodeID = -1

// Node is one in-progress instantiation of a schema node.
// Ancestor is a non-owning index; the Tree owns every node.
type Node struct {
	Kind     api.Kind
	Context  string            // inherited chunk of text
	Ancestor NodeID            // NoNode for the root
	Children map[string]NodeID // object nodes only
	Items    []NodeID          // list nodes only, generation order
	Value    string            // string nodes only
	Resolved bool              // Value has been set
}

// Tree is the arena holding every node built for a single generation run.
// It is not safe for concurrent use and is discarded after projection.
type Tree struct {
	nodes []Node
}

func NewTree() *Tree {
	return &Tree{}
}

// Len returns the number of nodes allocated so far.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// AddRoot allocates the root node seeded with the initial context.
func (t *Tree) AddRoot(kind api.Kind, context string) NodeID {
	return t.alloc(kind, context, NoNode)
}

// AddChild allocates an object attribute under parent, inheriting its context.
func (t *Tree) AddChild(parent NodeID, name string, kind api.Kind) (NodeID, error) {
	p, err := t.get(parent)
	if err != nil {
		return NoNode, err
	}
	if p.Kind != api.KindObject {
		return NoNode, fmt.Errorf("%w: %s node %d cannot hold attribute %q", ErrShapeMismatch, p.Kind, parent, name)
	}
	if _, exists := p.Children[name]; exists {
		return NoNode, fmt.Errorf("%w: %q", ErrDuplicateChild, name)
	}
	id := t.alloc(kind, p.Context, parent)
	// alloc may have grown the arena; re-fetch.
	t.nodes[parent].Children[name] = id
	return id, nil
}

// AddItem appends a list item under parent with its own context line.
func (t *Tree) AddItem(parent NodeID, kind api.Kind, line string) (NodeID, error) {
	p, err := t.get(parent)
	if err != nil {
		return NoNode, err
	}
	if p.Kind != api.KindList {
		return NoNode, fmt.Errorf("%w: %s node %d cannot hold items", ErrShapeMismatch, p.Kind, parent)
	}
	id := t.alloc(kind, line, parent)
	t.nodes[parent].Items = append(t.nodes[parent].Items, id)
	return id, nil
}

// SetValue resolves a string node. Each string node is resolved exactly once.
func (t *Tree) SetValue(id NodeID, value string) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	if n.Kind != api.KindString {
		return fmt.Errorf("%w: cannot set value on %s node %d", ErrShapeMismatch, n.Kind, id)
	}
	if n.Resolved {
		return fmt.Errorf("%w: node %d", ErrAlreadyResolved, id)
	}
	n.Value = value
	n.Resolved = true
	return nil
}

// Get returns a read-only view of the node. The returned pointer is only
// valid until the next allocation.
func (t *Tree) Get(id NodeID) (*Node, error) {
	return t.get(id)
}

// Ancestors walks from id's parent up to the root.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for {
		n, err := t.get(id)
		if err != nil || n.Ancestor == NoNode {
			return out
		}
		id = n.Ancestor
		out = append(out, id)
	}
}

func (t *Tree) get(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return &t.nodes[id], nil
}

func (t *Tree) alloc(kind api.Kind, context string, ancestor NodeID) NodeID {
	n := Node{Kind: kind, Context: context, Ancestor: ancestor}
	if kind == api.KindObject {
		n.Children = make(map[string]NodeID)
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}
