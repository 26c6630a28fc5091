package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/graph"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/agentic-research/shapegen/internal/placeholder"
)

// builder populates one tree, depth first. Attributes are built in
// declaration order and list items in line order, so a template can only
// see nodes built before it.
type builder struct {
	ctx             context.Context
	tree            *graph.Tree
	completer       Completer
	log             *logger.Logger
	listInstruction string
	calls           int
}

func (b *builder) build(s *api.Schema, id graph.NodeID, path string) error {
	if err := s.Check(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	b.trace(s, id, path)

	switch s.Kind {
	case api.KindObject:
		for _, attr := range s.Attributes {
			child, err := b.tree.AddChild(id, attr.Name, attr.Kind)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := b.build(attr, child, path+"."+attr.Name); err != nil {
				return err
			}
		}
		return nil

	case api.KindList:
		var query string
		if s.QueryString != nil {
			query = *s.QueryString
		}
		prompt := placeholder.Substitute(query, b.tree, id) + "\n" + b.listInstruction
		resp, err := b.complete(prompt, path)
		if err != nil {
			return err
		}
		i := 0
		for _, line := range splitLines(resp) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			item, err := b.tree.AddItem(id, s.ListType.Kind, line)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := b.build(s.ListType, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
			i++
		}
		return nil

	default:
		var value string
		switch {
		case s.Value != nil:
			value = *s.Value
		case s.QueryString == nil:
			n, err := b.tree.Get(id)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			value = n.Context
		default:
			prompt := placeholder.Substitute(*s.QueryString, b.tree, id)
			resp, err := b.complete(prompt, path)
			if err != nil {
				return err
			}
			value = resp
		}
		if err := b.tree.SetValue(id, value); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		return nil
	}
}

// trace logs one line per built node: its kind, depth and, for nodes
// that send a query, the placeholder paths the template references.
func (b *builder) trace(s *api.Schema, id graph.NodeID, path string) {
	if !b.log.DebugEnabled() {
		return
	}
	kv := []interface{}{"path", path, "kind", s.Kind.String(), "depth", len(b.tree.Ancestors(id))}
	queries := s.Kind == api.KindList || (s.Kind == api.KindString && s.Value == nil)
	if queries && s.QueryString != nil {
		kv = append(kv, "refs", placeholder.Paths(*s.QueryString))
	}
	b.log.Debug("build node", kv...)
}

func (b *builder) complete(prompt, path string) (string, error) {
	if b.completer == nil {
		return "", fmt.Errorf("%s: %w", path, ErrNoCompleter)
	}
	b.calls++
	b.log.Debug("completion", "path", path, "call", b.calls, "prompt_bytes", len(prompt))
	resp, err := b.completer.Complete(b.ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w at %s: %w", ErrCompletion, path, err)
	}
	return resp, nil
}

// splitLines splits on every line boundary (\n, \r\n, \r and the Unicode
// line separators) and drops empty pieces.
func splitLines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			return true
		}
		return false
	})
}
