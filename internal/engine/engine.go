package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/graph"
	"github.com/agentic-research/shapegen/internal/logger"
)

// DefaultListInstruction is appended, on its own line, to every list query.
const DefaultListInstruction = "Place one answer on each line."

var (
	// ErrCompletion wraps any failure returned by the Completer.
	ErrCompletion = errors.New("completion failed")
	// ErrNoCompleter is returned when a schema needs generation but no
	// Completer was configured.
	ErrNoCompleter = errors.New("no completer configured")
)

// Stats summarizes one generation run.
type Stats struct {
	Calls    int           // completer invocations
	Nodes    int           // node tree entries built
	Duration time.Duration // wall time of build and projection
}

// Engine drives generation for one schema. It holds no per-run state, so a
// single Engine may serve concurrent Generate calls as long as its
// Completer is safe for concurrent use.
type Engine struct {
	Schema    *api.Schema
	Completer Completer

	log             *logger.Logger
	listInstruction string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithListInstruction replaces the line appended to list queries.
func WithListInstruction(s string) Option {
	return func(e *Engine) { e.listInstruction = s }
}

func NewEngine(schema *api.Schema, completer Completer, opts ...Option) *Engine {
	e := &Engine{
		Schema:          schema,
		Completer:       completer,
		log:             logger.Nop(),
		listInstruction: DefaultListInstruction,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate is shorthand for NewEngine(...).Generate.
func Generate(ctx context.Context, schema *api.Schema, completer Completer, chunk string, opts ...Option) (any, error) {
	return NewEngine(schema, completer, opts...).Generate(ctx, chunk)
}

// Generate builds a fresh node tree seeded with chunk, then projects it
// into the schema's output shape: a string, an ordered mapping
// (*orderedmap.OrderedMap[string, any]) or a []any. On failure nothing
// partial is returned.
func (e *Engine) Generate(ctx context.Context, chunk string) (any, error) {
	v, _, err := e.GenerateWithStats(ctx, chunk)
	return v, err
}

// GenerateWithStats is Generate plus run statistics.
func (e *Engine) GenerateWithStats(ctx context.Context, chunk string) (any, Stats, error) {
	start := time.Now()
	if err := e.Schema.Check(); err != nil {
		return nil, Stats{}, fmt.Errorf("$: %w", err)
	}

	tree := graph.NewTree()
	root := tree.AddRoot(e.Schema.Kind, chunk)
	b := &builder{
		ctx:             ctx,
		tree:            tree,
		completer:       e.Completer,
		log:             e.log,
		listInstruction: e.listInstruction,
	}
	if err := b.build(e.Schema, root, "$"); err != nil {
		return nil, Stats{}, err
	}

	out := project(tree, e.Schema, root)
	stats := Stats{Calls: b.calls, Nodes: tree.Len(), Duration: time.Since(start)}
	e.log.Debug("generation complete", "calls", stats.Calls, "nodes", stats.Nodes, "duration", stats.Duration)
	return out, stats, nil
}
