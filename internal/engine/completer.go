package engine

import "context"

// Completer is the text-in, text-out generation capability the engine
// calls for query-backed strings and lists. Implementations may be
// nondeterministic; the engine never retries or validates responses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
