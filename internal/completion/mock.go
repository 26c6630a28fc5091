package completion

import (
	"context"
	"strings"
	"sync"
)

// MockFallback is returned when no rule matches.
const MockFallback = "Unhandled case in mock completer"

// Rule answers any prompt containing Contains with Response.
type Rule struct {
	Contains string
	Response string
}

// Mock is a scripted completer for demos and tests. Rules are tried in order.
type Mock struct {
	Rules    []Rule
	Fallback string

	mu      sync.Mutex
	prompts []string
}

func NewMock(rules ...Rule) *Mock {
	return &Mock{Rules: rules, Fallback: MockFallback}
}

// QuizRules script the built-in quiz demo: one question list, then one
// answer list per question.
func QuizRules() []Rule {
	return []Rule{
		{
			Contains: "Create a list of questions from the given text:",
			Response: "What is the capital of France?\nWho wrote 'To Kill a Mockingbird'?",
		},
		{
			Contains: "What is the capital of France?",
			Response: "Paris\nLyon\nMarseille\nToulouse",
		},
		{
			Contains: "Who wrote 'To Kill a Mockingbird'?",
			Response: "Harper Lee\nErnest Hemingway\nMark Twain\nF. Scott Fitzgerald",
		},
	}
}

// Complete implements engine.Completer.
func (m *Mock) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	for _, r := range m.Rules {
		if strings.Contains(prompt, r.Contains) {
			return r.Response, nil
		}
	}
	return m.Fallback, nil
}

// Prompts returns every prompt received so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
