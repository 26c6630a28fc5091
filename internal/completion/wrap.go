package completion

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agentic-research/shapegen/internal/config"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/agentic-research/shapegen/internal/transcript"
)

// New builds the completer selected by cfg.
func New(cfg config.Config) (engine.Completer, error) {
	hc := HTTPConfig{
		BaseURL:    cfg.BaseURLOrDefault(),
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
	}
	switch cfg.Backend {
	case config.BackendOllama:
		return NewOllama(hc), nil
	case config.BackendOpenAI:
		return NewOpenAI(hc)
	case config.BackendMock:
		return NewMock(QuizRules()...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

type logging struct {
	next engine.Completer
	log  *logger.Logger
}

// WithLogging logs every prompt and response at debug level.
func WithLogging(next engine.Completer, log *logger.Logger) engine.Completer {
	return &logging{next: next, log: log}
}

func (l *logging) Complete(ctx context.Context, prompt string) (string, error) {
	l.log.Debug("completion query", "prompt", prompt)
	start := time.Now()
	resp, err := l.next.Complete(ctx, prompt)
	if err != nil {
		l.log.Warn("completion failed", "error", err, "duration", time.Since(start))
		return resp, err
	}
	l.log.Debug("completion response", "response", resp, "duration", time.Since(start))
	return resp, nil
}

// Recorder persists completion calls.
type Recorder interface {
	Record(ctx context.Context, c transcript.Call) error
}

type recording struct {
	next  engine.Completer
	rec   Recorder
	runID string
	seq   atomic.Int64
}

// WithTranscript records every call under runID. A failure to record fails
// an otherwise successful call.
func WithTranscript(next engine.Completer, rec Recorder, runID string) engine.Completer {
	return &recording{next: next, rec: rec, runID: runID}
}

func (r *recording) Complete(ctx context.Context, prompt string) (string, error) {
	seq := int(r.seq.Add(1))
	start := time.Now()
	resp, err := r.next.Complete(ctx, prompt)

	call := transcript.Call{
		RunID:    r.runID,
		Seq:      seq,
		Prompt:   prompt,
		Response: resp,
		Duration: time.Since(start),
	}
	if err != nil {
		call.Error = err.Error()
	}
	if recErr := r.rec.Record(ctx, call); recErr != nil && err == nil {
		return "", fmt.Errorf("record transcript: %w", recErr)
	}
	return resp, err
}
