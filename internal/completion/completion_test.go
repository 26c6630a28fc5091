package completion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/config"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/agentic-research/shapegen/internal/transcript"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, "hello", req["prompt"])
		assert.Equal(t, false, req["stream"])
		_, _ = io.WriteString(w, `{"model":"llama3.2","response":"hi there","done":true}`)
	}))
	defer srv.Close()

	o := NewOllama(HTTPConfig{BaseURL: srv.URL + "/", Model: "llama3.2"})
	out, err := o.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestOllama_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"response":"finally","done":true}`)
	}))
	defer srv.Close()

	o := NewOllama(HTTPConfig{BaseURL: srv.URL, MaxRetries: 2, RetryInterval: time.Millisecond})
	out, err := o.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	assert.Equal(t, int32(3), hits.Load())
}

func TestOllama_ClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(HTTPConfig{BaseURL: srv.URL, MaxRetries: 3, RetryInterval: time.Millisecond})
	_, err := o.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Equal(t, int32(1), hits.Load())
}

func TestOllama_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllama(HTTPConfig{BaseURL: srv.URL, MaxRetries: 1, RetryInterval: time.Millisecond})
	_, err := o.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, int32(2), hits.Load())
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
			assert.Equal(t, "question?", req.Messages[0].Content)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"answer"}}]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(HTTPConfig{BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	out, err := o.Complete(context.Background(), "question?")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(HTTPConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "no choices")
}

func TestOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(HTTPConfig{BaseURL: "http://example.invalid"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestMock_RulesInOrder(t *testing.T) {
	m := NewMock(QuizRules()...)
	out, err := m.Complete(context.Background(), "Create a list of questions from the given text: x")
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?\nWho wrote 'To Kill a Mockingbird'?", out)

	out, err = m.Complete(context.Background(), "something else")
	require.NoError(t, err)
	assert.Equal(t, MockFallback, out)
	assert.Len(t, m.Prompts(), 2)
}

func TestMock_DrivesQuizSchema(t *testing.T) {
	schema, err := api.Load("../../examples/quiz.json")
	require.NoError(t, err)

	out, err := engine.Generate(context.Background(), schema, NewMock(QuizRules()...), "{sample text}")
	require.NoError(t, err)
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"Harper Lee"`)
	assert.Contains(t, string(b), `"Paris"`)
}

func TestWithLogging_PassesThrough(t *testing.T) {
	l, err := logger.New("dev", true)
	require.NoError(t, err)

	boom := errors.New("boom")
	c := WithLogging(engine.CompleterFunc(func(_ context.Context, p string) (string, error) {
		if p == "fail" {
			return "", boom
		}
		return "echo:" + p, nil
	}), l)

	out, err := c.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "echo:x", out)

	_, err = c.Complete(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
}

type memRecorder struct {
	calls []transcript.Call
	err   error
}

func (m *memRecorder) Record(_ context.Context, c transcript.Call) error {
	m.calls = append(m.calls, c)
	return m.err
}

func TestWithTranscript_RecordsSequence(t *testing.T) {
	rec := &memRecorder{}
	boom := errors.New("boom")
	c := WithTranscript(engine.CompleterFunc(func(_ context.Context, p string) (string, error) {
		if p == "bad" {
			return "", boom
		}
		return "ok", nil
	}), rec, "run-1")

	_, err := c.Complete(context.Background(), "good")
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "bad")
	assert.ErrorIs(t, err, boom)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, 1, rec.calls[0].Seq)
	assert.Equal(t, "run-1", rec.calls[0].RunID)
	assert.Equal(t, "ok", rec.calls[0].Response)
	assert.Equal(t, 2, rec.calls[1].Seq)
	assert.Equal(t, "boom", rec.calls[1].Error)
}

func TestWithTranscript_RecordFailureFailsCall(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	c := WithTranscript(NewMock(), rec, "run")
	_, err := c.Complete(context.Background(), "p")
	assert.ErrorContains(t, err, "disk full")
}

func TestWithTranscript_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := transcript.Open(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	schema, err := api.Load("../../examples/quiz.json")
	require.NoError(t, err)
	doc, err := json.Marshal(schema)
	require.NoError(t, err)

	runID, err := store.BeginRun(ctx, string(doc), "{sample text}")
	require.NoError(t, err)

	c := WithTranscript(NewMock(QuizRules()...), store, runID)
	_, err = engine.Generate(ctx, schema, c, "{sample text}")
	require.NoError(t, err)

	calls, err := store.Calls(ctx, runID)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].Prompt, "Create a list of questions")
	assert.Equal(t, "Paris\nLyon\nMarseille\nToulouse", calls[1].Response)
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	c, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, c)

	cfg.Backend = config.BackendMock
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, c)

	cfg.Backend = config.BackendOpenAI
	cfg.APIKey = ""
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.Backend = "nope"
	_, err = New(cfg)
	assert.Error(t, err)
}
