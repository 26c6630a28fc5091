package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recorder answers prompts from a fixed function and keeps every prompt.
type recorder struct {
	prompts []string
	answer  func(prompt string) (string, error)
}

func (r *recorder) Complete(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if r.answer == nil {
		return "", nil
	}
	return r.answer(prompt)
}

func quizAnswers(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Create a list of questions from the given text:"):
		return "What is the capital of France?\nWho wrote 'To Kill a Mockingbird'?", nil
	case strings.Contains(prompt, "What is the capital of France?"):
		return "Paris\nLyon\nMarseille\nToulouse", nil
	case strings.Contains(prompt, "Who wrote 'To Kill a Mockingbird'?"):
		return "Harper Lee\nErnest Hemingway\nMark Twain\nF. Scott Fitzgerald", nil
	}
	return "Unhandled case", nil
}

func keys(t *testing.T, v any) []string {
	t.Helper()
	om, ok := v.(*orderedmap.OrderedMap[string, any])
	require.True(t, ok, "expected ordered map, got %T", v)
	var out []string
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func get(t *testing.T, v any, key string) any {
	t.Helper()
	om, ok := v.(*orderedmap.OrderedMap[string, any])
	require.True(t, ok, "expected ordered map, got %T", v)
	val, ok := om.Get(key)
	require.True(t, ok, "missing key %q", key)
	return val
}

func TestGenerate_ListDropsBlankLines(t *testing.T) {
	schema := api.Object(
		api.Named("questions", api.List("Q about #{_chunk}", api.Chunk())),
	)
	rec := &recorder{answer: func(string) (string, error) { return "A\nB\n\nC", nil }}

	out, err := Generate(context.Background(), schema, rec, "the text")
	require.NoError(t, err)

	require.Len(t, rec.prompts, 1)
	assert.Equal(t, "Q about the text\nPlace one answer on each line.", rec.prompts[0])
	assert.Equal(t, []string{"questions"}, keys(t, out))
	assert.Equal(t, []any{"A", "B", "C"}, get(t, out, "questions"))
}

func TestGenerate_QuizSchema(t *testing.T) {
	schema, err := api.Load("../../examples/quiz.json")
	require.NoError(t, err)

	rec := &recorder{answer: quizAnswers}
	out, stats, err := NewEngine(schema, rec).GenerateWithStats(context.Background(), "{sample text}")
	require.NoError(t, err)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"questions": [
		{"questionText": "What is the capital of France?", "answers": ["Paris", "Lyon", "Marseille", "Toulouse"]},
		{"questionText": "Who wrote 'To Kill a Mockingbird'?", "answers": ["Harper Lee", "Ernest Hemingway", "Mark Twain", "F. Scott Fitzgerald"]}
	]}`, string(b))

	// One call for the question list, one per answer list.
	assert.Equal(t, 3, stats.Calls)
	assert.Equal(t, 3, len(rec.prompts))

	items := get(t, out, "questions").([]any)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"questionText", "answers"}, keys(t, items[0]))
}

func TestGenerate_NestedPlaceholdersSeeSiblingAndAncestor(t *testing.T) {
	schema, err := api.Load("../../examples/quiz.json")
	require.NoError(t, err)

	rec := &recorder{answer: quizAnswers}
	_, err = Generate(context.Background(), schema, rec, "ROOT-CONTEXT")
	require.NoError(t, err)

	require.Len(t, rec.prompts, 3)
	assert.Contains(t, rec.prompts[0], "from the given text: ROOT-CONTEXT")
	// #{_parent._parent._chunk} reaches the root context, #{questionText}
	// the sibling built just before.
	assert.Contains(t, rec.prompts[1], "Question basis text:\nROOT-CONTEXT\n")
	assert.Contains(t, rec.prompts[1], "quiz question: What is the capital of France?\n")
	assert.Contains(t, rec.prompts[2], "quiz question: Who wrote 'To Kill a Mockingbird'?\n")
	assert.True(t, strings.HasSuffix(rec.prompts[2], "\nPlace one answer on each line."))
}

func TestGenerate_KeysFollowDeclarationOrder(t *testing.T) {
	schema := api.Object(
		api.Named("zeta", api.Literal("z")),
		api.Named("alpha", api.Literal("a")),
		api.Named("mid", api.Object(
			api.Named("b", api.Chunk()),
			api.Named("a", api.Chunk()),
		)),
	)
	out, err := Generate(context.Background(), schema, nil, "ctx")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys(t, out))
	assert.Equal(t, []string{"b", "a"}, keys(t, get(t, out, "mid")))
	assert.Equal(t, "ctx", get(t, get(t, out, "mid"), "a"))
}

func TestGenerate_EmptyObjectNeverCalls(t *testing.T) {
	rec := &recorder{}
	out, err := Generate(context.Background(), api.Object(), rec, "ignored")
	require.NoError(t, err)
	assert.Empty(t, keys(t, out))
	assert.Empty(t, rec.prompts)
}

func TestGenerate_LiteralNeverCalls(t *testing.T) {
	rec := &recorder{}
	out, err := Generate(context.Background(), api.Literal("fixed"), rec, "context")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
	assert.Empty(t, rec.prompts)
}

func TestGenerate_ChunkFallback(t *testing.T) {
	out, err := Generate(context.Background(), api.Chunk(), nil, "verbatim  context\n")
	require.NoError(t, err)
	assert.Equal(t, "verbatim  context\n", out)

	out, err = Generate(context.Background(), api.Chunk(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestGenerate_ListItemsKeepUntrimmedLine(t *testing.T) {
	rec := &recorder{answer: func(string) (string, error) { return "  one \r\ntwo\r   \n", nil }}
	out, err := Generate(context.Background(), api.List("", api.Chunk()), rec, "")
	require.NoError(t, err)
	assert.Equal(t, []any{"  one ", "two"}, out)
	assert.Equal(t, "\nPlace one answer on each line.", rec.prompts[0])
}

func TestGenerate_QueryLeafAndForwardReference(t *testing.T) {
	schema := api.Object(
		api.Named("early", api.Query("late=[#{late}]")),
		api.Named("late", api.Literal("L")),
		api.Named("echo", api.Query("early=[#{early}] late=[#{late}]")),
	)
	rec := &recorder{answer: func(p string) (string, error) { return p, nil }}
	out, err := Generate(context.Background(), schema, rec, "")
	require.NoError(t, err)

	assert.Equal(t, "late=[]", get(t, out, "early"))
	assert.Equal(t, "early=[late=[]] late=[L]", get(t, out, "echo"))
}

func TestGenerate_CompletionFailureAborts(t *testing.T) {
	boom := errors.New("backend down")
	schema := api.Object(
		api.Named("first", api.Query("one")),
		api.Named("second", api.Query("two")),
	)
	rec := &recorder{answer: func(p string) (string, error) {
		if p == "two" {
			return "", boom
		}
		return "ok", nil
	}}

	out, err := Generate(context.Background(), schema, rec, "")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrCompletion)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "$.second")
}

func TestGenerate_MalformedListTypeFailsWhenReached(t *testing.T) {
	bad := &api.Schema{Kind: api.KindObject, Attributes: []*api.Schema{{Kind: api.KindString}}}
	rec := &recorder{answer: func(string) (string, error) { return "x\ny", nil }}

	_, err := Generate(context.Background(), api.List("q", bad), rec, "")
	assert.ErrorIs(t, err, api.ErrSchemaShape)
	assert.Len(t, rec.prompts, 1)

	// No items means the nested schema is never built.
	rec = &recorder{answer: func(string) (string, error) { return "\n\n", nil }}
	out, err := Generate(context.Background(), api.List("q", bad), rec, "")
	require.NoError(t, err)
	assert.Equal(t, []any{}, out)
}

func TestGenerate_SchemaShapeErrors(t *testing.T) {
	_, err := Generate(context.Background(), nil, nil, "")
	assert.ErrorIs(t, err, api.ErrSchemaShape)

	_, err = Generate(context.Background(), &api.Schema{Kind: api.KindList}, nil, "")
	assert.ErrorIs(t, err, api.ErrSchemaShape)
}

func TestGenerate_NoCompleter(t *testing.T) {
	_, err := Generate(context.Background(), api.Query("hi"), nil, "")
	assert.ErrorIs(t, err, ErrNoCompleter)
}

func TestGenerate_ContextReachesCompleter(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")
	var seen any
	c := CompleterFunc(func(ctx context.Context, _ string) (string, error) {
		seen = ctx.Value(key{})
		return "ok", nil
	})
	out, err := Generate(ctx, api.Query("q"), c, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "marker", seen)
}

func TestGenerate_CustomListInstruction(t *testing.T) {
	rec := &recorder{answer: func(string) (string, error) { return "a", nil }}
	_, err := Generate(context.Background(), api.List("list", api.Chunk()), rec, "", WithListInstruction("One per line."))
	require.NoError(t, err)
	assert.Equal(t, "list\nOne per line.", rec.prompts[0])
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "d"}, splitLines("a\nb\r\nc\rd\n"))
	assert.Empty(t, splitLines(""))
}

func TestGenerate_TracesEveryNodeAtDebug(t *testing.T) {
	schema, err := api.Load("../../examples/quiz.json")
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	_, stats, err := NewEngine(schema, &recorder{answer: quizAnswers}, WithLogger(log)).
		GenerateWithStats(context.Background(), "{sample text}")
	require.NoError(t, err)

	traced := logs.FilterMessage("build node").All()
	require.Len(t, traced, stats.Nodes)

	root := traced[0].ContextMap()
	assert.Equal(t, "$", root["path"])
	assert.Equal(t, "object", root["kind"])
	assert.Equal(t, int64(0), root["depth"])

	var answers map[string]interface{}
	for _, e := range traced {
		if m := e.ContextMap(); m["path"] == "$.questions[1].answers" {
			answers = m
		}
	}
	require.NotNil(t, answers)
	assert.Equal(t, "list", answers["kind"])
	assert.Equal(t, int64(3), answers["depth"])
	assert.Equal(t, []interface{}{"_parent._parent._chunk", "questionText"}, answers["refs"])
}

func TestGenerate_NoTraceAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	_, err := Generate(context.Background(), api.Object(api.Named("a", api.Chunk())), nil, "x", WithLogger(log))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}
