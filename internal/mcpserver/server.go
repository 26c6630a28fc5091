// Package mcpserver exposes schema generation as MCP tools over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/agentic-research/shapegen/api"
	"github.com/agentic-research/shapegen/internal/completion"
	"github.com/agentic-research/shapegen/internal/engine"
	"github.com/agentic-research/shapegen/internal/logger"
	"github.com/agentic-research/shapegen/internal/output"
	"github.com/agentic-research/shapegen/internal/transcript"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wires a completer into the generate and describe tools.
type Server struct {
	completer  engine.Completer
	log        *logger.Logger
	transcript *transcript.Store
	opts       []engine.Option

	mcp *server.MCPServer
}

type Option func(*Server)

// WithTranscript records every generate call as its own run.
func WithTranscript(s *transcript.Store) Option {
	return func(srv *Server) { srv.transcript = s }
}

// WithEngineOptions passes options to every engine the server creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(srv *Server) { srv.opts = append(srv.opts, opts...) }
}

func New(c engine.Completer, log *logger.Logger, version string, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{completer: c, log: log}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer("shapegen", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.mcp.AddTool(mcp.NewTool("generate",
		mcp.WithDescription("Fill a schema by querying the language model. Returns the generated value as JSON."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("Schema document as JSON: objects have attributes, lists have listType, leaves have value or queryString."),
		),
		mcp.WithString("context",
			mcp.Description("Text available to the schema as #{_chunk}."),
		),
	), s.handleGenerate)
	s.mcp.AddTool(mcp.NewTool("describe",
		mcp.WithDescription("Return the JSON Schema of the value a schema generates."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("Schema document as JSON."),
		),
	), s.handleDescribe)
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := api.ParseJSON([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunk := req.GetString("context", "")
	log := s.log.With("tool", "generate")

	completer := s.completer
	if s.transcript != nil {
		runID, err := s.transcript.BeginRun(ctx, raw, chunk)
		if err != nil {
			return nil, fmt.Errorf("begin transcript run: %w", err)
		}
		log = log.With("run", runID)
		completer = completion.WithTranscript(completer, s.transcript, runID)
	}

	opts := append([]engine.Option{engine.WithLogger(log)}, s.opts...)
	v, stats, err := engine.NewEngine(schema, completer, opts...).GenerateWithStats(ctx, chunk)
	if err != nil {
		log.Warn("generation failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Info("generation done", "calls", stats.Calls, "nodes", stats.Nodes, "duration", stats.Duration)

	var buf bytes.Buffer
	if err := output.Render(&buf, v, output.JSON); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) handleDescribe(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := api.ParseJSON([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := json.MarshalIndent(api.OutputSchema(schema), "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
