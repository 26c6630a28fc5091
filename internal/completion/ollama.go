package completion

import (
	"context"
	"fmt"
	"strings"
)

// Ollama completes prompts through an Ollama server's /api/generate.
type Ollama struct {
	cfg HTTPConfig
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func NewOllama(cfg HTTPConfig) *Ollama {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Ollama{cfg: cfg}
}

// Complete implements engine.Completer.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	req := ollamaRequest{Model: o.cfg.Model, Prompt: prompt, Stream: false}
	var resp ollamaResponse
	if err := postJSON(ctx, o.cfg, o.cfg.BaseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", resp.Error)
	}
	return resp.Response, nil
}
