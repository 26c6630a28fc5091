package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendMock   = "mock"
)

// Config holds everything the CLI and MCP server need to run generations.
// Precedence: defaults, then the YAML file, then the environment, then flags.
type Config struct {
	Backend         string `yaml:"backend"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	MaxRetries      int    `yaml:"max_retries"`
	LogMode         string `yaml:"log_mode"`
	ListInstruction string `yaml:"list_instruction"`
	Transcript      string `yaml:"transcript"`

	// Backend specific endpoints from the environment. They are kept apart
	// so a later backend override still finds its own values.
	ollamaHost    string
	openAIBaseURL string
}

func Default() Config {
	return Config{
		Backend:        BackendOllama,
		Model:          "llama3.2",
		TimeoutSeconds: 120,
		MaxRetries:     2,
		LogMode:        "dev",
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty) and then the environment. The result is not validated:
// callers apply their flag overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = String("SHAPEGEN_BACKEND", c.Backend)
	c.Model = String("SHAPEGEN_MODEL", c.Model)
	c.LogMode = String("SHAPEGEN_LOG_MODE", c.LogMode)
	c.TimeoutSeconds = Int("SHAPEGEN_TIMEOUT_SECONDS", c.TimeoutSeconds)
	c.MaxRetries = Int("SHAPEGEN_MAX_RETRIES", c.MaxRetries)
	c.Transcript = String("SHAPEGEN_TRANSCRIPT", c.Transcript)
	c.APIKey = String("OPENAI_API_KEY", c.APIKey)
	c.ollamaHost = String("OLLAMA_HOST", "")
	c.openAIBaseURL = String("OPENAI_BASE_URL", "")
}

// Validate checks the backend name and numeric bounds.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendOllama, BackendOpenAI, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendOllama, BackendOpenAI, BackendMock)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// BaseURLOrDefault picks the endpoint for the current backend: its
// environment variable, then base_url, then the well-known default.
func (c Config) BaseURLOrDefault() string {
	switch c.Backend {
	case BackendOllama:
		if c.ollamaHost != "" {
			return OllamaURL(c.ollamaHost)
		}
		if c.BaseURL != "" {
			return c.BaseURL
		}
		return "http://127.0.0.1:11434"
	case BackendOpenAI:
		if c.openAIBaseURL != "" {
			return c.openAIBaseURL
		}
		if c.BaseURL != "" {
			return c.BaseURL
		}
		return "https://api.openai.com/v1"
	}
	return c.BaseURL
}

// OllamaURL turns an OLLAMA_HOST value into a base URL, following the
// ollama CLI: no scheme means http on port 11434, an explicit http or
// https scheme defaults to 80 or 443, and bind-all addresses map to
// loopback.
func OllamaURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	defaultPort := "11434"
	scheme, rest, ok := strings.Cut(host, "://")
	switch {
	case !ok:
		scheme, rest = "http", host
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}
	hostport, path, _ := strings.Cut(rest, "/")

	h, port, err := net.SplitHostPort(hostport)
	if err != nil {
		h, port = strings.Trim(hostport, "[]"), defaultPort
	}
	switch h {
	case "", "0.0.0.0", "::":
		h = "127.0.0.1"
	}
	out := scheme + "://" + net.JoinHostPort(h, port)
	if path != "" {
		out += "/" + path
	}
	return out
}

// Timeout is TimeoutSeconds as a duration; zero means no timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
