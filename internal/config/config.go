package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/mcphub/internal/logger"
	"github.com/harun/mcphub/pkg/transport"
)

// DefaultConfigFile is read when no --config flag is given
const DefaultConfigFile = "servers.yaml"

// Config represents the main mcphub configuration
type Config struct {
	// Tool servers, connected in listed order
	Servers []transport.ServerConfig `json:"servers" mapstructure:"servers"`

	// Inference service
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Conversation loop
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Context store
	Context ContextConfig `json:"context" mapstructure:"context"`

	// Logging
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// LLMConfig selects and tunes the inference provider
type LLMConfig struct {
	Provider    string        `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string        `json:"api_key" mapstructure:"api_key"`
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	Model       string        `json:"model" mapstructure:"model"`
	MaxTokens   int           `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty" mapstructure:"temperature"` // nil leaves it to the provider
	MaxRetries  int           `json:"max_retries" mapstructure:"max_retries"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// AgentConfig bounds one conversation turn
type AgentConfig struct {
	MaxIterations int           `json:"max_iterations" mapstructure:"max_iterations"`
	ContextTurns  int           `json:"context_turns" mapstructure:"context_turns"`
	ToolTimeout   time.Duration `json:"tool_timeout" mapstructure:"tool_timeout"`
}

// ContextConfig holds context store settings
type ContextConfig struct {
	File       string `json:"file" mapstructure:"file"`
	MaxHistory int    `json:"max_history" mapstructure:"max_history"`
	ExportDir  string `json:"export_dir" mapstructure:"export_dir"`
}

// MetricsConfig holds the Prometheus endpoint settings. An empty Addr
// disables the endpoint.
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Servers: []transport.ServerConfig{},
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "qwen-max",
			MaxTokens:  1000,
			MaxRetries: 3,
			Timeout:    120 * time.Second,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			ContextTurns:  3,
			ToolTimeout:   60 * time.Second,
		},
		Context: ContextConfig{
			File:       "logs/context_history.json",
			MaxHistory: 50,
			ExportDir:  "logs",
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{},
	}
}

// String returns a JSON representation of the config with the API key masked
func (c *Config) String() string {
	clone := *c
	clone.LLM.APIKey = maskKey(c.LLM.APIKey)
	data, _ := json.MarshalIndent(clone, "", "  ")
	return string(data)
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Validate checks if the configuration is structurally valid. Credentials
// are checked separately by RequireCredentials so that offline commands
// work without them.
func (c *Config) Validate() error {
	if err := validateProvider(c.LLM.Provider); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("server %d: %w", i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("server %d: duplicate server name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
	}

	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm.max_tokens cannot be negative")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", *t)
	}
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent.max_iterations cannot be negative")
	}
	if c.Context.File == "" {
		return fmt.Errorf("context.file is required")
	}
	if c.Context.MaxHistory < 0 {
		return fmt.Errorf("context.max_history cannot be negative")
	}

	return nil
}

// RequireCredentials checks that the selected provider has an API key
func (c *Config) RequireCredentials() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("no API key configured for provider %s: set llm.api_key or %s", c.LLM.Provider, fallbackKeyEnv(c.LLM.Provider))
	}
	return nil
}

func validateProvider(p string) error {
	switch p {
	case "openai", "anthropic":
		return nil
	default:
		return fmt.Errorf("invalid llm provider %q (must be: openai, anthropic)", p)
	}
}
