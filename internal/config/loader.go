package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/harun/mcphub/pkg/transport"
)

// EnvPrefix prefixes environment overrides, e.g. MCPHUB_LLM_MODEL
const EnvPrefix = "MCPHUB"

// Environment variables honoured when the config leaves a value unset
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvModel         = "LLM_MODEL"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
	getenv     func(string) string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		getenv:     os.Getenv,
	}
}

// Load loads the configuration from file. A missing file yields the
// defaults; environment overrides and fallbacks apply either way.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	for key, value := range settings(DefaultConfig()) {
		if key == "servers" {
			continue
		}
		v.SetDefault(key, value)
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Temperature has no default, so its env key is bound explicitly.
	_ = v.BindEnv("llm.temperature")

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Servers == nil {
		cfg.Servers = []transport.ServerConfig{}
	}
	for i := range cfg.Servers {
		cfg.Servers[i].Env = upperKeys(cfg.Servers[i].Env)
	}

	l.applyFallbacks(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// applyFallbacks fills unset values from the conventional provider
// environment variables.
func (l *Loader) applyFallbacks(cfg *Config, v *viper.Viper) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = l.getenv(fallbackKeyEnv(cfg.LLM.Provider))
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.BaseURL = l.getenv(EnvOpenAIBaseURL)
	}
	if !v.InConfig("llm.model") && l.getenv(EnvPrefix+"_LLM_MODEL") == "" {
		if model := l.getenv(EnvModel); model != "" {
			cfg.LLM.Model = model
		}
	}
}

// upperKeys restores the conventional case of environment variable names,
// which viper folds to lower case.
func upperKeys(env map[string]string) map[string]string {
	if len(env) == 0 {
		return env
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func fallbackKeyEnv(provider string) string {
	if provider == "anthropic" {
		return EnvAnthropicKey
	}
	return EnvOpenAIKey
}

// Save writes cfg to the config path. The format follows the extension.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	for key, value := range settings(cfg) {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	return DefaultConfigFile
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// settings flattens cfg into viper keys. Durations are written as strings
// so a saved file reads back through the same decode hooks.
func settings(cfg *Config) map[string]any {
	servers := make([]map[string]any, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		m := map[string]any{
			"name":      s.Name,
			"transport": s.Transport,
		}
		if s.Command != "" {
			m["command"] = s.Command
		}
		if len(s.Args) > 0 {
			m["args"] = s.Args
		}
		if s.Path != "" {
			m["path"] = s.Path
		}
		if len(s.Env) > 0 {
			m["env"] = s.Env
		}
		if s.URL != "" {
			m["url"] = s.URL
		}
		if len(s.Headers) > 0 {
			m["headers"] = s.Headers
		}
		if s.Enabled != nil {
			m["enabled"] = *s.Enabled
		}
		if s.Timeout > 0 {
			m["timeout"] = s.Timeout.String()
		}
		servers = append(servers, m)
	}

	out := map[string]any{
		"servers": servers,

		"llm.provider":    cfg.LLM.Provider,
		"llm.api_key":     cfg.LLM.APIKey,
		"llm.base_url":    cfg.LLM.BaseURL,
		"llm.model":       cfg.LLM.Model,
		"llm.max_tokens":  cfg.LLM.MaxTokens,
		"llm.max_retries": cfg.LLM.MaxRetries,
		"llm.timeout":     cfg.LLM.Timeout.String(),

		"agent.max_iterations": cfg.Agent.MaxIterations,
		"agent.context_turns":  cfg.Agent.ContextTurns,
		"agent.tool_timeout":   cfg.Agent.ToolTimeout.String(),

		"context.file":        cfg.Context.File,
		"context.max_history": cfg.Context.MaxHistory,
		"context.export_dir":  cfg.Context.ExportDir,

		"logging.level":     cfg.Logging.Level,
		"logging.file":      cfg.Logging.File,
		"logging.console":   cfg.Logging.Console,
		"logging.pretty":    cfg.Logging.Pretty,
		"logging.redaction": cfg.Logging.Redaction,
		"logging.max_size":  cfg.Logging.MaxSize,
		"logging.max_age":   cfg.Logging.MaxAge,
		"logging.compress":  cfg.Logging.Compress,

		"metrics.addr": cfg.Metrics.Addr,
	}
	if cfg.LLM.Temperature != nil {
		out["llm.temperature"] = *cfg.LLM.Temperature
	}
	return out
}
