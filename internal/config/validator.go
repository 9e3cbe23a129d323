package config

import (
	"fmt"
	"strings"

	"github.com/harun/mcphub/pkg/transport"
)

// Validator collects every problem in a config instead of stopping at the
// first one. Load uses Config.Validate; the CLI uses Validator to report.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format. OpenAI-compatible services
// reached through a custom base URL use their own key formats.
func (v *Validator) ValidateAPIKey(key, provider, baseURL string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if baseURL == "" && !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateTemperature validates temperature value
func (v *Validator) ValidateTemperature(temp float64) error {
	if temp < 0 || temp > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", temp)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateServers checks every server entry and name uniqueness
func (v *Validator) ValidateServers(servers []transport.ServerConfig) []error {
	var errs []error
	seen := make(map[string]int, len(servers))
	for i, s := range servers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("server %d: %w", i, err))
		}
		if s.Name == "" {
			continue
		}
		if first, dup := seen[s.Name]; dup {
			errs = append(errs, fmt.Errorf("server %d: name %q already used by server %d", i, s.Name, first))
			continue
		}
		seen[s.Name] = i
	}
	return errs
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := validateProvider(cfg.LLM.Provider); err != nil {
		errs = append(errs, err)
	}
	if cfg.LLM.APIKey != "" {
		if err := v.ValidateAPIKey(cfg.LLM.APIKey, cfg.LLM.Provider, cfg.LLM.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, fmt.Errorf("llm.model cannot be empty"))
	}
	if cfg.LLM.MaxTokens != 0 {
		if err := v.ValidateMaxTokens(cfg.LLM.MaxTokens); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.LLM.Temperature != nil {
		if err := v.ValidateTemperature(*cfg.LLM.Temperature); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries must be >= 0"))
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout must be >= 0"))
	}

	if cfg.Agent.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be >= 0"))
	}
	if cfg.Agent.ContextTurns < 0 {
		errs = append(errs, fmt.Errorf("agent.context_turns must be >= 0"))
	}
	if cfg.Agent.ToolTimeout < 0 {
		errs = append(errs, fmt.Errorf("agent.tool_timeout must be >= 0"))
	}

	if cfg.Context.File == "" {
		errs = append(errs, fmt.Errorf("context.file is required"))
	}
	if cfg.Context.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("context.max_history must be >= 0"))
	}

	errs = append(errs, v.ValidateServers(cfg.Servers)...)

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}
