package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harun/mcphub/pkg/transport"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Empty(t, cfg.Servers)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "qwen-max", cfg.LLM.Model)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Nil(t, cfg.LLM.Temperature)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 3, cfg.Agent.ContextTurns)
	assert.Equal(t, 60*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(t, "logs/context_history.json", cfg.Context.File)
	assert.Equal(t, 50, cfg.Context.MaxHistory)
	assert.Equal(t, "logs", cfg.Context.ExportDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("invalid provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LLM.Provider = "gemini"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid llm provider")
	})

	t.Run("duplicate server names", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []transport.ServerConfig{
			{Name: "wiki", Transport: "pipe", Command: "wiki"},
			{Name: "wiki", Transport: "sse", URL: "http://localhost:9000/sse"},
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `duplicate server name "wiki"`)
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []transport.ServerConfig{{Name: "x", Transport: "carrier-pigeon"}}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.ErrorIs(t, err, transport.ErrInvalidConfig)
	})

	t.Run("network server without url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Servers = []transport.ServerConfig{{Name: "crawler", Transport: "streaming-http"}}

		assert.Error(t, cfg.Validate())
	})

	t.Run("negative limits", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Agent.MaxIterations = -1
		assert.Error(t, cfg.Validate())

		cfg = DefaultConfig()
		cfg.Context.MaxHistory = -5
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing context file", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Context.File = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestRequireCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireCredentials()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.LLM.Provider = "anthropic"
	assert.Contains(t, cfg.RequireCredentials().Error(), "ANTHROPIC_API_KEY")

	cfg.LLM.APIKey = "sk-ant-123"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestConfigStringMasksKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-1234567890abcdef"

	out := cfg.String()
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "sk-1****cdef")
	assert.Equal(t, "sk-1234567890abcdef", cfg.LLM.APIKey, "String must not modify the config")
}
