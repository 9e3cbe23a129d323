package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mcphub/pkg/transport"
)

const sampleYAML = `
servers:
  - name: wiki
    transport: stdio
    path: servers/wiki.py
    env:
      WIKI_LANG: en
  - name: crawler
    transport: sse
    url: http://localhost:8000/sse
    headers:
      Authorization: Bearer secret
    timeout: 5s
  - name: legacy
    transport: websocket
    url: ws://localhost:9000/ws
    enabled: false
llm:
  provider: openai
  model: gpt-4o-mini
  max_tokens: 2048
agent:
  max_iterations: 4
  tool_timeout: 15s
context:
  file: data/history.json
  max_history: 20
`

// newTestLoader isolates the loader from the process environment.
func newTestLoader(path string, env map[string]string) *Loader {
	l := NewLoader(path)
	l.getenv = func(k string) string { return env[k] }
	return l
}

// headerValue looks a header up case-insensitively; viper may fold map keys.
func headerValue(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/servers.yaml")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/servers.yaml", loader.GetConfigPath())
	assert.Equal(t, DefaultConfigFile, NewLoader("").GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

		cfg, err := newTestLoader(configPath, nil).Load()

		require.NoError(t, err)
		assert.Equal(t, "qwen-max", cfg.LLM.Model)
		assert.Empty(t, cfg.Servers)
	})

	t.Run("load config from yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, sampleYAML)

		cfg, err := newTestLoader(configPath, nil).Load()
		require.NoError(t, err)

		require.Len(t, cfg.Servers, 3)
		wiki := cfg.Servers[0]
		assert.Equal(t, "wiki", wiki.Name)
		kind, err := wiki.Kind()
		require.NoError(t, err)
		assert.Equal(t, transport.KindPipe, kind)
		assert.Equal(t, map[string]string{"WIKI_LANG": "en"}, wiki.Env)
		assert.True(t, wiki.IsEnabled())

		crawler := cfg.Servers[1]
		assert.Equal(t, 5*time.Second, crawler.Timeout)
		assert.Equal(t, "Bearer secret", headerValue(crawler.Headers, "Authorization"))

		assert.False(t, cfg.Servers[2].IsEnabled())

		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.Equal(t, 2048, cfg.LLM.MaxTokens)
		assert.Equal(t, 3, cfg.LLM.MaxRetries, "unset keys keep their defaults")
		assert.Equal(t, 4, cfg.Agent.MaxIterations)
		assert.Equal(t, 15*time.Second, cfg.Agent.ToolTimeout)
		assert.Equal(t, 3, cfg.Agent.ContextTurns)
		assert.Equal(t, "data/history.json", cfg.Context.File)
		assert.Equal(t, 20, cfg.Context.MaxHistory)
	})

	t.Run("load config from json file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.json")
		writeFile(t, configPath, `{"servers":[{"name":"calc","transport":"pipe","command":"calc-server"}],"llm":{"provider":"anthropic","model":"claude-test"}}`)

		cfg, err := newTestLoader(configPath, nil).Load()
		require.NoError(t, err)
		require.Len(t, cfg.Servers, 1)
		assert.Equal(t, "calc-server", cfg.Servers[0].Command)
		assert.Equal(t, "anthropic", cfg.LLM.Provider)
	})

	t.Run("fallback environment variables", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "servers: []\n")

		cfg, err := newTestLoader(configPath, map[string]string{
			EnvOpenAIKey:     "sk-from-env",
			EnvOpenAIBaseURL: "https://dashscope.example.com/v1",
			EnvModel:         "qwen-plus",
		}).Load()
		require.NoError(t, err)

		assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
		assert.Equal(t, "https://dashscope.example.com/v1", cfg.LLM.BaseURL)
		assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	})

	t.Run("configured model wins over LLM_MODEL", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, sampleYAML)

		cfg, err := newTestLoader(configPath, map[string]string{EnvModel: "qwen-plus"}).Load()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	})

	t.Run("anthropic key fallback", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "llm:\n  provider: anthropic\n")

		cfg, err := newTestLoader(configPath, map[string]string{
			EnvOpenAIKey:    "sk-openai",
			EnvAnthropicKey: "sk-ant-key",
		}).Load()
		require.NoError(t, err)
		assert.Equal(t, "sk-ant-key", cfg.LLM.APIKey)
		assert.Empty(t, cfg.LLM.BaseURL)
	})

	t.Run("prefixed environment override", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, sampleYAML)
		t.Setenv("MCPHUB_LLM_MAX_RETRIES", "7")

		cfg, err := newTestLoader(configPath, nil).Load()
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.LLM.MaxRetries)
	})

	t.Run("explicit zero values are kept", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "llm:\n  temperature: 0\n  max_retries: 0\n")

		cfg, err := newTestLoader(configPath, nil).Load()
		require.NoError(t, err)
		require.NotNil(t, cfg.LLM.Temperature)
		assert.Equal(t, 0.0, *cfg.LLM.Temperature)
		assert.Equal(t, 0, cfg.LLM.MaxRetries)
	})

	t.Run("temperature unset by default", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "servers: []\n")

		cfg, err := newTestLoader(configPath, nil).Load()
		require.NoError(t, err)
		assert.Nil(t, cfg.LLM.Temperature)
	})

	t.Run("temperature out of range", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "llm:\n  temperature: 3.5\n")

		_, err := newTestLoader(configPath, nil).Load()
		assert.Error(t, err)
	})

	t.Run("invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "servers: [unclosed")

		_, err := newTestLoader(configPath, nil).Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid server entry", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "servers.yaml")
		writeFile(t, configPath, "servers:\n  - name: broken\n    transport: sse\n")

		_, err := newTestLoader(configPath, nil).Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "servers.yaml")
	loader := newTestLoader(configPath, nil)

	disabled := false
	cfg := DefaultConfig()
	cfg.Servers = []transport.ServerConfig{
		{Name: "wiki", Transport: "pipe", Path: "servers/wiki.py", Args: []string{"--lang", "en"}},
		{Name: "crawler", Transport: "streaming-http", URL: "http://localhost:8000/mcp", Timeout: 12 * time.Second, Enabled: &disabled},
	}
	cfg.LLM.Model = "qwen-turbo"
	temperature := 0.0
	cfg.LLM.Temperature = &temperature
	cfg.Agent.ToolTimeout = 90 * time.Second

	require.NoError(t, loader.Save(cfg))
	_, err := os.Stat(configPath)
	require.NoError(t, err)

	loaded, err := loader.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Servers, 2)
	assert.Equal(t, []string{"--lang", "en"}, loaded.Servers[0].Args)
	assert.Equal(t, "servers/wiki.py", loaded.Servers[0].Path)
	assert.Equal(t, 12*time.Second, loaded.Servers[1].Timeout)
	assert.False(t, loaded.Servers[1].IsEnabled())
	assert.Equal(t, "qwen-turbo", loaded.LLM.Model)
	require.NotNil(t, loaded.LLM.Temperature)
	assert.Equal(t, 0.0, *loaded.LLM.Temperature)
	assert.Equal(t, 90*time.Second, loaded.Agent.ToolTimeout)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}
