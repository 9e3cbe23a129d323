package cli

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mcphub/pkg/memory"
)

const disabledServers = `servers:
  - name: calculator
    transport: stdio
    command: python
    args: [calc.py]
    enabled: false
  - name: weather
    transport: sse
    url: http://127.0.0.1:1/sse
    enabled: false
`

func TestStatusCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "status", "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "status")
		assert.Contains(t, output, "--check")
	})

	t.Run("summary", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, disabledServers)
		seedHistory(t, dir)
		t.Setenv("OPENAI_API_KEY", "sk-test-1234567890")

		output, err := execute(t, "status", "--config", path)
		require.NoError(t, err)

		assert.Contains(t, output, "Provider: openai (model qwen-max)")
		assert.Contains(t, output, "API key:  set")
		assert.Contains(t, output, "Servers:  2 configured")
		assert.Contains(t, output, "calculator (stdio, disabled)")
		assert.Contains(t, output, "weather (sse, disabled)")
		assert.Contains(t, output, "(2 turns, 3 tool calls)")
		assert.NotContains(t, output, "Connectivity check")
	})

	t.Run("missing key and busy history", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "")
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("MCPHUB_LLM_API_KEY", "")

		store, err := memory.Open(memory.Config{Path: filepath.Join(dir, "history.json"), Logger: zerolog.Nop()})
		require.NoError(t, err)
		defer store.Close()

		output, err := execute(t, "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, output, "API key:  missing")
		assert.Contains(t, output, "Servers:  none configured")
		if runtime.GOOS != "windows" {
			assert.Contains(t, output, "in use by a running chat")
		}
	})

	t.Run("check skips disabled servers", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, disabledServers)

		output, err := execute(t, "status", "--check", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, output, "Connectivity check")
		assert.Contains(t, output, "Skipped:   calculator")
		assert.Contains(t, output, "Skipped:   weather")
		assert.Contains(t, output, "No servers connected.")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 5*time.Minute + 30*time.Second, "5m30s"},
		{"hours", 2*time.Hour + 15*time.Minute + 30*time.Second, "2h15m30s"},
		{"rounds", 1500 * time.Millisecond, "2s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
