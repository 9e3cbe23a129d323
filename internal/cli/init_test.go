package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mcphub/internal/config"
)

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "servers.yaml")

	output, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration saved to: "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "example", cfg.Servers[0].Name)
	assert.False(t, cfg.Servers[0].IsEnabled())
	assert.Equal(t, config.DefaultConfig().LLM.Model, cfg.LLM.Model)

	_, err = execute(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--force", "--config", path)
	require.NoError(t, err)
}
