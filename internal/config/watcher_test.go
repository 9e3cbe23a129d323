package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	writeFile(t, path, "servers: []\n")

	var calls atomic.Int32
	w, err := newWatcher(path, zerolog.Nop(), func() { calls.Add(1) }, 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	t.Run("ignores other files", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("debounces writes to the config file", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			writeFile(t, path, "servers: []\n# edit\n")
		}
		assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("sees a file replaced by rename", func(t *testing.T) {
		before := calls.Load()
		tmp := filepath.Join(dir, "servers.yaml.tmp")
		writeFile(t, tmp, "servers: []\n# replaced\n")
		require.NoError(t, os.Rename(tmp, path))
		assert.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	writeFile(t, path, "servers: []\n")

	w, err := NewWatcher(path, zerolog.Nop(), func() {})
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "servers.yaml"), zerolog.Nop(), func() {})
	assert.Error(t, err)
}
