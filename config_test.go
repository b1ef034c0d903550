package ioring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, DefaultPoolDepth, cfg.PoolDepth)
	require.Equal(t, uint32(DefaultRingEntries), cfg.RingEntries)
	require.Equal(t, time.Second, cfg.DrainTimeout)
}

func TestLoadConfigNoFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultPoolDepth, cfg.PoolDepth)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "pool_depth: 512\nring_entries: 1024\ndrain_timeout: 250ms\nlogging:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 512, cfg.PoolDepth)
	require.Equal(t, uint32(1024), cfg.RingEntries)
	require.Equal(t, 250*time.Millisecond, cfg.DrainTimeout)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("IORING_POOL_DEPTH", "64")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 64, cfg.PoolDepth)
}
