package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load("", func(c *Config) { c.DataDir = dir })
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "memory.db"), cfg.StorePath)
	assert.Equal(t, filepath.Join(dir, "memory.json"), cfg.MirrorPath)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, 300*time.Second, cfg.Maintenance.Interval)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"data_dir": "` + dir + `",
		"mirror_path": "backup/mirror.json",
		"maintenance": {"enabled": true, "interval": "45s"},
		"logging": {"level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "backup", "mirror.json"), cfg.MirrorPath)
	assert.Equal(t, 45*time.Second, cfg.Maintenance.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GENY_MEMORY_DATA_DIR", dir)
	t.Setenv("GENY_MEMORY_MAINTENANCE_INTERVAL", "2m")
	t.Setenv("GENY_MEMORY_CACHE_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 2*time.Minute, cfg.Maintenance.Interval)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadOverridesWinOverEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GENY_MEMORY_STORE_PATH", "env.db")

	cfg, err := Load("", func(c *Config) {
		c.DataDir = dir
		c.StorePath = "flag.db"
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag.db"), cfg.StorePath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Maintenance.Interval = 0 }},
		{"same paths", func(c *Config) { c.MirrorPath = c.StorePath }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"empty store", func(c *Config) { c.StorePath = "" }},
		{"zero cache", func(c *Config) { c.Cache.MaxEntries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)
			require.NoError(t, cfg.Resolve())
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateDisabledMaintenanceIgnoresInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Maintenance.Enabled = false
	cfg.Maintenance.Interval = 0
	require.NoError(t, cfg.Resolve())
	assert.NoError(t, cfg.Validate())
}

func TestResolveKeepsAbsolutePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.db")
	cfg.StorePath = abs
	require.NoError(t, cfg.Resolve())
	assert.Equal(t, abs, cfg.StorePath)
}
