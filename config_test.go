package xplorer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "xplorer", cfg.AppName)
	assert.Equal(t, "localhost:8080", cfg.HTTPAddress)
	assert.True(t, cfg.P2PEnabled)
	assert.Equal(t, mainThreadTimeout, cfg.HandlerTimeout)
}

func TestLoadTOMLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadTOMLOverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xplorer.toml")
	contents := "app_name = \"myapp\"\ndebug_mode = true\nhttp_address = \"0.0.0.0:9090\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadTOML(path)
	require.NoError(t, err)
	assert.Equal(t, "myapp", cfg.AppName)
	assert.True(t, cfg.DebugMode)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTPAddress)
	assert.Equal(t, "xplorer-logs", cfg.LogStorePath, "fields absent from the file keep their default")
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg, err := ApplyOverrides(cfg, map[string]interface{}{
		"app_name":    "overridden",
		"debug_mode":  "true",
		"unknown_key": "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "overridden", cfg.AppName)
	assert.True(t, cfg.DebugMode)
}
