package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_LoadPluginConfig(t *testing.T) {
	path := writeFile(t, "plugins.yaml", `plugins:
  poll:
    enabled_by_default: false
  echo:
    enabled_by_default: true
  weather: {}
`)

	loader := NewLoader(path, zap.NewNop())
	require.NoError(t, loader.LoadPluginConfig())

	cfg := loader.GetPluginConfig()
	require.NotNil(t, cfg)
	assert.Len(t, cfg.Plugins, 3)
	assert.Equal(t, map[string]bool{"poll": false, "echo": true}, cfg.DefaultOverrides())
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	require.NoError(t, loader.LoadPluginConfig())
	assert.Empty(t, loader.GetPluginConfig().DefaultOverrides())
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeFile(t, "plugins.yaml", "plugins: [unclosed")

	loader := NewLoader(path, zap.NewNop())
	err := loader.LoadPluginConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plugin config")
}

func TestPluginConfig_NilOverrides(t *testing.T) {
	var cfg *PluginConfig
	assert.Empty(t, cfg.DefaultOverrides())
}
