package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PluginSettings holds per-plugin overrides from the plugin file
type PluginSettings struct {
	EnabledByDefault *bool `yaml:"enabled_by_default"`
}

// PluginConfig represents the plugins.yaml structure
type PluginConfig struct {
	Plugins map[string]PluginSettings `yaml:"plugins"`
}

// DefaultOverrides returns the plugins whose default enablement is
// overridden, keyed by plugin name
func (c *PluginConfig) DefaultOverrides() map[string]bool {
	overrides := make(map[string]bool)
	if c == nil {
		return overrides
	}
	for name, settings := range c.Plugins {
		if settings.EnabledByDefault != nil {
			overrides[name] = *settings.EnabledByDefault
		}
	}
	return overrides
}

// Loader manages loading of the plugin file
type Loader struct {
	path         string
	logger       *zap.Logger
	pluginConfig *PluginConfig
}

// NewLoader creates a loader for the plugin file at path
func NewLoader(path string, logger *zap.Logger) *Loader {
	return &Loader{
		path:   path,
		logger: logger,
	}
}

// LoadPluginConfig reads the plugin file. A missing file yields an empty
// config; an unreadable or malformed one is an error.
func (l *Loader) LoadPluginConfig() error {
	l.logger.Debug("Loading plugin config", zap.String("path", l.path))

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Info("No plugin config file, using plugin defaults", zap.String("path", l.path))
		l.pluginConfig = &PluginConfig{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read plugin config: %w", err)
	}

	var config PluginConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse plugin config: %w", err)
	}

	l.pluginConfig = &config
	l.logger.Info("Plugin config loaded successfully",
		zap.Int("plugins", len(config.Plugins)))
	return nil
}

// GetPluginConfig returns the loaded plugin configuration
func (l *Loader) GetPluginConfig() *PluginConfig {
	return l.pluginConfig
}
