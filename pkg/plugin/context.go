package plugin

import (
	"go.uber.org/zap"
)

// Context provides dependencies to plugins during construction.
type Context struct {
	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// Registry lets a plugin introspect its peers. Only built-ins need it.
	Registry *Registry
}

// NewContext creates a new plugin context
func NewContext(logger *zap.Logger, registry *Registry) *Context {
	return &Context{
		Logger:   logger,
		Registry: registry,
	}
}
