// Package plugin provides the plugin system interfaces and the registry that
// tracks which plugins exist, which rooms they are enabled in and which
// handlers a command resolves to.
package plugin

import "roombot/internal/engine"

// Plugin is a named group of command endpoints that can be switched on and
// off per room.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// This name is used for registration, enablement and logging.
	Name() string

	// Description is shown by "plugin list"
	Description() string

	// Endpoints returns the plugin's command endpoints in display order
	Endpoints() []Endpoint

	// EnabledByDefault decides enablement for rooms that never toggled the
	// plugin. Config may override it.
	EnabledByDefault() bool
}

// Endpoint is one command a plugin handles.
type Endpoint struct {
	Name        string
	Description string

	// DefaultVerb is mapped to the endpoint when the plugin is enabled in a
	// room without an explicit mapping.
	DefaultVerb string

	Handler engine.Handler
}

// BuiltIn is a command that is always available, in every room, regardless
// of plugin enablement.
type BuiltIn struct {
	Name        string
	Description string

	// Verbs the built-in answers to. Defaults to Name when empty.
	Verbs []string

	Handler engine.Handler
}

// Factory builds a plugin from shared dependencies. Main wires factories in
// registration order.
type Factory func(ctx *Context) (Plugin, error)
