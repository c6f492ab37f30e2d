package plugin

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"roombot/internal/engine"

	"go.uber.org/zap"
)

// ErrNotFound is wrapped by lookups of unregistered plugins.
var ErrNotFound = errors.New("plugin not found")

// DuplicateNameError is returned when a plugin or built-in name is taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("plugin %q is already registered", e.Name)
}

// Match is a handler a command resolved to.
type Match struct {
	// Plugin is the owning plugin's name, or BuiltInOwner for built-ins
	Plugin   string
	Endpoint string
	Handler  engine.Handler
}

// BuiltInOwner is Match.Plugin for built-in commands.
const BuiltInOwner = "builtin"

// Label identifies the handler in logs, spans and the invocation trace
func (m Match) Label() string {
	return m.Plugin + "/" + m.Endpoint
}

// Registry manages plugin and built-in registration. Plugins are listed in
// registration order. Per-room enablement lives in storage, see
// enablement.go.
type Registry struct {
	mu           sync.RWMutex
	plugins      map[string]Plugin
	order        []string
	builtins     map[string]BuiltIn
	builtinOrder []string
	verbs        map[string]string
	defaults     map[string]bool
	logger       *zap.Logger
}

// NewRegistry creates a new plugin registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]Plugin),
		order:    make([]string, 0),
		builtins: make(map[string]BuiltIn),
		verbs:    make(map[string]string),
		defaults: make(map[string]bool),
		logger:   logger.Named("registry"),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a plugin. Names are case-insensitive and unique.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin cannot be nil")
	}
	name := normalizeName(p.Name())
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	for _, ep := range p.Endpoints() {
		if ep.Handler == nil {
			return fmt.Errorf("plugin %s: endpoint %q has no handler", name, ep.Name)
		}
		if strings.TrimSpace(ep.DefaultVerb) == "" {
			return fmt.Errorf("plugin %s: endpoint %q has no default verb", name, ep.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		return &DuplicateNameError{Name: name}
	}

	r.plugins[name] = p
	r.order = append(r.order, name)

	r.logger.Info("Plugin registered",
		zap.String("plugin", name),
		zap.Int("endpoints", len(p.Endpoints())),
		zap.Bool("enabled_by_default", p.EnabledByDefault()))

	return nil
}

// RegisterAll builds each factory with ctx and registers the result,
// stopping at the first failure.
func (r *Registry) RegisterAll(ctx *Context, factories ...Factory) error {
	for _, factory := range factories {
		p, err := factory(ctx)
		if err != nil {
			return fmt.Errorf("failed to create plugin: %w", err)
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBuiltIn adds a built-in command. Two built-ins may not share a
// verb.
func (r *Registry) RegisterBuiltIn(b BuiltIn) error {
	name := normalizeName(b.Name)
	if name == "" {
		return fmt.Errorf("built-in name cannot be empty")
	}
	if b.Handler == nil {
		return fmt.Errorf("built-in %s: handler cannot be nil", name)
	}

	verbs := b.Verbs
	if len(verbs) == 0 {
		verbs = []string{name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builtins[name]; exists {
		return &DuplicateNameError{Name: name}
	}
	normalized := make([]string, 0, len(verbs))
	for _, verb := range verbs {
		verb = strings.ToLower(verb)
		if owner, taken := r.verbs[verb]; taken {
			return fmt.Errorf("built-in %s: verb %q already handled by %s", name, verb, owner)
		}
		normalized = append(normalized, verb)
	}

	for _, verb := range normalized {
		r.verbs[verb] = name
	}
	b.Name = name
	b.Verbs = normalized
	r.builtins[name] = b
	r.builtinOrder = append(r.builtinOrder, name)

	r.logger.Info("Built-in command registered",
		zap.String("builtin", name),
		zap.Strings("verbs", normalized))

	return nil
}

// IsRegistered reports whether a plugin with this name exists
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.plugins[normalizeName(name)]
	return ok
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// List returns all registered plugins in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// Names returns the names of all registered plugins.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// BuiltIns returns all built-in commands in registration order
func (r *Registry) BuiltIns() []BuiltIn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]BuiltIn, 0, len(r.builtinOrder))
	for _, name := range r.builtinOrder {
		result = append(result, r.builtins[name])
	}
	return result
}

// SetDefaultOverrides replaces per-plugin enabled-by-default values with
// the given ones. Names not in overrides fall back to the plugin.
func (r *Registry) SetDefaultOverrides(overrides map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaults = make(map[string]bool, len(overrides))
	for name, enabled := range overrides {
		r.defaults[normalizeName(name)] = enabled
	}
}

func (r *Registry) defaultEnabled(name string, p Plugin) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if enabled, ok := r.defaults[name]; ok {
		return enabled
	}
	return p.EnabledByDefault()
}
