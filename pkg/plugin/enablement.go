package plugin

import (
	"fmt"
	"slices"
	"strings"

	"roombot/internal/command"
	"roombot/internal/storage"

	"go.uber.org/multierr"
)

const (
	enabledKeyPrefix  = "plugin-enabled:"
	commandsKeyPrefix = "plugin-commands:"
)

// EnabledKey is the storage key holding a plugin's enablement for a room
func EnabledKey(name string) string { return enabledKeyPrefix + normalizeName(name) }

// CommandsKey is the storage key holding a plugin's endpoint-to-verbs mapping
func CommandsKey(name string) string { return commandsKeyPrefix + normalizeName(name) }

// EndpointInfo describes an endpoint as configured in one room.
type EndpointInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DefaultVerb string   `json:"default_verb"`
	Mapped      []string `json:"mapped"`
}

func (r *Registry) lookup(name string) (string, Plugin, error) {
	key := normalizeName(name)

	r.mu.RLock()
	p, ok := r.plugins[key]
	r.mu.RUnlock()

	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return key, p, nil
}

func defaultMapping(p Plugin) map[string][]string {
	mapping := make(map[string][]string, len(p.Endpoints()))
	for _, ep := range p.Endpoints() {
		mapping[ep.Name] = []string{strings.ToLower(ep.DefaultVerb)}
	}
	return mapping
}

func (r *Registry) isEnabled(st State, key string, p Plugin, room string) (bool, error) {
	var enabled bool
	err := st.Get(EnabledKey(key), room, &enabled)
	if storage.IsNotFound(err) {
		return r.defaultEnabled(key, p), nil
	}
	if err != nil {
		return false, fmt.Errorf("read enablement of %s in room %s: %w", key, room, err)
	}
	return enabled, nil
}

// IsEnabledForRoom reads the plugin's enablement for room, falling back to
// its default when the room never toggled it. It is never cached.
func (r *Registry) IsEnabledForRoom(st State, name, room string) (bool, error) {
	key, p, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	return r.isEnabled(st, key, p, room)
}

// EnableForRoom enables the plugin in room and maps each endpoint to its
// default verb. Enabling twice is harmless.
func (r *Registry) EnableForRoom(st State, name, room string) error {
	key, p, err := r.lookup(name)
	if err != nil {
		return err
	}

	if err := st.Set(EnabledKey(key), room, true); err != nil {
		return fmt.Errorf("enable %s in room %s: %w", key, room, err)
	}
	if err := st.Set(CommandsKey(key), room, defaultMapping(p)); err != nil {
		return fmt.Errorf("map commands of %s in room %s: %w", key, room, err)
	}

	return nil
}

// DisableForRoom disables the plugin in room and drops its verb mapping.
// Disabling twice is harmless.
func (r *Registry) DisableForRoom(st State, name, room string) error {
	key, _, err := r.lookup(name)
	if err != nil {
		return err
	}

	if err := st.Set(EnabledKey(key), room, false); err != nil {
		return fmt.Errorf("disable %s in room %s: %w", key, room, err)
	}
	if _, err := st.Unset(CommandsKey(key), room); err != nil {
		return fmt.Errorf("unmap commands of %s in room %s: %w", key, room, err)
	}

	return nil
}

func (r *Registry) mapping(st State, key string, p Plugin, room string) (map[string][]string, error) {
	enabled, err := r.isEnabled(st, key, p, room)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return map[string][]string{}, nil
	}

	var mapping map[string][]string
	err = st.Get(CommandsKey(key), room, &mapping)
	if storage.IsNotFound(err) {
		return defaultMapping(p), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read command mapping of %s in room %s: %w", key, room, err)
	}
	return mapping, nil
}

// EndpointsForRoom lists the plugin's endpoints with the verbs mapped to
// each in room. A disabled plugin has no mapped verbs.
func (r *Registry) EndpointsForRoom(st State, name, room string) ([]EndpointInfo, error) {
	key, p, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	mapping, err := r.mapping(st, key, p, room)
	if err != nil {
		return nil, err
	}

	endpoints := p.Endpoints()
	result := make([]EndpointInfo, 0, len(endpoints))
	for _, ep := range endpoints {
		result = append(result, EndpointInfo{
			Name:        ep.Name,
			Description: ep.Description,
			DefaultVerb: ep.DefaultVerb,
			Mapped:      append([]string(nil), mapping[ep.Name]...),
		})
	}
	return result, nil
}

// Resolve returns every handler cmd should run: built-ins answering to its
// verb first, then the endpoints of plugins enabled in cmd's room that have
// the verb mapped. A plugin whose state cannot be read is skipped and its
// error is returned alongside the matches that did resolve.
func (r *Registry) Resolve(st State, cmd *command.Command) ([]Match, error) {
	var matches []Match

	r.mu.RLock()
	if owner, ok := r.verbs[cmd.Verb()]; ok {
		b := r.builtins[owner]
		matches = append(matches, Match{Plugin: BuiltInOwner, Endpoint: b.Name, Handler: b.Handler})
	}
	r.mu.RUnlock()

	var errs error
	for _, p := range r.List() {
		key := normalizeName(p.Name())
		mapping, err := r.mapping(st, key, p, cmd.Room())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		for _, ep := range p.Endpoints() {
			if slices.Contains(mapping[ep.Name], cmd.Verb()) {
				matches = append(matches, Match{Plugin: key, Endpoint: ep.Name, Handler: ep.Handler})
			}
		}
	}

	return matches, errs
}
