// Package builtin implements the commands that are available in every room
// regardless of plugin enablement.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"roombot/internal/command"
	"roombot/internal/engine"
	"roombot/pkg/plugin"

	"go.uber.org/zap"
)

const (
	usage = "Syntax: plugin [list|disable|enable] [plugin-name]"

	msgNoPluginName     = "No plugin name supplied"
	msgInvalidName      = "Invalid plugin name"
	msgAlreadyEnabled   = "Plugin already enabled in this room"
	msgAlreadyDisabled  = "Plugin already disabled in this room"
	listHeader          = "Currently registered plugins:"
	endpointsHeaderTmpl = "Command endpoints for plugin '%s' (%s):"
)

// PluginCommand manages plugins from chat: list, enable and disable.
type PluginCommand struct {
	registry *plugin.Registry
	logger   *zap.Logger
}

// NewPluginCommand creates the "plugin" built-in over registry
func NewPluginCommand(registry *plugin.Registry, logger *zap.Logger) *PluginCommand {
	return &PluginCommand{
		registry: registry,
		logger:   logger.Named("builtin.plugin"),
	}
}

// BuiltIn returns the registration record for this command
func (c *PluginCommand) BuiltIn() plugin.BuiltIn {
	return plugin.BuiltIn{
		Name:        "plugin",
		Description: "Lists, enables and disables plugins in the current room",
		Handler:     c.Handle,
	}
}

// Handle dispatches on the first parameter
func (c *PluginCommand) Handle(ctx context.Context, s *engine.Session, cmd *command.Command) error {
	sub, _ := cmd.Parameter(0)
	switch sub {
	case "list":
		if name, ok := cmd.Parameter(1); ok {
			return c.listEndpoints(s, cmd, name)
		}
		return c.listPlugins(s, cmd)
	case "enable":
		return c.enable(s, cmd)
	case "disable":
		return c.disable(s, cmd)
	}

	_, err := s.PostReply(cmd, usage)
	return err
}

func (c *PluginCommand) listPlugins(s *engine.Session, cmd *command.Command) error {
	var b strings.Builder
	b.WriteString(listHeader)

	for _, p := range c.registry.List() {
		enabled, err := c.registry.IsEnabledForRoom(s, p.Name(), cmd.Room())
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\n[%s] %s - %s", check(enabled), p.Name(), p.Description())
	}

	_, err := s.PostMessage(cmd.Room(), b.String(), true)
	return err
}

func (c *PluginCommand) listEndpoints(s *engine.Session, cmd *command.Command, name string) error {
	if !c.registry.IsRegistered(name) {
		_, err := s.PostReply(cmd, msgInvalidName)
		return err
	}

	p, err := c.registry.Get(name)
	if err != nil {
		return err
	}
	enabled, err := c.registry.IsEnabledForRoom(s, name, cmd.Room())
	if err != nil {
		return err
	}
	endpoints, err := c.registry.EndpointsForRoom(s, name, cmd.Room())
	if err != nil {
		return err
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, endpointsHeaderTmpl, p.Name(), state)
	for _, ep := range endpoints {
		mapped := "No mapped commands"
		if len(ep.Mapped) > 0 {
			mapped = "Mapped commands: " + strings.Join(ep.Mapped, ", ")
		}
		fmt.Fprintf(&b, "\n[%s] %s - %s (Default command: %s, %s)",
			check(len(ep.Mapped) > 0), ep.Name, ep.Description, ep.DefaultVerb, mapped)
	}

	_, err = s.PostMessage(cmd.Room(), b.String(), true)
	return err
}

func (c *PluginCommand) enable(s *engine.Session, cmd *command.Command) error {
	name, ok := cmd.Parameter(1)
	if !ok {
		_, err := s.PostReply(cmd, msgNoPluginName)
		return err
	}
	if !c.registry.IsRegistered(name) {
		_, err := s.PostReply(cmd, msgInvalidName)
		return err
	}

	enabled, err := c.registry.IsEnabledForRoom(s, name, cmd.Room())
	if err != nil {
		return err
	}
	if enabled {
		_, err := s.PostReply(cmd, msgAlreadyEnabled)
		return err
	}

	if err := c.registry.EnableForRoom(s, name, cmd.Room()); err != nil {
		return err
	}
	c.logger.Info("Plugin enabled",
		zap.String("plugin", name),
		zap.String("room", cmd.Room()),
		zap.String("by", cmd.UserName()))

	_, err = s.PostMessage(cmd.Room(), fmt.Sprintf("Plugin '%s' is now enabled in this room", name), false)
	return err
}

func (c *PluginCommand) disable(s *engine.Session, cmd *command.Command) error {
	name, ok := cmd.Parameter(1)
	if !ok {
		_, err := s.PostReply(cmd, msgNoPluginName)
		return err
	}
	if !c.registry.IsRegistered(name) {
		_, err := s.PostReply(cmd, msgInvalidName)
		return err
	}

	enabled, err := c.registry.IsEnabledForRoom(s, name, cmd.Room())
	if err != nil {
		return err
	}
	if !enabled {
		_, err := s.PostReply(cmd, msgAlreadyDisabled)
		return err
	}

	if err := c.registry.DisableForRoom(s, name, cmd.Room()); err != nil {
		return err
	}
	c.logger.Info("Plugin disabled",
		zap.String("plugin", name),
		zap.String("room", cmd.Room()),
		zap.String("by", cmd.UserName()))

	_, err = s.PostMessage(cmd.Room(), fmt.Sprintf("Plugin '%s' is now disabled in this room", name), false)
	return err
}

func check(on bool) string {
	if on {
		return "X"
	}
	return " "
}
