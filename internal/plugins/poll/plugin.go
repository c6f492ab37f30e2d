// Package poll lets a room create polls, vote on them and chart the
// results.
package poll

import (
	"context"

	"roombot/internal/command"
	"roombot/internal/engine"
	"roombot/pkg/plugin"

	"go.uber.org/zap"
)

const usage = "Syntax: poll [add|vote|get|list|del] [arguments]"

// Plugin exposes the poll manager through a single "poll" endpoint.
type Plugin struct {
	manager *Manager
	logger  *zap.Logger
}

// New is the plugin.Factory for polls.
func New(ctx *plugin.Context) (plugin.Plugin, error) {
	logger := ctx.Logger.Named("poll")
	return &Plugin{
		manager: NewManager(logger),
		logger:  logger,
	}, nil
}

func (p *Plugin) Name() string           { return "poll" }
func (p *Plugin) Description() string    { return "Create and vote on polls." }
func (p *Plugin) EnabledByDefault() bool { return true }

func (p *Plugin) Endpoints() []plugin.Endpoint {
	return []plugin.Endpoint{
		{
			Name:        "Poll",
			Description: "Create, vote on, show, list and delete polls",
			DefaultVerb: "poll",
			Handler:     p.Handle,
		},
	}
}

// Handle dispatches on the first parameter.
func (p *Plugin) Handle(ctx context.Context, s *engine.Session, cmd *command.Command) error {
	sub, _ := cmd.Parameter(0)
	rest := cmd.TextAfter(1)

	switch sub {
	case "add":
		return p.manager.Create(s, cmd, rest)
	case "vote":
		return p.manager.Vote(s, cmd, rest)
	case "get":
		return p.manager.Show(s, cmd, rest)
	case "list":
		return p.manager.List(s, cmd)
	case "del":
		if rest != "" {
			return p.manager.Delete(s, cmd, rest)
		}
	}

	_, err := s.PostReply(cmd, usage)
	return err
}
