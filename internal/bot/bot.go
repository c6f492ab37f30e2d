// Package bot connects chat traffic to plugin handlers: it turns inbound
// messages into commands, resolves them through the registry and runs every
// match on the engine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"roombot/internal/chat"
	"roombot/internal/command"
	"roombot/internal/engine"
	"roombot/internal/storage"
	"roombot/internal/trace"
	"roombot/pkg/plugin"

	"go.uber.org/zap"
)

// FailureReply is posted when a handler fails without handling its error.
const FailureReply = "Something went wrong while running that command."

// Bot dispatches commands. Each inbound command runs on its own goroutine;
// the handlers a single command resolves to run one after another.
type Bot struct {
	client   chat.ChatClient
	store    storage.Store
	registry *plugin.Registry
	engine   *engine.Engine
	recorder *trace.Recorder
	prefix   string
	logger   *zap.Logger

	mu      sync.Mutex
	sub     chat.Subscription
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// New creates a bot. Call Start to begin receiving messages.
func New(
	client chat.ChatClient,
	store storage.Store,
	registry *plugin.Registry,
	eng *engine.Engine,
	recorder *trace.Recorder,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		client:   client,
		store:    store,
		registry: registry,
		engine:   eng,
		recorder: recorder,
		prefix:   command.DefaultPrefix,
		logger:   logger.Named("bot"),
	}
}

// SetPrefix changes the text that introduces a command
func (b *Bot) SetPrefix(prefix string) {
	if prefix != "" {
		b.prefix = prefix
	}
}

// Start subscribes to chat messages
func (b *Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sub != nil {
		return fmt.Errorf("bot already started")
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.stopped = false
	sub, err := b.client.SubscribeMessages(b.onMessage)
	if err != nil {
		b.cancel()
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}
	b.sub = sub

	b.logger.Info("Bot started", zap.String("prefix", b.prefix))
	return nil
}

func (b *Bot) onMessage(msg chat.Message) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	ctx := b.ctx
	b.running.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.running.Done()
		b.Dispatch(ctx, msg)
	}()
}

// Stop unsubscribes and waits for in-flight commands to finish
func (b *Bot) Stop() {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.stopped = true
	b.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		b.logger.Warn("Failed to unsubscribe", zap.Error(err))
	}
	b.running.Wait()
	b.cancel()

	b.logger.Info("Bot stopped")
}

// Dispatch handles one message synchronously and returns the invocations it
// ran. Messages from the bot itself and messages that are not commands are
// ignored.
func (b *Bot) Dispatch(ctx context.Context, msg chat.Message) []trace.Invocation {
	if msg.UserID != 0 && msg.UserID == b.client.UserID() {
		return nil
	}

	cmd, ok := command.Parse(msg, b.prefix)
	if !ok {
		return nil
	}

	matches, err := b.registry.Resolve(plugin.BindStore(ctx, b.store), cmd)
	if err != nil {
		b.logger.Error("Failed to resolve some plugins",
			zap.String("verb", cmd.Verb()),
			zap.String("room", cmd.Room()),
			zap.Error(err))
	}
	if len(matches) == 0 {
		b.logger.Debug("No handler for command",
			zap.String("verb", cmd.Verb()),
			zap.String("room", cmd.Room()))
		return nil
	}

	invocations := make([]trace.Invocation, 0, len(matches))
	for _, match := range matches {
		invocations = append(invocations, b.run(ctx, match, cmd))
	}
	return invocations
}

func (b *Bot) run(ctx context.Context, match plugin.Match, cmd *command.Command) trace.Invocation {
	label := match.Label()
	inv := b.recorder.Start(label, cmd)

	report, err := b.engine.Run(ctx, label, match.Handler, cmd)
	inv = b.recorder.Finish(inv, report.Requests, err)

	if err == nil {
		b.logger.Debug("Command handled",
			zap.String("handler", label),
			zap.String("invocation", inv.ID),
			zap.Duration("duration", inv.Duration()))
		return inv
	}

	fields := []zap.Field{
		zap.String("handler", label),
		zap.String("invocation", inv.ID),
		zap.String("room", cmd.Room()),
		zap.String("user", cmd.UserName()),
		zap.String("text", cmd.Text()),
		zap.Error(err),
	}
	var panicErr *engine.PanicError
	if errors.As(err, &panicErr) {
		fields = append(fields, zap.ByteString("stack", panicErr.Stack))
	}
	b.logger.Error("Command failed", fields...)

	if _, postErr := b.client.PostReply(ctx, cmd.Room(), cmd.Origin(), FailureReply); postErr != nil {
		b.logger.Warn("Failed to report command failure", zap.Error(postErr))
	}
	return inv
}
