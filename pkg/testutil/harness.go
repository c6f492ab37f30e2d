// Package testutil provides testing utilities for roombot plugins.
// This file provides a TestEnv that runs commands end to end against a mock
// chat client and in-memory storage.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roombot/internal/bot"
	"roombot/internal/builtin"
	"roombot/internal/chat"
	"roombot/internal/clock"
	"roombot/internal/engine"
	"roombot/internal/storage"
	"roombot/internal/trace"
	"roombot/pkg/plugin"

	"go.uber.org/zap"
)

// BotUserID is the user id the mock chat client signs in as.
const BotUserID int64 = 7

// TestEnv wires the full dispatch path: mock chat client, memory storage,
// registry with the built-in commands, engine, recorder and bot.
type TestEnv struct {
	Chat     *chat.MockClient
	Store    *storage.MemoryStore
	Registry *plugin.Registry
	Engine   *engine.Engine
	Recorder *trace.Recorder
	Clock    *clock.MockClock
	Bot      *bot.Bot
	Logger   *zap.Logger

	mu     sync.Mutex
	nextID int64
}

// NewTestEnv creates an environment and registers the plugins built by
// factories.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv(poll.New)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	posts := env.Send("11", 31, "alice", "!!poll list")
func NewTestEnv(factories ...plugin.Factory) (*TestEnv, error) {
	logger := zap.NewNop()

	client := chat.NewMockClient(BotUserID)
	store := storage.NewMemoryStore()
	registry := plugin.NewRegistry(logger)
	clk := clock.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	recorder := trace.NewRecorder(trace.DefaultCapacity, clk)
	eng := engine.New(client, store, logger)

	if err := registry.RegisterBuiltIn(builtin.NewPluginCommand(registry, logger).BuiltIn()); err != nil {
		return nil, fmt.Errorf("failed to register built-ins: %w", err)
	}
	if err := registry.RegisterAll(plugin.NewContext(logger, registry), factories...); err != nil {
		return nil, err
	}

	return &TestEnv{
		Chat:     client,
		Store:    store,
		Registry: registry,
		Engine:   eng,
		Recorder: recorder,
		Clock:    clk,
		Bot:      bot.New(client, store, registry, eng, recorder, logger),
		Logger:   logger,
		nextID:   100,
	}, nil
}

// Message builds a new-message event as if userName typed text in room
func (e *TestEnv) Message(room string, userID int64, userName, text string) chat.Message {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	return chat.Message{
		Kind:      chat.KindNew,
		ID:        id,
		ActionID:  id,
		UserID:    userID,
		UserName:  userName,
		RoomID:    room,
		Content:   text,
		Timestamp: e.Clock.Now(),
	}
}

// Send dispatches text synchronously and returns what the bot posted in
// response.
func (e *TestEnv) Send(room string, userID int64, userName, text string) []chat.PostedMessage {
	before := len(e.Chat.GetPostedMessages())
	e.Bot.Dispatch(context.Background(), e.Message(room, userID, userName, text))
	return e.Chat.GetPostedMessages()[before:]
}

// SendTexts is Send returning only the posted texts
func (e *TestEnv) SendTexts(room string, userID int64, userName, text string) []string {
	return PostTexts(e.Send(room, userID, userName, text))
}
