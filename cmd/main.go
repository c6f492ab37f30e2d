package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"roombot/internal/api"
	"roombot/internal/bot"
	"roombot/internal/builtin"
	"roombot/internal/chat"
	"roombot/internal/config"
	"roombot/internal/engine"
	"roombot/internal/plugins/poll"
	"roombot/internal/storage"
	"roombot/internal/trace"
	"roombot/pkg/plugin"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Bootstrap logger until the config says which one we want
	bootLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		bootLogger.Fatal("Failed to create logger", zap.Error(err))
	}
	bootLogger.Sync()
	defer logger.Sync()

	logger.Info("Starting roombot",
		zap.String("url", cfg.ChatURL),
		zap.Strings("rooms", cfg.Rooms),
		zap.String("prefix", cfg.CommandPrefix),
		zap.String("storage", cfg.StorageDriver))

	ctx := context.Background()

	store, err := storage.Open(ctx, cfg.StorageDriver, cfg.StorageDSN, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}

	loader := config.NewLoader(cfg.PluginConfig, logger)
	if err := loader.LoadPluginConfig(); err != nil {
		logger.Fatal("Failed to load plugin config", zap.Error(err))
	}

	registry := plugin.NewRegistry(logger)
	registry.SetDefaultOverrides(loader.GetPluginConfig().DefaultOverrides())
	if err := registry.RegisterBuiltIn(builtin.NewPluginCommand(registry, logger).BuiltIn()); err != nil {
		logger.Fatal("Failed to register built-in commands", zap.Error(err))
	}
	if err := registry.RegisterAll(plugin.NewContext(logger, registry),
		poll.New,
	); err != nil {
		logger.Fatal("Failed to register plugins", zap.Error(err))
	}
	logger.Info("Plugins registered", zap.Strings("plugins", registry.Names()))

	client := chat.NewClient(cfg.ChatURL, cfg.ChatToken, logger)
	client.SetRequestTimeout(cfg.RequestTimeout)
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to chat service", zap.Error(err))
	}
	logger.Info("Connected to chat service", zap.Int64("user_id", client.UserID()))

	for _, room := range cfg.Rooms {
		if err := client.JoinRoom(ctx, room); err != nil {
			logger.Error("Failed to join room", zap.String("room", room), zap.Error(err))
			continue
		}
		logger.Info("Joined room", zap.String("room", room))
	}

	recorder := trace.NewRecorder(trace.DefaultCapacity, nil)
	eng := engine.New(client, store, logger)

	b := bot.New(client, store, registry, eng, recorder, logger)
	b.SetPrefix(cfg.CommandPrefix)
	if err := b.Start(); err != nil {
		logger.Fatal("Failed to start bot", zap.Error(err))
	}

	var apiServer *api.Server
	if cfg.APIPort > 0 {
		apiServer = api.NewServer(registry, store, recorder, logger, cfg.APIPort)
		if err := apiServer.Start(); err != nil {
			logger.Fatal("Failed to start API server", zap.Error(err))
		}
	} else {
		logger.Info("HTTP API disabled")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Bot running. Press Ctrl+C to exit.")
	<-sigChan

	logger.Info("Shutting down gracefully...")

	// Stop taking commands before the transport and storage go away
	b.Stop()

	var shutdownErr error
	if apiServer != nil {
		shutdownErr = multierr.Append(shutdownErr, apiServer.Stop())
	}
	shutdownErr = multierr.Append(shutdownErr, client.Disconnect())
	shutdownErr = multierr.Append(shutdownErr, store.Close())

	for _, err := range multierr.Errors(shutdownErr) {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
