package storage

import (
	"context"

	"roombot/internal/clock"

	"go.uber.org/zap"
)

// Open returns the store for driver. "memory" (or empty) ignores dsn.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (Store, error) {
	switch driver {
	case "", DriverMemory:
		logger.Info("Using in-memory storage; plugin state will not survive restarts")
		return NewMemoryStore(), nil
	default:
		store, err := OpenSQL(ctx, driver, dsn, clock.NewRealClock())
		if err != nil {
			return nil, err
		}
		logger.Info("Opened SQL storage", zap.String("driver", driver))
		return store, nil
	}
}
