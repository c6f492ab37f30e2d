// Package storage provides the room-scoped key-value store plugins persist
// their state in. Values are JSON-encoded so any serializable Go value can be
// stored and read back into a typed target.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is the sentinel wrapped by MissingKeyError.
var ErrKeyNotFound = errors.New("key not found")

// MissingKeyError is returned by Get when no value exists for key in room.
type MissingKeyError struct {
	Key  string
	Room string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("key %q not found in room %s", e.Key, e.Room)
}

func (e *MissingKeyError) Unwrap() error { return ErrKeyNotFound }

// Store is a key-value store partitioned by room. The same key in two rooms
// names two independent values.
type Store interface {
	// Exists reports whether key has a value in room
	Exists(ctx context.Context, key, room string) (bool, error)

	// Get decodes the value for key in room into target. A missing key
	// yields a *MissingKeyError.
	Get(ctx context.Context, key, room string, target any) error

	// Set replaces any previous value for key in room
	Set(ctx context.Context, key, room string, value any) error

	// Unset removes key from room and reports whether it was present
	Unset(ctx context.Context, key, room string) (bool, error)

	Close() error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
