package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps values in process memory. It is the default backend and
// the one tests use.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]map[string][]byte),
	}
}

func (s *MemoryStore) Exists(_ context.Context, key, room string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rooms[room][key]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, key, room string, target any) error {
	s.mu.RLock()
	raw, ok := s.rooms[room][key]
	s.mu.RUnlock()

	if !ok {
		return &MissingKeyError{Key: key, Room: room}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %q in room %s: %w", key, room, err)
	}
	return nil
}

func (s *MemoryStore) Set(_ context.Context, key, room string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q in room %s: %w", key, room, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.rooms[room]
	if !ok {
		entries = make(map[string][]byte)
		s.rooms[room] = entries
	}
	entries[key] = raw
	return nil
}

func (s *MemoryStore) Unset(_ context.Context, key, room string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.rooms[room]
	if !ok {
		return false, nil
	}
	if _, ok := entries[key]; !ok {
		return false, nil
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(s.rooms, room)
	}
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
