package plugin

import (
	"context"

	"roombot/internal/storage"
)

// State is the room-scoped storage surface enablement is kept in. An
// engine.Session satisfies it, so a handler toggling plugins stays on its
// suspension points. Code outside a handler run uses BindStore.
type State interface {
	Get(key, room string, target any) error
	Set(key, room string, value any) error
	Unset(key, room string) (bool, error)
}

type boundStore struct {
	ctx   context.Context
	store storage.Store
}

// BindStore adapts store to State using ctx for every call
func BindStore(ctx context.Context, store storage.Store) State {
	return &boundStore{ctx: ctx, store: store}
}

func (b *boundStore) Get(key, room string, target any) error {
	return b.store.Get(b.ctx, key, room, target)
}

func (b *boundStore) Set(key, room string, value any) error {
	return b.store.Set(b.ctx, key, room, value)
}

func (b *boundStore) Unset(key, room string) (bool, error) {
	return b.store.Unset(b.ctx, key, room)
}
