package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roombot/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollRecord struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
	Owner   int64    `json:"owner"`
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "kv.db")
	store, err := OpenSQL(context.Background(), DriverSQLite, dsn, clock.NewMockClock(time.Unix(1700000000, 0)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// runStoreContract exercises behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("set then get round trips structured values", func(t *testing.T) {
		store := newStore(t)
		in := pollRecord{Title: "Asahi", Options: []string{"Yum", "Nope"}, Owner: 31}

		require.NoError(t, store.Set(ctx, "poll", "11", in))

		var out pollRecord
		require.NoError(t, store.Get(ctx, "poll", "11", &out))
		assert.Equal(t, in, out)
	})

	t.Run("get missing key returns MissingKeyError", func(t *testing.T) {
		store := newStore(t)

		var out string
		err := store.Get(ctx, "nope", "11", &out)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))

		var missing *MissingKeyError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "nope", missing.Key)
		assert.Equal(t, "11", missing.Room)
	})

	t.Run("exists tracks set and unset", func(t *testing.T) {
		store := newStore(t)

		ok, err := store.Exists(ctx, "k", "11")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, "k", "11", true))
		ok, err = store.Exists(ctx, "k", "11")
		require.NoError(t, err)
		assert.True(t, ok)

		removed, err := store.Unset(ctx, "k", "11")
		require.NoError(t, err)
		assert.True(t, removed)

		ok, err = store.Exists(ctx, "k", "11")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unset missing key reports false", func(t *testing.T) {
		store := newStore(t)

		removed, err := store.Unset(ctx, "k", "11")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("set overwrites", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", "11", []string{"a"}))
		require.NoError(t, store.Set(ctx, "k", "11", []string{"b", "c"}))

		var out []string
		require.NoError(t, store.Get(ctx, "k", "11", &out))
		assert.Equal(t, []string{"b", "c"}, out)
	})

	t.Run("rooms are isolated", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", "11", "first"))
		require.NoError(t, store.Set(ctx, "k", "12", "second"))

		var a, b string
		require.NoError(t, store.Get(ctx, "k", "11", &a))
		require.NoError(t, store.Get(ctx, "k", "12", &b))
		assert.Equal(t, "first", a)
		assert.Equal(t, "second", b)

		removed, err := store.Unset(ctx, "k", "11")
		require.NoError(t, err)
		assert.True(t, removed)

		ok, err := store.Exists(ctx, "k", "12")
		require.NoError(t, err)
		assert.True(t, ok, "unset in one room must not touch another")
	})

	t.Run("decode into wrong type fails", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "k", "11", "text"))

		var out int
		err := store.Get(ctx, "k", "11", &out)
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})

	t.Run("unencodable value is rejected", func(t *testing.T) {
		store := newStore(t)
		err := store.Set(ctx, "k", "11", make(chan int))
		require.Error(t, err)

		ok, err := store.Exists(ctx, "k", "11")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		store := newStore(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Set(ctx, "counter", "11", i))
			}(i)
		}
		wg.Wait()

		var out int
		require.NoError(t, store.Get(ctx, "counter", "11", &out))
		assert.GreaterOrEqual(t, out, 0)
		assert.Less(t, out, 20)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestSQLStore_SQLite(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

func TestSQLStore_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "kv.db")

	first, err := OpenSQL(ctx, DriverSQLite, dsn, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", "11", "kept"))
	require.NoError(t, first.Close())

	second, err := OpenSQL(ctx, DriverSQLite, dsn, nil)
	require.NoError(t, err)
	defer second.Close()

	var out string
	require.NoError(t, second.Get(ctx, "k", "11", &out))
	assert.Equal(t, "kept", out)

	var applied int
	require.NoError(t, second.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestSQLStore_RecordsMigrationTime(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	var appliedAt int64
	err := store.db.QueryRowContext(ctx, "SELECT applied_at FROM schema_migrations WHERE name = ?", "0001_kv.sql").Scan(&appliedAt)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UnixMilli(), appliedAt)
}

func TestSQLStore_RecordsUpdateTime(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	require.NoError(t, store.Set(ctx, "k", "11", 1))

	var updatedAt int64
	err := store.db.QueryRowContext(ctx, "SELECT updated_at FROM kv_entries WHERE room = ? AND name = ?", "11", "k").Scan(&updatedAt)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UnixMilli(), updatedAt)
}

func TestOpenSQL_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := OpenSQL(ctx, "mysql", "dsn", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")

	_, err = OpenSQL(ctx, DriverSQLite, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT value FROM kv_entries WHERE room = ? AND name = ?"

	assert.Equal(t, query, dialectSQLite.rebind(query))
	assert.Equal(t, "SELECT value FROM kv_entries WHERE room = $1 AND name = $2", dialectPostgres.rebind(query))
}

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE a (x INT);", "CREATE TABLE a (x INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (x INT);", "\nCREATE TABLE a (x INT);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (x INT);\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUpMigration(tt.content))
		})
	}
}
