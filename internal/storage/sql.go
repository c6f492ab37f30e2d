package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"roombot/internal/clock"
	"roombot/internal/storage/migrations"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for postgres.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists values in a single kv_entries table on SQLite or
// PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	clock   clock.Clock

	existsSQL string
	getSQL    string
	setSQL    string
	unsetSQL  string
}

// OpenSQL opens the database for driver ("sqlite" or "postgres"), applies the
// embedded migrations and returns a ready store.
func OpenSQL(ctx context.Context, driver, dsn string, clk clock.Clock) (*SQLStore, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = dialectSQLite
	case DriverPostgres:
		d = dialectPostgres
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("storage DSN is required for driver %q", driver)
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d == dialectSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := applyMigrations(ctx, db, d, migrations.FS, clk); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}

	return &SQLStore{
		db:        db,
		dialect:   d,
		clock:     clk,
		existsSQL: d.rebind("SELECT 1 FROM kv_entries WHERE room = ? AND name = ?"),
		getSQL:    d.rebind("SELECT value FROM kv_entries WHERE room = ? AND name = ?"),
		setSQL: d.rebind(`INSERT INTO kv_entries (room, name, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (room, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		unsetSQL: d.rebind("DELETE FROM kv_entries WHERE room = ? AND name = ?"),
	}, nil
}

func (s *SQLStore) Exists(ctx context.Context, key, room string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, s.existsSQL, room, key).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %q in room %s: %w", key, room, err)
	}
	return true, nil
}

func (s *SQLStore) Get(ctx context.Context, key, room string, target any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, s.getSQL, room, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return &MissingKeyError{Key: key, Room: room}
	}
	if err != nil {
		return fmt.Errorf("get %q in room %s: %w", key, room, err)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("decode %q in room %s: %w", key, room, err)
	}
	return nil
}

func (s *SQLStore) Set(ctx context.Context, key, room string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q in room %s: %w", key, room, err)
	}
	if _, err := s.db.ExecContext(ctx, s.setSQL, room, key, string(raw), s.clock.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("set %q in room %s: %w", key, room, err)
	}
	return nil
}

func (s *SQLStore) Unset(ctx context.Context, key, room string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.unsetSQL, room, key)
	if err != nil {
		return false, fmt.Errorf("unset %q in room %s: %w", key, room, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unset %q in room %s: %w", key, room, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
