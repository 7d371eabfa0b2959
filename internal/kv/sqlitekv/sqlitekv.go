// Package sqlitekv backs the credential store with SQLite. All tables live
// in one kv relation keyed by (tbl, key), kept in WAL mode for read
// concurrency alongside file transfers.
package sqlitekv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
)

type Store struct {
	sql *sql.DB
}

// Open opens the database at path, applies pragmas, and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	// modernc SQLite uses a URI-like DSN; plain file paths are ok.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path)
	s, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	s.SetMaxOpenConns(1)
	s.SetMaxIdleConns(1)
	s.SetConnMaxLifetime(0)

	st := &Store{sql: s}
	if err := st.ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := st.setPragmas(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := Migrate(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}

	return st, nil
}

func (s *Store) Close() error { return s.sql.Close() }

func (s *Store) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.sql.PingContext(ctx)
}

func (s *Store) setPragmas(ctx context.Context) error {
	// WAL improves read concurrency for auth lookups during transfers.
	_, err := s.sql.ExecContext(ctx, "PRAGMA journal_mode = WAL;")
	if err != nil {
		return err
	}
	_, err = s.sql.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return err
}

func (s *Store) Table(name string) kv.Table {
	return &table{sql: s.sql, tbl: name}
}

type table struct {
	sql *sql.DB
	tbl string
}

func (t *table) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := t.sql.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE tbl = ? AND key = ?", t.tbl, key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	return nil, false, err
}

func (t *table) Put(ctx context.Context, key string, value []byte) error {
	_, err := t.sql.ExecContext(ctx, `
INSERT INTO kv(tbl, key, value, updated_at) VALUES(?, ?, ?, ?)
ON CONFLICT(tbl, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, t.tbl, key, value, time.Now().Unix())
	return err
}

func (t *table) Delete(ctx context.Context, key string) error {
	_, err := t.sql.ExecContext(ctx, "DELETE FROM kv WHERE tbl = ? AND key = ?", t.tbl, key)
	return err
}

func (t *table) Scan(ctx context.Context, fn func(key string, value []byte) error) error {
	rows, err := t.sql.QueryContext(ctx,
		"SELECT key, value FROM kv WHERE tbl = ? ORDER BY key ASC", t.tbl)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return rows.Err()
}
