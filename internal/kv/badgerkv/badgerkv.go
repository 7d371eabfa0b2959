// Package badgerkv backs the credential store with BadgerDB, an embedded
// key/value store with WAL-based crash recovery. Tables are key prefixes.
package badgerkv

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a badger database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("badger path is required")
	}
	opts := badger.DefaultOptions(path)
	// Badger logs through its own interface; keep it quiet and let the
	// server's request logging carry the signal.
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Table(name string) kv.Table {
	return &table{db: s.db, prefix: []byte(name + "/")}
}

func (s *Store) Close() error { return s.db.Close() }

type table struct {
	db     *badger.DB
	prefix []byte
}

func (t *table) key(k string) []byte {
	return append(append([]byte{}, t.prefix...), k...)
}

func (t *table) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (t *table) Put(_ context.Context, key string, value []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(key), value)
	})
}

func (t *table) Delete(_ context.Context, key string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(t.key(key))
	})
}

func (t *table) Scan(_ context.Context, fn func(key string, value []byte) error) error {
	return t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := string(item.Key()[len(t.prefix):])
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}
