// Package memory is an in-process kv.Store used for tests and throwaway
// development servers. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
)

type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Table(name string) kv.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &table{items: make(map[string][]byte)}
		s.tables[name] = t
	}
	return t
}

func (s *Store) Close() error { return nil }

type table struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func (t *table) Get(_ context.Context, key string) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *table) Put(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[key] = v
	return nil
}

func (t *table) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
	return nil
}

func (t *table) Scan(_ context.Context, fn func(key string, value []byte) error) error {
	t.mu.RLock()
	snapshot := make(map[string][]byte, len(t.items))
	for k, v := range t.items {
		snapshot[k] = v
	}
	t.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
