// Package kv abstracts the credential store behind table-scoped
// get/put/delete semantics. Backends are interchangeable and selected once
// at startup; callers never inspect which backend they got.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Table names used by the server.
const (
	TableUsers        = "users"
	TableAccessTokens = "access_tokens"
	TablePathTokens   = "path_tokens"
	TableShares       = "shares"
)

// Store opens named tables. Implementations must be safe for concurrent use.
type Store interface {
	Table(name string) Table
	Close() error
}

// Table is a single key/value namespace. Every method is independently
// concurrency-safe; values are opaque bytes (JSON in practice).
type Table interface {
	// Get returns the value for key. The boolean is false when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every key in the table. Returning an error from fn
	// stops the scan and propagates the error.
	Scan(ctx context.Context, fn func(key string, value []byte) error) error
}

// GetJSON fetches and unmarshals a value into out.
func GetJSON(ctx context.Context, t Table, key string, out any) (bool, error) {
	b, ok, err := t.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals v and stores it under key.
func PutJSON(ctx context.Context, t Table, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return t.Put(ctx, key, b)
}
