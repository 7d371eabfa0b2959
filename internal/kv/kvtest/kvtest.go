// Package kvtest holds the shared conformance test run against every
// kv.Store backend.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
)

// Run exercises the basic table contract against a store.
func Run(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()
	users := store.Table(kv.TableUsers)
	tokens := store.Table(kv.TableAccessTokens)

	// Missing keys read as absent, not as errors.
	_, ok, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, users.Put(ctx, "alice", []byte(`{"username":"alice"}`)))
	v, ok, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"username":"alice"}`, string(v))

	// Tables are isolated namespaces.
	_, ok, err = tokens.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)

	// Overwrite replaces the value.
	require.NoError(t, users.Put(ctx, "alice", []byte(`{"username":"alice","user_type":"admin"}`)))
	v, ok, err = users.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(v), "admin")

	// Scan sees every key in the table.
	require.NoError(t, users.Put(ctx, "bob", []byte(`{"username":"bob"}`)))
	seen := map[string]bool{}
	require.NoError(t, users.Scan(ctx, func(key string, _ []byte) error {
		seen[key] = true
		return nil
	}))
	require.True(t, seen["alice"])
	require.True(t, seen["bob"])

	// Delete is idempotent.
	require.NoError(t, users.Delete(ctx, "alice"))
	require.NoError(t, users.Delete(ctx, "alice"))
	_, ok, err = users.Get(ctx, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
