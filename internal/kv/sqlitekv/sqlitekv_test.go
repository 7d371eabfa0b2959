package sqlitekv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bulgur-cloud/bulgur-cloud/internal/kv/kvtest"
)

func TestSQLiteStore(t *testing.T) {
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "creds.db"))
	require.NoError(t, err)
	defer store.Close()
	kvtest.Run(t, store)
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening re-runs Migrate against the same file.
	store, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
