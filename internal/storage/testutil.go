package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/smolex/internal/entity"
)

// NewTestStore opens an uninitialized store in t.TempDir().
// The store is closed automatically via t.Cleanup().
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    store := storage.NewTestStore(t)
//	    _, err := store.Build(ctx, entities)
//	    require.NoError(t, err)
//	}
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "index", "entities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// NewBuiltTestStore opens a store in t.TempDir() and commits entities to it.
func NewBuiltTestStore(t testing.TB, entities []*entity.Entity) *Store {
	t.Helper()

	store := NewTestStore(t)
	_, err := store.Build(context.Background(), entities)
	require.NoError(t, err)

	return store
}
