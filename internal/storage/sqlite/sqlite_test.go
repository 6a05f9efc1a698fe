package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "people")
	require.NoError(t, err)
	assert.False(t, ok, "missing key is not an error")

	require.NoError(t, store.Save(ctx, "people", `[{"id":"p1"}]`))
	value, ok, err := store.Load(ctx, "people")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"p1"}]`, value)
}

func TestSaveOverwrites(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "favorites", "{}"))
	require.NoError(t, store.Save(ctx, "favorites", `{"c1":{"p1":"x"}}`))

	value, ok, err := store.Load(ctx, "favorites")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"c1":{"p1":"x"}}`, value)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "kv.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err, "parent directories are created")
	require.NoError(t, store.Save(ctx, "categories", "[]"))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Load(ctx, "categories")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", value)
}
