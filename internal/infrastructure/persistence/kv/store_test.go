package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/persistence/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewConnection("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, nil)
	require.NoError(t, err)
	return store
}

func TestGetMissingKey(t *testing.T) {
	store := newTestStore(t)
	value, ok, err := store.Get("absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSetOverwrites(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("dataSources", `{"ds-1":{}}`))
	require.NoError(t, store.Set("dataSources", `{"ds-1":{},"ds-2":{}}`))

	value, ok, err := store.Get("dataSources")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"ds-1":{},"ds-2":{}}`, value)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("template:banner", "{}"))
	require.NoError(t, store.Delete("template:banner"))
	require.NoError(t, store.Delete("template:banner"))

	_, ok, err := store.Get("template:banner")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysFiltersByPrefix(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("template:banner", "{}"))
	require.NoError(t, store.Set("template:landing", "{}"))
	require.NoError(t, store.Set("templates", "[]"))
	require.NoError(t, store.Set("dataSources", "{}"))

	keys, err := store.Keys("template:")
	require.NoError(t, err)
	assert.Equal(t, []string{"template:banner", "template:landing"}, keys)

	all, err := store.Keys("")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
