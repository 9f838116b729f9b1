package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := "uploads/me@example.com/CASH/2024-01-01_to_2024-01-31/statement.csv"
	data := []byte("date,description,amount\n2024-01-02,Coffee,-4.50\n")

	require.NoError(t, store.Put(ctx, key, data, "text/csv"))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalStoreGetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "uploads/nope.csv")
	assert.Error(t, err)
}

func TestLocalStoreList(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	keys := []string{
		"uploads/me@example.com/CASH/a.csv",
		"uploads/me@example.com/SAVE/b.csv",
		"uploads/other@example.com/CASH/c.csv",
	}
	for _, k := range keys {
		require.NoError(t, store.Put(ctx, k, []byte("x"), "text/csv"))
	}

	got, err := store.List(ctx, "uploads/me@example.com/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"uploads/me@example.com/CASH/a.csv",
		"uploads/me@example.com/SAVE/b.csv",
	}, got)

	all, err := store.List(ctx, "uploads/")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../escape.csv", []byte("x"), "text/csv")
	assert.Error(t, err)
}
