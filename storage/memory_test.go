package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "recordings/r/s/chunk-0", []byte("one")))
	data, err := store.Get(ctx, "recordings/r/s/chunk-0")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	// overwrite is allowed
	require.NoError(t, store.Put(ctx, "recordings/r/s/chunk-0", []byte("two")))
	data, err = store.Get(ctx, "recordings/r/s/chunk-0")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	_, err = store.Get(ctx, "recordings/r/s/chunk-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, fmt.Sprintf("recordings/r/s/chunk-%d", i), []byte("x")))
	}
	require.NoError(t, store.Put(ctx, "other/key", []byte("x")))

	page, err := store.List(ctx, "recordings/", 2, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"recordings/r/s/chunk-0", "recordings/r/s/chunk-1"}, page.Keys)
	require.True(t, page.HasMore)

	page, err = store.List(ctx, "recordings/", 2, page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"recordings/r/s/chunk-2", "recordings/r/s/chunk-3"}, page.Keys)
	require.True(t, page.HasMore)

	page, err = store.List(ctx, "recordings/", 2, page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"recordings/r/s/chunk-4"}, page.Keys)
	assert.False(t, page.HasMore)
}

func TestListAllDrainsEveryPage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PageLimit = 2
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Put(ctx, fmt.Sprintf("recordings/r/s/chunk-%d", i), []byte("x")))
	}

	keys, err := ListAll(ctx, store, "recordings/")
	require.NoError(t, err)
	assert.Len(t, keys, 5)
	assert.Equal(t, "recordings/r/s/chunk-0", keys[0])
	assert.Equal(t, "recordings/r/s/chunk-4", keys[4])
}
