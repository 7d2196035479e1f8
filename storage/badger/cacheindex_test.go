package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/geosearch/core"
	"github.com/poiesic/geosearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheIndex(t *testing.T) {
	repo, err := NewMemoryCacheIndex()
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	entry, err := repo.GetEntry(ctx, "monaco")
	require.NoError(t, err)
	assert.Nil(t, entry)

	monaco := &core.CacheEntry{RegionID: "monaco", Version: "v1", Path: "/c/monaco/v1", SizeBytes: 10}
	andorra := &core.CacheEntry{RegionID: "andorra", Version: "v3", Path: "/c/andorra/v3", SizeBytes: 20}
	require.NoError(t, repo.PutEntry(ctx, monaco))
	require.NoError(t, repo.PutEntry(ctx, andorra))

	entry, err = repo.GetEntry(ctx, "monaco")
	require.NoError(t, err)
	assert.Equal(t, monaco, entry)

	t.Run("list ordered by region", func(t *testing.T) {
		entries, err := repo.ListEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "andorra", entries[0].RegionID)
		assert.Equal(t, "monaco", entries[1].RegionID)
	})

	t.Run("replace", func(t *testing.T) {
		updated := *monaco
		updated.Version = "v2"
		require.NoError(t, repo.PutEntry(ctx, &updated))
		got, err := repo.GetEntry(ctx, "monaco")
		require.NoError(t, err)
		assert.Equal(t, "v2", got.Version)
	})

	t.Run("touch", func(t *testing.T) {
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, repo.Touch(ctx, "andorra", at))
		got, err := repo.GetEntry(ctx, "andorra")
		require.NoError(t, err)
		assert.True(t, at.Equal(got.LastAccess))

		err = repo.Touch(ctx, "atlantis", at)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteEntry(ctx, "andorra"))
		require.NoError(t, repo.DeleteEntry(ctx, "andorra"))
		entries, err := repo.ListEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("empty region id", func(t *testing.T) {
		err := repo.PutEntry(ctx, &core.CacheEntry{})
		assert.ErrorIs(t, err, core.ErrEmptyRegionID)
	})
}

func TestCacheIndexPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	repo, err := OpenCacheIndex(dir)
	require.NoError(t, err)
	require.NoError(t, repo.PutEntry(ctx, &core.CacheEntry{RegionID: "malta", Version: "v9"}))
	require.NoError(t, repo.Close())

	repo, err = OpenCacheIndex(dir)
	require.NoError(t, err)
	defer repo.Close()
	entry, err := repo.GetEntry(ctx, "malta")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "v9", entry.Version)
}
