package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirscan/internal/scan"
	"dirscan/internal/storage"
)

func TestStoreRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	rec := &storage.Record{
		ID:        "id-1",
		Path:      "/data",
		Status:    scan.StatusRunning,
		CreatedAt: time.Now(),
		Options:   scan.Options{ComputeHash: true, Workers: 2},
	}
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, scan.StatusRunning, got.Status)

	// Put is an upsert.
	rec.Status = scan.StatusCompleted
	rec.Statistics = &scan.Statistics{TotalFiles: 3}
	require.NoError(t, s.Put(ctx, rec))

	got, ok, err = s.Get(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, scan.StatusCompleted, got.Status)
	require.NotNil(t, got.Statistics)
	assert.Equal(t, 3, got.Statistics.TotalFiles)
}

func TestStoreGetMissing(t *testing.T) {
	s := New()
	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreListOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, &storage.Record{
			ID:        id,
			CreatedAt: base.Add(time.Duration(2-i) * time.Minute),
		}))
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Oldest first: b, a, c.
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
	assert.Equal(t, "c", records[2].ID)
}

func TestStoreDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &storage.Record{ID: "x"}))
	require.NoError(t, s.Delete(ctx, "x"))

	_, ok, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing id is not an error.
	require.NoError(t, s.Delete(ctx, "x"))
}

func TestStoreCopiesRecords(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &storage.Record{ID: "y", Path: "/before"}
	require.NoError(t, s.Put(ctx, rec))
	rec.Path = "/after"

	got, _, err := s.Get(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "/before", got.Path)
}
