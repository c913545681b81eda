package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLocal(t *testing.T) *LocalCatalog {
	t.Helper()
	c, err := OpenLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLocalCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)

	_, err := c.GetCollection(ctx, "items")
	require.ErrorIs(t, err, ErrCollectionNotFound)

	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 3, Distance: Cosine}))

	info, err := c.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.Equal(t, 3, info.VectorSize)
	assert.Equal(t, Cosine, info.Distance)
	assert.Zero(t, info.PointsCount)

	assert.Error(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 3}))
	assert.Error(t, c.CreateCollection(ctx, CollectionSpec{Name: "bad", VectorSize: 0}))
}

func TestLocalUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 2, Distance: Cosine}))

	points := []Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: Payload{"itemName": "pump_A"}},
		{ID: "b", Vector: []float32{0, 1}, Payload: Payload{"itemName": "valve_B"}},
	}
	require.NoError(t, c.Upsert(ctx, "items", points, true))

	info, err := c.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.PointsCount)

	hits, err := c.Search(ctx, "items", []float32{0.9, 0.1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "pump_A", hits[0].Payload["itemName"])

	// Same ID overwrites.
	require.NoError(t, c.Upsert(ctx, "items", []Point{{ID: "a", Vector: []float32{0, 1}, Payload: Payload{"itemName": "moved"}}}, true))
	info, err = c.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.PointsCount)
}

func TestLocalSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 2}))

	hits, err := c.Search(ctx, "items", []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLocalDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 3}))

	err := c.Upsert(ctx, "items", []Point{{ID: "a", Vector: []float32{1, 2}}}, true)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = c.Search(ctx, "items", []float32{1, 2}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	info, err := c.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.Zero(t, info.PointsCount)
}

func TestLocalSearchDistances(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "dot", VectorSize: 2, Distance: Dot}))
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "l2", VectorSize: 2, Distance: Euclid}))

	points := []Point{
		{ID: "near", Vector: []float32{1, 1}},
		{ID: "far", Vector: []float32{10, 10}},
	}
	require.NoError(t, c.Upsert(ctx, "dot", points, true))
	require.NoError(t, c.Upsert(ctx, "l2", points, true))

	hits, err := c.Search(ctx, "dot", []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "far", hits[0].ID)
	assert.InDelta(t, 20.0, hits[0].Score, 1e-6)

	hits, err = c.Search(ctx, "l2", []float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Score, 1e-6)
}

func TestLocalSearchDeterministic(t *testing.T) {
	ctx := context.Background()
	c := openTestLocal(t)
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 2}))
	require.NoError(t, c.Upsert(ctx, "items", []Point{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{2, 0}},
	}, true))

	for i := 0; i < 3; i++ {
		hits, err := c.Search(ctx, "items", []float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "a", hits[0].ID)
	}
}

func TestLocalReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := OpenLocal(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catalog.db"), c.Path())
	require.NoError(t, c.CreateCollection(ctx, CollectionSpec{Name: "items", VectorSize: 1}))
	require.NoError(t, c.Upsert(ctx, "items", []Point{{ID: "x", Vector: []float32{1}}}, true))
	require.NoError(t, c.Close())

	c, err = OpenLocal(dir)
	require.NoError(t, err)
	defer c.Close()
	info, err := c.GetCollection(ctx, "items")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.PointsCount)
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := blobToVector(vectorToBlob(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = blobToVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
