package itemindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSearch(t *testing.T) {
	idx, err := NewMemOnly()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexItem("pump_A", "Centrifugal pump, model X", 2))
	require.NoError(t, idx.IndexItem("valve_B", "Gate valve for high pressure lines", 1))

	hits, err := idx.Search("centrifugal", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pump_A", hits[0].Name)
	assert.Equal(t, "Centrifugal pump, model X", hits[0].Information)
	assert.Greater(t, hits[0].Score, 0.0)

	hits, err = idx.Search("valves", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "valve_B", hits[0].Name)

	hits, err = idx.Search("compressor", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = idx.Search("   ", 5)
	assert.Error(t, err)
}

func TestIndexReplacesByName(t *testing.T) {
	idx, err := NewMemOnly()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.IndexItem("pump_A", "old text", 1))
	require.NoError(t, idx.IndexItem("pump_A", "Centrifugal pump", 3))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestOpenCreatesAndReopens(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")

	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.IndexItem("pump_A", "Centrifugal pump", 1))
	require.NoError(t, idx.Close())

	idx, err = Open(dir)
	require.NoError(t, err)
	defer idx.Close()
	count, err := idx.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
