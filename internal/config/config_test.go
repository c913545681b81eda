package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("embedding:\n  api_key: k\n"))
	require.NoError(t, err)

	assert.Equal(t, ProviderVolcEngine, cfg.Embedding.Provider)
	assert.Equal(t, 2048, cfg.Embedding.Dimensions)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.EqualValues(t, 89478485, cfg.Embedding.MaxImagePixels)
	assert.Equal(t, BackendQdrant, cfg.Catalog.Backend)
	assert.Equal(t, "industrial_equipment", cfg.Catalog.Collection)
	assert.Equal(t, "Cosine", cfg.Catalog.Distance)
	assert.Equal(t, PointIDsRandom, cfg.Ingest.PointIDs)
	assert.Equal(t, "0.0.0.0:5001", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Server.MaxConcurrency)
	assert.False(t, cfg.Catalog.VerifySchema)
}

func TestParseCLIPDefaults(t *testing.T) {
	cfg, err := Parse([]byte("embedding:\n  provider: clip\n"))
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, "clip-ViT-B-32", cfg.Embedding.Model)
	assert.Equal(t, "http://127.0.0.1:7997/embeddings", cfg.Embedding.Endpoint)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"defaults", "{}", false},
		{"unknown provider", "embedding:\n  provider: word2vec\n", true},
		{"bad volcengine dims", "embedding:\n  dimensions: 512\n", true},
		{"negative pixel limit", "embedding:\n  max_image_pixels: -1\n", true},
		{"unknown backend", "catalog:\n  backend: milvus\n", true},
		{"unknown distance", "catalog:\n  distance: Manhattan\n", true},
		{"content ids", "ingest:\n  point_ids: content\n", false},
		{"bad ids", "ingest:\n  point_ids: sequential\n", true},
		{"bad progress", "ingest:\n  progress: sometimes\n", true},
		{"negative concurrency", "server:\n  max_concurrency: -1\n", true},
		{"bad mode", "server:\n  mode: test\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, IsConfigNotFound(err))
}

func TestWriteDefaultTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "equipid.yaml")

	created, err := WriteDefaultTemplate(path)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = WriteDefaultTemplate(path)
	require.NoError(t, err)
	assert.False(t, created)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "your-volcengine-api-key", cfg.Embedding.APIKey)
	assert.Equal(t, "./data", cfg.Ingest.DataPath)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Catalog.Collection = "pumps"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pumps", loaded.Catalog.Collection)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "a", "b"), ExpandPath("~/a/b"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "", ExpandPath(""))
}
