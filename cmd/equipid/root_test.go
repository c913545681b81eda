package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0")
	require.NotNil(t, cmd)
	assert.Equal(t, "equipid", cmd.Use)
	assert.Equal(t, "1.0.0", cmd.Version)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"init", "ingest", "serve", "stats", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitCmdWritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "equipid.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default config")
	assert.FileExists(t, path)

	out, err = execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestIngestMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	out, err := execute(t, "ingest", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "equipid init")
}

// clipServer answers every embedding request with the same unit vector.
func clipServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0,0]}],"model":"clip-test"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, endpoint, dataPath string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`embedding:
  provider: clip
  endpoint: %s
  model: clip-test
  dimensions: 3
catalog:
  backend: local
  path: %s
  collection: equipment_test
ingest:
  data_path: %s
  progress: never
  item_index: %s
log:
  level: error
  dir: %s
`, endpoint, filepath.Join(dir, "catalog"), dataPath, filepath.Join(dir, "items"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "equipid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestIngestAndStats(t *testing.T) {
	srv := clipServer(t)
	data := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(data, "pump_A"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "pump_A", "info.txt"), []byte("Centrifugal pump"), 0644))
	writePNG(t, filepath.Join(data, "pump_A", "front.png"))
	writePNG(t, filepath.Join(data, "no_info", "side.png"))

	configPath := writeTestConfig(t, srv.URL, data)

	out, err := execute(t, "ingest", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 uploaded, 1 skipped")
	assert.Contains(t, out, "skipped no_info: missing_info")

	out, err = execute(t, "stats", "--config", configPath, "--json")
	require.NoError(t, err)
	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.True(t, stats.Exists)
	assert.EqualValues(t, 1, stats.Points)
	assert.Equal(t, 3, stats.VectorSize)
	assert.Equal(t, "Cosine", stats.Distance)
	require.NotNil(t, stats.Items)
	assert.EqualValues(t, 1, *stats.Items)
}

func TestStatsBeforeIngest(t *testing.T) {
	configPath := writeTestConfig(t, "http://127.0.0.1:1/embeddings", t.TempDir())

	out, err := execute(t, "stats", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "not created")
	assert.NotContains(t, out, "Items:")
	assert.NoDirExists(t, filepath.Join(filepath.Dir(configPath), "items"))
}

func TestIngestRejectsBadFlag(t *testing.T) {
	configPath := writeTestConfig(t, "http://127.0.0.1:1/embeddings", t.TempDir())

	_, err := execute(t, "ingest", "--config", configPath, "--point-ids", "sequential")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "point_ids")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "equipid test")
}
