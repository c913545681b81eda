package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/equipid/internal/catalog"
	"github.com/DreamCats/equipid/internal/imaging"
	"github.com/DreamCats/equipid/internal/itemindex"
	"github.com/DreamCats/equipid/internal/query"
)

type fakeIdentifier struct {
	readyErr error
	matches  []query.Match
	err      error
	got      []byte
}

func (f *fakeIdentifier) Ready() error { return f.readyErr }

func (f *fakeIdentifier) Identify(ctx context.Context, data []byte) ([]query.Match, error) {
	f.got = data
	if f.err != nil {
		return nil, f.err
	}
	if _, err := imaging.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrInvalidImage, err)
	}
	return f.matches, nil
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postIdentify(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/identify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestIdentifyMissingImage(t *testing.T) {
	s := New(&fakeIdentifier{}, Options{})

	rec := postIdentify(t, s, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, errorBody(t, rec))
}

func TestIdentifyMalformedJSON(t *testing.T) {
	s := New(&fakeIdentifier{}, Options{})

	rec := postIdentify(t, s, `{"image":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, errorBody(t, rec))
}

func TestIdentifyUndecodableImage(t *testing.T) {
	s := New(&fakeIdentifier{}, Options{})

	rec := postIdentify(t, s, `{"image":"data:image/png;base64,`+base64.StdEncoding.EncodeToString([]byte("nope"))+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postIdentify(t, s, `{"image":"data:image/png;base64,%%%"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentifyOversizedImage(t *testing.T) {
	svc := query.New(nil, nil, query.Options{Collection: "items", MaxPixels: 1})
	s := New(svc, Options{})

	rec := postIdentify(t, s, `{"image":"`+pngDataURI(t)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "pixel limit")
}

func TestIdentifyNotReady(t *testing.T) {
	s := New(&fakeIdentifier{readyErr: query.ErrUnavailable}, Options{})

	rec := postIdentify(t, s, `{"image":"`+pngDataURI(t)+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, errorBody(t, rec), "not ready")
}

func TestIdentifySuccess(t *testing.T) {
	fake := &fakeIdentifier{matches: []query.Match{{
		Score:   0.97,
		Payload: catalog.Payload{"itemName": "pump_A", "information": "Centrifugal pump, model X"},
	}}}
	s := New(fake, Options{})

	rec := postIdentify(t, s, `{"image":"`+pngDataURI(t)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.InDelta(t, 0.97, got[0]["score"], 1e-9)
	assert.Equal(t, "pump_A", got[0]["payload"].(map[string]any)["itemName"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestIdentifyBareBase64(t *testing.T) {
	fake := &fakeIdentifier{matches: []query.Match{}}
	s := New(fake, Options{})

	uri := pngDataURI(t)
	rec := postIdentify(t, s, `{"image":"`+strings.TrimPrefix(uri, "data:image/png;base64,")+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.NotEmpty(t, fake.got)
}

func TestIdentifyBackendFailure(t *testing.T) {
	s := New(&fakeIdentifier{err: fmt.Errorf("%w: timeout", query.ErrSearch)}, Options{})

	rec := postIdentify(t, s, `{"image":"`+pngDataURI(t)+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdentifyBodyTooLarge(t *testing.T) {
	s := New(&fakeIdentifier{}, Options{MaxBodyBytes: 64})

	rec := postIdentify(t, s, `{"image":"`+pngDataURI(t)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeIdentifier{}, Options{}).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	New(&fakeIdentifier{readyErr: errors.New("catalog down")}, Options{}).Router().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexPage(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeIdentifier{}, Options{}).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/identify")
}

func TestSearchItems(t *testing.T) {
	idx, err := itemindex.NewMemOnly()
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.IndexItem("pump_A", "Centrifugal pump, model X", 1))

	router := New(&fakeIdentifier{}, Options{Items: idx}).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/search?q=pump&limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hits []itemindex.Hit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "pump_A", hits[0].Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/search?q=pump&limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchItemsDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	New(&fakeIdentifier{}, Options{}).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/search?q=pump", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
