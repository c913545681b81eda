package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// QdrantCatalog implements Catalog against the Qdrant REST API.
type QdrantCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewQdrantCatalog(baseURL, apiKey string, timeout time.Duration) *QdrantCatalog {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &QdrantCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *QdrantCatalog) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		return nil, err
	}
	var parsed struct {
		Result struct {
			PointsCount *int64 `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse collection info: %w", err)
	}
	info := &CollectionInfo{CollectionSpec: CollectionSpec{Name: name}}
	if parsed.Result.PointsCount != nil {
		info.PointsCount = *parsed.Result.PointsCount
	}
	// Unnamed vectors only; named-vector collections leave size and distance zero.
	var vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	}
	if len(parsed.Result.Config.Params.Vectors) > 0 &&
		json.Unmarshal(parsed.Result.Config.Params.Vectors, &vectors) == nil {
		info.VectorSize = vectors.Size
		info.Distance = Distance(vectors.Distance)
	}
	return info, nil
}

func (c *QdrantCatalog) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	distance := spec.Distance
	if distance == "" {
		distance = Cosine
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     spec.VectorSize,
			"distance": string(distance),
		},
	}
	_, err := c.doRequest(ctx, http.MethodPut, "/collections/"+url.PathEscape(spec.Name), req)
	return err
}

func (c *QdrantCatalog) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload = append(payload, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	path := "/collections/" + url.PathEscape(collection) + "/points"
	if wait {
		path += "?wait=true"
	}
	_, err := c.doRequest(ctx, http.MethodPut, path, map[string]any{"points": payload})
	return err
}

func (c *QdrantCatalog) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 1
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/collections/"+url.PathEscape(collection)+"/points/search", req)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse search result: %w", err)
	}
	hits := make([]Hit, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		hits = append(hits, Hit{
			ID:      fmt.Sprintf("%v", item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return hits, nil
}

func (c *QdrantCatalog) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *QdrantCatalog) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
