package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DreamCats/equipid/internal/config"
	"github.com/DreamCats/equipid/internal/imaging"
)

// VolcEngineClient implements Client for VolcEngine's multimodal embedding API
type VolcEngineClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// VolcEngineEmbeddingRequest is the request format for VolcEngine API
type VolcEngineEmbeddingRequest struct {
	Input          []VolcEngineInput `json:"input"`
	Model          string            `json:"model"`
	EncodingFormat string            `json:"encoding_format,omitempty"`
	Dimensions     int               `json:"dimensions,omitempty"`
}

// VolcEngineInput represents an input item for embedding
type VolcEngineInput struct {
	Type     string              `json:"type"` // "text" | "image_url" | "video_url"
	Text     string              `json:"text,omitempty"`
	ImageURL *VolcEngineImageURL `json:"image_url,omitempty"`
}

// VolcEngineImageURL carries an http(s) URL or a base64 data URI.
type VolcEngineImageURL struct {
	URL string `json:"url"`
}

// VolcEngineEmbeddingResponse is the response from VolcEngine API
type VolcEngineEmbeddingResponse struct {
	ID     string          `json:"id"`
	Model  string          `json:"model"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
	Usage  struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}

type VolcEngineEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
	Object    string    `json:"object"`
}

// NewVolcEngineClient creates a new VolcEngine embedding client
func NewVolcEngineClient(cfg *config.EmbeddingConfig) (*VolcEngineClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("volcengine api_key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://ark.cn-beijing.volces.com/api/v3/embeddings/multimodal"
	}

	model := cfg.Model
	if model == "" {
		model = "doubao-embedding-vision-250615"
	}

	return &VolcEngineClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EmbedImage generates an embedding for one image. The multimodal endpoint
// accepts a single sample per request.
func (c *VolcEngineClient) EmbedImage(ctx context.Context, img *imaging.Image) ([]float32, error) {
	req := VolcEngineEmbeddingRequest{
		Input: []VolcEngineInput{{
			Type:     "image_url",
			ImageURL: &VolcEngineImageURL{URL: img.DataURI()},
		}},
		Model:          c.model,
		EncodingFormat: "float",
		Dimensions:     c.dimensions,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp VolcEngineEmbeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	data, err := parseVolcEngineEmbeddingData(apiResp.Data)
	if err != nil {
		return nil, err
	}
	if len(data) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(data))
	}

	return data[0].Embedding, nil
}

// Dimensions returns the dimension of the embeddings
func (c *VolcEngineClient) Dimensions() int {
	return c.dimensions
}

func parseVolcEngineEmbeddingData(raw json.RawMessage) ([]VolcEngineEmbeddingData, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty embedding data")
	}

	// Trim leading whitespace to detect JSON type.
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case ' ', '\n', '\r', '\t':
			continue
		case '[':
			var data []VolcEngineEmbeddingData
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, fmt.Errorf("failed to parse embedding array: %w", err)
			}
			return data, nil
		case '{':
			var data VolcEngineEmbeddingData
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, fmt.Errorf("failed to parse embedding object: %w", err)
			}
			return []VolcEngineEmbeddingData{data}, nil
		default:
			return nil, fmt.Errorf("unexpected embedding data format")
		}
	}

	return nil, fmt.Errorf("empty embedding data")
}
