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

// CLIPClient implements Client for self-hosted CLIP servers that expose an
// OpenAI-compatible /embeddings route accepting image data URIs as input.
type CLIPClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// CLIPEmbeddingRequest is the request format for the embeddings route
type CLIPEmbeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Modality       string   `json:"modality,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// CLIPEmbeddingResponse is the response from the embeddings route
type CLIPEmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewCLIPClient creates a new CLIP embedding client
func NewCLIPClient(cfg *config.EmbeddingConfig) (*CLIPClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("clip endpoint is required")
	}

	model := cfg.Model
	if model == "" {
		model = "clip-ViT-B-32"
	}

	return &CLIPClient{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// EmbedImage generates an embedding for one image
func (c *CLIPClient) EmbedImage(ctx context.Context, img *imaging.Image) ([]float32, error) {
	req := CLIPEmbeddingRequest{
		Input:          []string{img.DataURI()},
		Model:          c.model,
		Modality:       "image",
		EncodingFormat: "float",
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
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

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

	var apiResp CLIPEmbeddingResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(apiResp.Data) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(apiResp.Data))
	}

	return apiResp.Data[0].Embedding, nil
}

// Dimensions returns the dimension of the embeddings
func (c *CLIPClient) Dimensions() int {
	return c.dimensions
}
