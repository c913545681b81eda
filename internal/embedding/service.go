package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DreamCats/equipid/internal/config"
	"github.com/DreamCats/equipid/internal/imaging"
)

// ErrDimensionMismatch is returned when a provider yields a vector whose
// length differs from the configured dimensionality.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Service provides image embedding generation
type Service struct {
	cfg    *config.EmbeddingConfig
	client Client
}

// Client is the interface for embedding API clients
type Client interface {
	EmbedImage(ctx context.Context, img *imaging.Image) ([]float32, error)
	Dimensions() int
}

// NewService creates a new embedding service
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case config.ProviderVolcEngine:
		client, err = NewVolcEngineClient(cfg)
	case config.ProviderCLIP:
		client, err = NewCLIPClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(cfg, client), nil
}

// NewServiceWithClient wraps an existing client.
func NewServiceWithClient(cfg *config.EmbeddingConfig, client Client) *Service {
	return &Service{cfg: cfg, client: client}
}

// Embed generates an embedding for a single decoded image. The result always
// has exactly Dimensions() components.
func (s *Service) Embed(ctx context.Context, img *imaging.Image) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot embed nil image")
	}
	fitted, err := img.Fit(s.cfg.MaxImageSide)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}
	vector, err := s.client.EmbedImage(ctx, fitted)
	if err != nil {
		return nil, err
	}
	if want := s.Dimensions(); want > 0 && len(vector) != want {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(vector))
	}
	return vector, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	if s.cfg.Dimensions > 0 {
		return s.cfg.Dimensions
	}
	return s.client.Dimensions()
}

// Model returns the configured model identity.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Similarity computes cosine similarity between two vectors
func Similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

// Dot computes the inner product of two vectors
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := 0; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// L2Distance computes L2 (Euclidean) distance between two vectors
func L2Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := 0; i < len(a); i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return float32(math.Sqrt(float64(sum)))
}
