// Package query identifies an item from a photograph by searching the
// catalog for the nearest reference image.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/DreamCats/equipid/internal/catalog"
	"github.com/DreamCats/equipid/internal/imaging"
)

var (
	// ErrUnavailable is returned for every request when startup failed.
	ErrUnavailable = errors.New("identification service not ready")
	// ErrInvalidImage is returned when the request image cannot be decoded.
	ErrInvalidImage = errors.New("invalid image")
	// ErrEmbed is returned when the embedding provider fails.
	ErrEmbed = errors.New("embedding failed")
	// ErrSearch is returned when the catalog search fails.
	ErrSearch = errors.New("catalog search failed")
)

// Match is one identification result.
type Match struct {
	Score   float64         `json:"score"`
	Payload catalog.Payload `json:"payload"`
}

// Embedder produces a vector for a decoded image.
type Embedder interface {
	Embed(ctx context.Context, img *imaging.Image) ([]float32, error)
}

// Searcher is the part of the catalog the service needs.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]catalog.Hit, error)
}

type Options struct {
	Collection string
	// MaxConcurrency bounds in-flight embedding calls; 0 means unbounded.
	MaxConcurrency int
	// MaxPixels rejects larger images with ErrInvalidImage; 0 uses
	// imaging.DefaultMaxPixels.
	MaxPixels int64
	Logger    *slog.Logger
}

// Service is safe for concurrent use. Its dependencies are fixed at
// construction.
type Service struct {
	embedder   Embedder
	searcher   Searcher
	collection string
	sem        *semaphore.Weighted
	maxPixels  int64
	initErr    error
	logger     *slog.Logger
}

func New(embedder Embedder, searcher Searcher, opts Options) *Service {
	s := &Service{
		embedder:   embedder,
		searcher:   searcher,
		collection: opts.Collection,
		maxPixels:  opts.MaxPixels,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if opts.MaxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxConcurrency))
	}
	return s
}

// Unavailable returns a service that fails every request with
// ErrUnavailable wrapping cause.
func Unavailable(cause error, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{initErr: cause, logger: logger}
}

// Ready returns nil when the service can answer requests.
func (s *Service) Ready() error {
	if s.initErr != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, s.initErr)
	}
	return nil
}

// Identify returns the single nearest catalog point as zero or one matches.
// An empty catalog yields an empty, non-nil slice.
func (s *Service) Identify(ctx context.Context, data []byte) ([]Match, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	img, err := imaging.DecodeLimit(data, s.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	vector, err := s.embed(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbed, err)
	}

	hits, err := s.searcher.Search(ctx, s.collection, vector, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, Match{Score: hit.Score, Payload: hit.Payload})
	}
	if len(matches) > 0 {
		s.logger.Debug("identified", "id", hits[0].ID, "score", hits[0].Score)
	}
	return matches, nil
}

func (s *Service) embed(ctx context.Context, img *imaging.Image) ([]float32, error) {
	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer s.sem.Release(1)
	}
	return s.embedder.Embed(ctx, img)
}
