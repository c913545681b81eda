// Package catalog stores image embeddings in named collections and answers
// nearest-neighbor queries over them. QdrantCatalog talks to a Qdrant server
// over REST; LocalCatalog keeps everything in a sqlite file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCollectionNotFound is returned by GetCollection when no collection
	// with the requested name exists.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch is returned when a vector length differs from the
	// collection's vector size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrSchemaMismatch is returned by EnsureCollection in verify mode when an
	// existing collection disagrees with the requested spec.
	ErrSchemaMismatch = errors.New("collection schema mismatch")
)

// Distance is the similarity metric of a collection.
type Distance string

const (
	Cosine Distance = "Cosine"
	Dot    Distance = "Dot"
	Euclid Distance = "Euclid"
)

// ParseDistance accepts the metric names case-insensitively.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return Cosine, nil
	case "dot":
		return Dot, nil
	case "euclid", "euclidean":
		return Euclid, nil
	}
	return "", fmt.Errorf("unknown distance %q", s)
}

// Payload is the JSON metadata attached to a point.
type Payload map[string]any

// Point is one stored vector.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a search result. Higher scores are better for Cosine and Dot; for
// Euclid the score is the distance and lower is better.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name       string
	VectorSize int
	Distance   Distance
}

// CollectionInfo is what GetCollection reports about an existing collection.
type CollectionInfo struct {
	CollectionSpec
	PointsCount int64
}

// Catalog is the vector store contract used by ingestion and querying.
type Catalog interface {
	GetCollection(ctx context.Context, name string) (*CollectionInfo, error)
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	Upsert(ctx context.Context, collection string, points []Point, wait bool) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	Close() error
}

// StatusError is a non-2xx answer from a remote catalog.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.Code, e.Body)
}
