// Package app wires configuration into the embedder, catalog, ingestion
// pipeline and query service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/DreamCats/equipid/internal/catalog"
	"github.com/DreamCats/equipid/internal/config"
	"github.com/DreamCats/equipid/internal/embedding"
	"github.com/DreamCats/equipid/internal/ingest"
	"github.com/DreamCats/equipid/internal/itemindex"
	"github.com/DreamCats/equipid/internal/query"
)

// Runtime holds the shared dependencies built from one config.
type Runtime struct {
	cfg      *config.Config
	embedder *embedding.Service
	catalog  catalog.Catalog
}

func NewRuntime(cfg *config.Config) (*Runtime, error) {
	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Open(&cfg.Catalog)
	if err != nil {
		return nil, err
	}
	return NewRuntimeWith(cfg, embedder, cat), nil
}

// NewRuntimeWith wraps already constructed dependencies.
func NewRuntimeWith(cfg *config.Config, embedder *embedding.Service, cat catalog.Catalog) *Runtime {
	return &Runtime{cfg: cfg, embedder: embedder, catalog: cat}
}

func (r *Runtime) Embedder() *embedding.Service { return r.embedder }

func (r *Runtime) Catalog() catalog.Catalog { return r.catalog }

// CollectionSpec is the configured collection sized to the embedder.
func (r *Runtime) CollectionSpec() (catalog.CollectionSpec, error) {
	return catalog.SpecFromConfig(&r.cfg.Catalog, r.embedder.Dimensions())
}

func (r *Runtime) Close() error {
	if r.catalog == nil {
		return nil
	}
	return r.catalog.Close()
}

// NewPipeline builds an ingestion pipeline over cfg.Ingest.DataPath. index
// may be nil.
func (r *Runtime) NewPipeline(logger *slog.Logger, index *itemindex.Index) (*ingest.Pipeline, error) {
	spec, err := r.CollectionSpec()
	if err != nil {
		return nil, err
	}
	source, err := ingest.NewDirSource(r.cfg.Ingest.DataPath, r.cfg.Ingest.Exclude)
	if err != nil {
		return nil, err
	}
	opts := ingest.Options{
		Collection:   spec,
		VerifySchema: r.cfg.Catalog.VerifySchema,
		PointID:      ingest.IDFuncFor(r.cfg.Ingest.PointIDs),
		MaxPixels:    r.cfg.Embedding.MaxImagePixels,
		Progress:     ingest.NewProgress(r.cfg.Ingest.Progress),
		Logger:       logger,
	}
	// A nil *itemindex.Index must not become a non-nil interface.
	if index != nil {
		opts.Index = index
	}
	return ingest.NewPipeline(source, r.embedder, r.catalog, opts), nil
}

// NewQueryService builds the query service. Any startup failure yields a
// service that rejects every request with query.ErrUnavailable instead of
// an error, so the HTTP front end can still start and report it. The
// returned close function is always non-nil.
func NewQueryService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*query.Service, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := NewRuntime(cfg)
	if err != nil {
		logger.Error("query service initialization failed", "err", err)
		return query.Unavailable(err, logger), func() {}
	}
	svc, err := newQueryService(ctx, rt, logger)
	if err != nil {
		_ = rt.Close()
		logger.Error("query service initialization failed", "err", err)
		return query.Unavailable(err, logger), func() {}
	}
	return svc, func() { _ = rt.Close() }
}

func newQueryService(ctx context.Context, rt *Runtime, logger *slog.Logger) (*query.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := rt.cfg.Catalog.Collection
	info, err := rt.catalog.GetCollection(ctx, name)
	if err != nil {
		if errors.Is(err, catalog.ErrCollectionNotFound) {
			return nil, fmt.Errorf("collection %s does not exist; run ingest first: %w", name, err)
		}
		return nil, fmt.Errorf("connect to catalog: %w", err)
	}
	if info.VectorSize > 0 && info.VectorSize != rt.embedder.Dimensions() {
		logger.Warn("collection vector size differs from embedder dimensions",
			"collection", name, "vector_size", info.VectorSize, "dimensions", rt.embedder.Dimensions())
	}
	logger.Info("query service ready", "collection", name, "points", info.PointsCount, "model", rt.embedder.Model())
	return query.New(rt.embedder, rt.catalog, query.Options{
		Collection:     name,
		MaxConcurrency: rt.cfg.Server.MaxConcurrency,
		MaxPixels:      rt.cfg.Embedding.MaxImagePixels,
		Logger:         logger,
	}), nil
}

// OpenItemIndex opens the configured item index. It returns nil when the
// index is disabled.
func OpenItemIndex(cfg *config.Config) (*itemindex.Index, error) {
	if cfg.Ingest.ItemIndex == "" {
		return nil, nil
	}
	return itemindex.Open(cfg.Ingest.ItemIndex)
}

// OpenExistingItemIndex is OpenItemIndex without creating anything on disk.
// It returns nil when the index is disabled or has not been written yet.
func OpenExistingItemIndex(cfg *config.Config) (*itemindex.Index, error) {
	if cfg.Ingest.ItemIndex == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.Ingest.ItemIndex); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return itemindex.Open(cfg.Ingest.ItemIndex)
}
