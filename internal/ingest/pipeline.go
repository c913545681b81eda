// Package ingest walks a directory of labeled item folders, embeds every
// image and writes one catalog point per image.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DreamCats/equipid/internal/catalog"
	"github.com/DreamCats/equipid/internal/config"
	"github.com/DreamCats/equipid/internal/embedding"
	"github.com/DreamCats/equipid/internal/imaging"
)

// Payload keys written for every point.
const (
	PayloadItemName    = "itemName"
	PayloadInformation = "information"
	PayloadSourcePath  = "sourcePath"
)

// ErrCatalogWrite wraps upsert failures. A write failure halts the run.
var ErrCatalogWrite = errors.New("catalog write failed")

// SkipReason explains why an item produced no points.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipMissingInfo    SkipReason = "missing_info"
	SkipNoImages       SkipReason = "no_images"
	SkipNoUsableImages SkipReason = "no_usable_images"
	SkipUnreadable     SkipReason = "unreadable"
)

// ImageErrorReason says at which step an image was dropped.
type ImageErrorReason string

const (
	ReasonRead   ImageErrorReason = "read"
	ReasonDecode ImageErrorReason = "decode"
	ReasonEmbed  ImageErrorReason = "embed"
)

// ImageError records an image that was skipped.
type ImageError struct {
	Path   string
	Reason ImageErrorReason
	Err    error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Reason, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// ItemResult is the outcome for one item directory.
type ItemResult struct {
	Name        string
	Skip        SkipReason
	Points      int
	ImageErrors []*ImageError
}

// Report aggregates a run.
type Report struct {
	CollectionCreated bool
	Items             []ItemResult
	PointsWritten     int
	// PointsInCollection is read back after the run; -1 when unavailable.
	PointsInCollection int64
}

// Uploaded returns the number of items that produced at least one point.
func (r *Report) Uploaded() int {
	n := 0
	for _, item := range r.Items {
		if item.Points > 0 {
			n++
		}
	}
	return n
}

// Skipped returns the number of items skipped entirely.
func (r *Report) Skipped() int {
	n := 0
	for _, item := range r.Items {
		if item.Skip != SkipNone {
			n++
		}
	}
	return n
}

// ImageFailures returns the number of images skipped across all items.
func (r *Report) ImageFailures() int {
	n := 0
	for _, item := range r.Items {
		n += len(item.ImageErrors)
	}
	return n
}

// Embedder produces fixed-length vectors for images.
type Embedder interface {
	Embed(ctx context.Context, img *imaging.Image) ([]float32, error)
	Dimensions() int
}

// ItemIndexer receives every item that was written to the catalog.
type ItemIndexer interface {
	IndexItem(name, description string, images int) error
}

// IDFunc derives a point ID for an image of an item.
type IDFunc func(collection, item string, data []byte) string

// RandomPointID returns a fresh UUIDv4. Re-ingesting adds new points.
func RandomPointID(collection, item string, data []byte) string {
	return uuid.NewString()
}

var contentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("equipid"))

// ContentPointID returns a UUIDv5 of the collection, item and image digest,
// so re-ingesting the same image overwrites its point.
func ContentPointID(collection, item string, data []byte) string {
	sum := sha256.Sum256(data)
	return uuid.NewSHA1(contentNamespace, []byte(collection+"/"+item+"/"+hex.EncodeToString(sum[:]))).String()
}

// IDFuncFor maps the ingest.point_ids setting to an IDFunc.
func IDFuncFor(mode string) IDFunc {
	if mode == config.PointIDsContent {
		return ContentPointID
	}
	return RandomPointID
}

type Options struct {
	Collection   catalog.CollectionSpec
	VerifySchema bool
	PointID      IDFunc
	// MaxPixels rejects larger images as decode failures; 0 uses
	// imaging.DefaultMaxPixels.
	MaxPixels int64
	Index     ItemIndexer
	Progress  ProgressReporter
	Logger    *slog.Logger
}

// Pipeline runs one ingestion over a Source. Items are processed
// sequentially in lexical order.
type Pipeline struct {
	source   Source
	embedder Embedder
	catalog  catalog.Catalog
	opts     Options
	logger   *slog.Logger
}

func NewPipeline(source Source, embedder Embedder, cat catalog.Catalog, opts Options) *Pipeline {
	if opts.PointID == nil {
		opts.PointID = RandomPointID
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		embedder: embedder,
		catalog:  cat,
		opts:     opts,
		logger:   logger,
	}
}

// Run ensures the collection, then ingests every item. The report is
// returned even when err is non-nil and covers the items seen so far.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{PointsInCollection: -1}
	spec := p.opts.Collection

	created, err := catalog.EnsureCollection(ctx, p.catalog, spec, catalog.EnsureOptions{Verify: p.opts.VerifySchema})
	if err != nil {
		return report, err
	}
	report.CollectionCreated = created
	if created {
		p.logger.Info("collection created", "collection", spec.Name, "size", spec.VectorSize, "distance", spec.Distance)
	} else {
		p.logger.Info("collection already exists", "collection", spec.Name)
	}

	names, err := p.source.ListItems()
	if err != nil {
		return report, err
	}
	p.logger.Info("ingest started", "items", len(names))

	if p.opts.Progress != nil {
		p.opts.Progress.Start(len(names))
		defer p.opts.Progress.Finish()
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := p.ingestItem(ctx, name)
		report.Items = append(report.Items, result)
		report.PointsWritten += result.Points
		if p.opts.Progress != nil {
			p.opts.Progress.Increment()
		}
		if err != nil {
			return report, err
		}
	}
	p.readBack(ctx, report)
	return report, nil
}

func (p *Pipeline) ingestItem(ctx context.Context, name string) (ItemResult, error) {
	result := ItemResult{Name: name}
	log := p.logger.With("item", name)

	item, err := p.source.LoadItem(name)
	switch {
	case errors.Is(err, ErrMissingInfo):
		result.Skip = SkipMissingInfo
		log.Warn("skipping item: info.txt not found")
		return result, nil
	case errors.Is(err, ErrNoImages):
		result.Skip = SkipNoImages
		log.Warn("skipping item: no images found")
		return result, nil
	case err != nil:
		result.Skip = SkipUnreadable
		log.Warn("skipping item", "err", err)
		return result, nil
	}
	log.Info("processing item", "images", len(item.ImagePaths))

	points := make([]catalog.Point, 0, len(item.ImagePaths))
	for _, rel := range item.ImagePaths {
		point, imgErr, err := p.buildPoint(ctx, item, rel)
		if err != nil {
			return result, err
		}
		if imgErr != nil {
			result.ImageErrors = append(result.ImageErrors, imgErr)
			log.Warn("skipping image", "image", rel, "reason", imgErr.Reason, "err", imgErr.Err)
			continue
		}
		points = append(points, point)
		log.Debug("processed image", "image", rel, "id", point.ID)
	}

	if len(points) == 0 {
		result.Skip = SkipNoUsableImages
		log.Warn("skipping item: no usable images")
		return result, nil
	}

	if err := p.catalog.Upsert(ctx, p.opts.Collection.Name, points, true); err != nil {
		return result, fmt.Errorf("%w: item %s: %w", ErrCatalogWrite, name, err)
	}
	result.Points = len(points)
	log.Info("uploaded item", "points", len(points))

	if p.opts.Index != nil {
		if err := p.opts.Index.IndexItem(item.Name, item.Description, len(points)); err != nil {
			log.Warn("item index update failed", "err", err)
		}
	}
	return result, nil
}

// buildPoint returns either a point, a per-image error, or a fatal error.
func (p *Pipeline) buildPoint(ctx context.Context, item *ReferenceItem, rel string) (catalog.Point, *ImageError, error) {
	location := p.source.Location(rel)

	data, err := p.source.ReadImage(rel)
	if err != nil {
		return catalog.Point{}, &ImageError{Path: location, Reason: ReasonRead, Err: err}, nil
	}
	img, err := imaging.DecodeLimit(data, p.opts.MaxPixels)
	if err != nil {
		return catalog.Point{}, &ImageError{Path: location, Reason: ReasonDecode, Err: err}, nil
	}
	vector, err := p.embedder.Embed(ctx, img)
	if err != nil {
		if errors.Is(err, embedding.ErrDimensionMismatch) || ctx.Err() != nil {
			return catalog.Point{}, nil, fmt.Errorf("embed %s: %w", location, err)
		}
		return catalog.Point{}, &ImageError{Path: location, Reason: ReasonEmbed, Err: err}, nil
	}

	return catalog.Point{
		ID:     p.opts.PointID(p.opts.Collection.Name, item.Name, data),
		Vector: vector,
		Payload: catalog.Payload{
			PayloadItemName:    item.Name,
			PayloadInformation: item.Description,
			PayloadSourcePath:  location,
		},
	}, nil, nil
}

func (p *Pipeline) readBack(ctx context.Context, report *Report) {
	info, err := p.catalog.GetCollection(ctx, p.opts.Collection.Name)
	if err != nil {
		p.logger.Warn("failed to read collection after ingest", "err", err)
		return
	}
	report.PointsInCollection = info.PointsCount
	p.logger.Info("ingest finished",
		"uploaded_items", report.Uploaded(),
		"skipped_items", report.Skipped(),
		"image_failures", report.ImageFailures(),
		"points_written", report.PointsWritten,
		"total_points", info.PointsCount,
	)
	// Qdrant counts may lag briefly; this is advisory only.
	if info.PointsCount < int64(report.PointsWritten) {
		p.logger.Warn("collection holds fewer points than written this run",
			"total_points", info.PointsCount, "points_written", report.PointsWritten)
	}
}
