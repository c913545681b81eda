package catalog

import (
	"context"
	"errors"
	"fmt"
)

// EnsureOptions tunes EnsureCollection.
type EnsureOptions struct {
	// Verify compares an existing collection's vector size and distance with
	// the requested spec and fails with ErrSchemaMismatch on disagreement.
	Verify bool
}

// EnsureCollection creates the collection when it does not exist and leaves
// an existing one untouched. It reports whether a collection was created.
// Errors other than ErrCollectionNotFound from the lookup are returned as-is
// without attempting a create.
func EnsureCollection(ctx context.Context, cat Catalog, spec CollectionSpec, opts EnsureOptions) (bool, error) {
	info, err := cat.GetCollection(ctx, spec.Name)
	switch {
	case err == nil:
		if opts.Verify {
			if err := verifySchema(info, spec); err != nil {
				return false, err
			}
		}
		return false, nil
	case errors.Is(err, ErrCollectionNotFound):
		if err := cat.CreateCollection(ctx, spec); err != nil {
			return false, fmt.Errorf("create collection %s: %w", spec.Name, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("get collection %s: %w", spec.Name, err)
	}
}

func verifySchema(info *CollectionInfo, spec CollectionSpec) error {
	if info.VectorSize != spec.VectorSize {
		return fmt.Errorf("%w: collection %s has vector size %d, expected %d",
			ErrSchemaMismatch, spec.Name, info.VectorSize, spec.VectorSize)
	}
	want := spec.Distance
	if want == "" {
		want = Cosine
	}
	if info.Distance != want {
		return fmt.Errorf("%w: collection %s uses distance %s, expected %s",
			ErrSchemaMismatch, spec.Name, info.Distance, want)
	}
	return nil
}
