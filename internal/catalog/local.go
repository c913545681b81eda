package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/DreamCats/equipid/internal/embedding"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// CurrentSchemaVersion is the version of the local catalog schema
	CurrentSchemaVersion = 1

	localDBName = "catalog.db"
)

// LocalCatalog implements Catalog on a sqlite file with brute-force search.
// It is meant for small catalogs and for running without a Qdrant server.
type LocalCatalog struct {
	mu    sync.Mutex
	sqlDB *sql.DB
	path  string
}

// OpenLocal opens or creates the catalog database inside dir.
func OpenLocal(dir string) (*LocalCatalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, localDBName)

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c := &LocalCatalog{sqlDB: sqlDB, path: path}
	if err := c.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return c, nil
}

// Path returns the database file path.
func (c *LocalCatalog) Path() string {
	return c.path
}

func (c *LocalCatalog) migrate() error {
	var version int
	err := c.sqlDB.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == nil && version >= CurrentSchemaVersion {
		return nil
	}
	// A fresh file has no schema_version table yet; the schema is idempotent.

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	tx, err := c.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

func (c *LocalCatalog) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCollection(ctx, name)
}

func (c *LocalCatalog) getCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	info := &CollectionInfo{CollectionSpec: CollectionSpec{Name: name}}
	var distance string
	err := c.sqlDB.QueryRowContext(ctx,
		"SELECT vector_size, distance FROM collections WHERE name = ?", name,
	).Scan(&info.VectorSize, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	info.Distance = Distance(distance)

	if err := c.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", name,
	).Scan(&info.PointsCount); err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}
	return info, nil
}

func (c *LocalCatalog) CreateCollection(ctx context.Context, spec CollectionSpec) error {
	if spec.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", spec.VectorSize)
	}
	distance := spec.Distance
	if distance == "" {
		distance = Cosine
	}
	if _, err := ParseDistance(string(distance)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.sqlDB.ExecContext(ctx,
		"INSERT INTO collections (name, vector_size, distance, created_at) VALUES (?, ?, ?, ?)",
		spec.Name, spec.VectorSize, string(distance), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", spec.Name, err)
	}
	return nil
}

// Upsert writes all points in one transaction. Writes are synchronous, so
// wait has no effect.
func (c *LocalCatalog) Upsert(ctx context.Context, collection string, points []Point, wait bool) error {
	if len(points) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.getCollection(ctx, collection)
	if err != nil {
		return err
	}
	for i, p := range points {
		if len(p.Vector) != info.VectorSize {
			return fmt.Errorf("%w: point %d has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, i, len(p.Vector), collection, info.VectorSize)
		}
	}

	tx, err := c.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO points (collection, id, vector, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload of point %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, vectorToBlob(p.Vector), string(payload), now); err != nil {
			return fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Search scores every point in the collection and returns the best limit
// hits. Ties are broken by point ID so results are stable.
func (c *LocalCatalog) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.getCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s expects %d",
			ErrDimensionMismatch, len(vector), collection, info.VectorSize)
	}

	rows, err := c.sqlDB.QueryContext(ctx, "SELECT id, vector, payload FROM points WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var id, payload string
		var blob []byte
		if err := rows.Scan(&id, &blob, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stored, err := blobToVector(blob)
		if err != nil || len(stored) != len(vector) {
			continue // Skip malformed vectors
		}

		var score float32
		switch info.Distance {
		case Dot:
			score = embedding.Dot(vector, stored)
		case Euclid:
			score = embedding.L2Distance(vector, stored)
		default:
			score = embedding.Similarity(vector, stored)
		}

		hit := Hit{ID: id, Score: float64(score)}
		if err := json.Unmarshal([]byte(payload), &hit.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of point %s: %w", id, err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	ascending := info.Distance == Euclid
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			if ascending {
				return hits[i].Score < hits[j].Score
			}
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (c *LocalCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sqlDB.Close()
}

// vectorToBlob stores float32 components little-endian.
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vector, nil
}
