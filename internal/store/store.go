// Package store persists POI entities and import batches. The pipeline
// talks to the Store interface only; the Postgres implementation is the
// production backend and the Memory implementation backs tests and dry
// runs.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/geopoi/importer/internal/poi"
)

// ErrBatchNotFound is returned when an ImportBatch id has no record.
var ErrBatchNotFound = errors.New("import batch not found")

// Store is the persistence contract consumed by the ingestion pipeline.
type Store interface {
	// CreateBatch inserts a new ImportBatch record.
	CreateBatch(ctx context.Context, b *poi.ImportBatch) error

	// GetBatch loads an ImportBatch by id. Returns ErrBatchNotFound if
	// no such batch exists.
	GetBatch(ctx context.Context, id uuid.UUID) (*poi.ImportBatch, error)

	// UpdateBatch persists the batch's current status, counters, timing,
	// and error log.
	UpdateBatch(ctx context.Context, b *poi.ImportBatch) error

	// DeleteBatch removes a batch and, by ownership, every POI that
	// references it.
	DeleteBatch(ctx context.Context, id uuid.UUID) error

	// BulkInsertPOIs writes a batch of POIs in one statement. Records
	// whose external_id already exists are silently ignored; the
	// returned count is the number actually inserted, so callers can
	// derive the duplicate-skip count from the difference.
	BulkInsertPOIs(ctx context.Context, pois []*poi.PointOfInterest) (int64, error)

	// CountPOIsByBatch returns how many POIs a batch owns.
	CountPOIsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error)

	// ListUnratedPOIs returns POIs that have ratings but no computed
	// average, up to limit. Used by the recalculation command.
	ListUnratedPOIs(ctx context.Context, limit int) ([]*poi.PointOfInterest, error)

	// UpdatePOIRating persists a POI's recomputed avg_rating and
	// rating_count.
	UpdatePOIRating(ctx context.Context, p *poi.PointOfInterest) error

	// ClearPOIs deletes all POI rows and returns the count removed.
	ClearPOIs(ctx context.Context) (int64, error)

	// Begin opens a transactional scope. All Store calls on the
	// returned Tx happen inside one transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a Store bound to one open transaction.
type Tx interface {
	Store

	Commit(ctx context.Context) error
	// Rollback is a no-op after Commit, so it is safe to defer.
	Rollback(ctx context.Context) error
}
