package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/geopoi/importer/internal/poi"
)

// Memory is an in-memory Store used by tests and dry runs. It mirrors
// the Postgres behavior that matters to the pipeline: unique external_id
// with silent conflict skip, batch ownership with cascading delete, and
// transactional bulk writes that either fully apply or leave nothing.
type Memory struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*poi.ImportBatch
	pois    map[string]*poi.PointOfInterest // keyed by external_id
	nextID  int64

	// BulkInsertErr, when set, makes every BulkInsertPOIs call fail.
	// Tests use it to exercise the batch-write failure path.
	BulkInsertErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		batches: make(map[uuid.UUID]*poi.ImportBatch),
		pois:    make(map[string]*poi.PointOfInterest),
	}
}

func (m *Memory) CreateBatch(_ context.Context, b *poi.ImportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *b
	m.batches[b.ID] = &clone
	return nil
}

func (m *Memory) GetBatch(_ context.Context, id uuid.UUID) (*poi.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	clone := *b
	return &clone, nil
}

func (m *Memory) UpdateBatch(_ context.Context, b *poi.ImportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[b.ID]; !ok {
		return ErrBatchNotFound
	}
	clone := *b
	m.batches[b.ID] = &clone
	return nil
}

func (m *Memory) DeleteBatch(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[id]; !ok {
		return ErrBatchNotFound
	}
	delete(m.batches, id)
	for extID, p := range m.pois {
		if p.BatchID == id {
			delete(m.pois, extID)
		}
	}
	return nil
}

func (m *Memory) BulkInsertPOIs(_ context.Context, pois []*poi.PointOfInterest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BulkInsertErr != nil {
		return 0, m.BulkInsertErr
	}

	var inserted int64
	for _, p := range pois {
		if _, exists := m.pois[p.ExternalID]; exists {
			continue
		}
		clone := *p
		m.nextID++
		clone.ID = m.nextID
		m.pois[p.ExternalID] = &clone
		inserted++
	}
	return inserted, nil
}

func (m *Memory) CountPOIsByBatch(_ context.Context, batchID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, p := range m.pois {
		if p.BatchID == batchID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListUnratedPOIs(_ context.Context, limit int) ([]*poi.PointOfInterest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*poi.PointOfInterest
	for _, p := range m.pois {
		if len(p.Ratings) > 0 && p.AvgRating == nil {
			clone := *p
			out = append(out, &clone)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) UpdatePOIRating(_ context.Context, p *poi.PointOfInterest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.pois[p.ExternalID]
	if !ok {
		return nil
	}
	stored.AvgRating = p.AvgRating
	stored.RatingCount = p.RatingCount
	return nil
}

func (m *Memory) ClearPOIs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(len(m.pois))
	m.pois = make(map[string]*poi.PointOfInterest)
	return count, nil
}

// GetPOI returns the stored POI with the given external id, if present.
// Test helper; not part of the Store interface.
func (m *Memory) GetPOI(externalID string) (*poi.PointOfInterest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pois[externalID]
	if !ok {
		return nil, false
	}
	clone := *p
	return &clone, true
}

// POICount returns the total number of stored POIs. Test helper.
func (m *Memory) POICount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pois)
}

// Begin returns a staged view: POI inserts are buffered and applied on
// Commit, so a failed batch leaves no partial writes behind. Batch
// updates go straight through, matching how the pipeline persists
// progress inside the transactional scope.
func (m *Memory) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{store: m}, nil
}

type memoryTx struct {
	store  *Memory
	staged []*poi.PointOfInterest
	done   bool
}

func (t *memoryTx) CreateBatch(ctx context.Context, b *poi.ImportBatch) error {
	return t.store.CreateBatch(ctx, b)
}

func (t *memoryTx) GetBatch(ctx context.Context, id uuid.UUID) (*poi.ImportBatch, error) {
	return t.store.GetBatch(ctx, id)
}

func (t *memoryTx) UpdateBatch(ctx context.Context, b *poi.ImportBatch) error {
	return t.store.UpdateBatch(ctx, b)
}

func (t *memoryTx) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	return t.store.DeleteBatch(ctx, id)
}

func (t *memoryTx) BulkInsertPOIs(_ context.Context, pois []*poi.PointOfInterest) (int64, error) {
	if t.store.BulkInsertErr != nil {
		return 0, t.store.BulkInsertErr
	}

	// Count what will insert at commit so the caller sees the same
	// duplicate accounting as the real store.
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	var inserted int64
	for _, p := range pois {
		if _, exists := t.store.pois[p.ExternalID]; exists {
			continue
		}
		staged := false
		for _, s := range t.staged {
			if s.ExternalID == p.ExternalID {
				staged = true
				break
			}
		}
		if staged {
			continue
		}
		t.staged = append(t.staged, p)
		inserted++
	}
	return inserted, nil
}

func (t *memoryTx) CountPOIsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	return t.store.CountPOIsByBatch(ctx, batchID)
}

func (t *memoryTx) ListUnratedPOIs(ctx context.Context, limit int) ([]*poi.PointOfInterest, error) {
	return t.store.ListUnratedPOIs(ctx, limit)
}

func (t *memoryTx) UpdatePOIRating(ctx context.Context, p *poi.PointOfInterest) error {
	return t.store.UpdatePOIRating(ctx, p)
}

func (t *memoryTx) ClearPOIs(ctx context.Context) (int64, error) {
	return t.store.ClearPOIs(ctx)
}

func (t *memoryTx) Begin(context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.store.BulkInsertPOIs(ctx, t.staged)
	t.staged = nil
	return err
}

func (t *memoryTx) Rollback(context.Context) error {
	t.done = true
	t.staged = nil
	return nil
}
