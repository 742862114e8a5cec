package importer

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/geopoi/importer/internal/poi"
	"github.com/geopoi/importer/internal/store"
)

func seedUnrated(t *testing.T, m *store.Memory, externalID string, ratings []float64) {
	t.Helper()
	p, err := poi.New(externalID, "Place "+externalID, "park", 10.0, 20.0, ratings, "", "f.csv", uuid.New())
	if err != nil {
		t.Fatalf("poi.New() error = %v", err)
	}
	p.AvgRating = nil
	p.RatingCount = 0
	if _, err := m.BulkInsertPOIs(context.Background(), []*poi.PointOfInterest{p}); err != nil {
		t.Fatalf("BulkInsertPOIs() error = %v", err)
	}
}

func TestRecalculateRatings(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	seedUnrated(t, m, "a", []float64{4.0, 5.0})
	seedUnrated(t, m, "b", []float64{2.0})
	seedUnrated(t, m, "c", nil) // no ratings, not part of the backlog

	updated, err := RecalculateRatings(ctx, m, nil, 1)
	if err != nil {
		t.Fatalf("RecalculateRatings() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	a, _ := m.GetPOI("a")
	if a.AvgRating == nil || *a.AvgRating != 4.5 {
		t.Errorf("a.AvgRating = %v, want 4.5", a.AvgRating)
	}
	if a.RatingCount != 2 {
		t.Errorf("a.RatingCount = %d, want 2", a.RatingCount)
	}

	c, _ := m.GetPOI("c")
	if c.AvgRating != nil {
		t.Errorf("c.AvgRating = %v, want nil", *c.AvgRating)
	}

	// A second pass finds nothing left to do.
	updated, err = RecalculateRatings(ctx, m, nil, 10)
	if err != nil {
		t.Fatalf("RecalculateRatings() second pass error = %v", err)
	}
	if updated != 0 {
		t.Errorf("second pass updated = %d, want 0", updated)
	}
}
