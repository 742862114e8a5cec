package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geopoi/importer/internal/cache"
	"github.com/geopoi/importer/internal/store"
)

// RecalculateRatings backfills avg_rating and rating_count for POIs
// that have ratings but no computed average, in batches of batchSize.
// Returns the number of POIs updated.
func RecalculateRatings(ctx context.Context, s store.Store, inval cache.Invalidator, batchSize int) (int, error) {
	if inval == nil {
		inval = cache.Noop{}
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	updated := 0
	for {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		pois, err := s.ListUnratedPOIs(ctx, batchSize)
		if err != nil {
			return updated, err
		}
		if len(pois) == 0 {
			break
		}

		tx, err := s.Begin(ctx)
		if err != nil {
			return updated, err
		}

		for _, p := range pois {
			p.RecalculateRating()
			if err := tx.UpdatePOIRating(ctx, p); err != nil {
				tx.Rollback(ctx)
				return updated, fmt.Errorf("update rating for %q: %w", p.ExternalID, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return updated, err
		}
		updated += len(pois)

		slog.Info("recalculated ratings", "updated", updated)
	}

	if updated > 0 {
		inval.InvalidatePOIs(ctx)
	}
	return updated, nil
}
