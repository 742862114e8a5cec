// Package importer drives the ingestion of one POI file end to end: it
// selects the parser for the batch's file type, buffers normalized
// records into transactional bulk writes, keeps the ImportBatch record's
// counters and error log current as batches commit, and finalizes the
// batch exactly once.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/geopoi/importer/internal/cache"
	"github.com/geopoi/importer/internal/logging"
	"github.com/geopoi/importer/internal/parser"
	"github.com/geopoi/importer/internal/poi"
	"github.com/geopoi/importer/internal/store"
)

// Options control one pipeline run.
type Options struct {
	// BatchSize is the number of records buffered per transactional
	// write. Non-positive values fall back to parser.DefaultBatchSize.
	BatchSize int

	// MinEncodingConfidence is passed to the parsers' encoding
	// detection. Zero uses encoding.DefaultConfidence.
	MinEncodingConfidence float64

	// DryRun parses and counts without writing POI data. The batch
	// record is still tracked and finalized.
	DryRun bool
}

// Summary is the result of one completed pipeline run.
type Summary struct {
	Status    poi.Status `json:"status"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	BatchID   uuid.UUID  `json:"batch_id"`
}

// Pipeline ingests files into the store. It is stateless between runs
// and re-entrant: the same Pipeline may serve synchronous calls and
// queued jobs concurrently, as long as each ImportBatch is driven by
// only one run at a time.
type Pipeline struct {
	store store.Store
	inval cache.Invalidator
}

// New creates a pipeline. A nil invalidator disables cache invalidation.
func New(s store.Store, inval cache.Invalidator) *Pipeline {
	if inval == nil {
		inval = cache.Noop{}
	}
	return &Pipeline{store: s, inval: inval}
}

// Run processes the file for an existing ImportBatch.
//
// Record-level problems are logged onto the batch and skipped.
// A failed transactional write counts every record of that write as
// failed and processing continues with the next batch. File-level
// problems (missing batch, unsupported type, unreadable file, invalid
// root) mark the batch failed and propagate.
func (p *Pipeline) Run(ctx context.Context, batchID uuid.UUID, filePath string, opts Options) (*Summary, error) {
	batch, err := p.store.GetBatch(ctx, batchID)
	if err != nil {
		slog.Error("import batch not found", "batch_id", batchID, "error", err)
		return nil, err
	}

	log := logging.ForImport(batch.ID.String(), batch.FileName, string(batch.FileType))
	log.Info("starting import", "path", filePath, "batch_size", opts.BatchSize)

	batch.Start()
	if err := p.store.UpdateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("mark batch processing: %w", err)
	}

	prs, err := parser.ForType(batch.FileType, filePath, parser.Options{
		BatchSize:             opts.BatchSize,
		MinEncodingConfidence: opts.MinEncodingConfidence,
	})
	if err != nil {
		p.fail(ctx, batch, log, err)
		return nil, err
	}
	defer prs.Close()

	var tally counters
	batchNum := 0

	for {
		if err := ctx.Err(); err != nil {
			p.fail(ctx, batch, log, fmt.Errorf("import cancelled: %w", err))
			return nil, err
		}

		records, err := prs.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.fail(ctx, batch, log, err)
			return nil, err
		}

		batchNum++

		if opts.DryRun {
			tally.processed += len(records)
			log.Info("dry run, skipping write", "batch", batchNum, "records", len(records))
			continue
		}

		submitted, err := p.writeBatch(ctx, batch, records, &tally)
		if err != nil {
			// The transaction rolled back: every record submitted to it
			// is failed, recorded as one summary error. Records that
			// already failed construction are not re-counted.
			tally.failed += submitted
			batch.AddError(fmt.Sprintf("batch %d error: %v", batchNum, err), nil)
			p.syncCounters(ctx, batch, tally, log)
			log.Error("batch processing error", "batch", batchNum, "error", err)
			continue
		}

		p.inval.InvalidatePOIs(ctx)
		log.Info("batch committed",
			"batch", batchNum,
			"processed", tally.processed,
			"failed", tally.failed,
			"skipped", tally.skipped,
		)
	}

	// Per-record parser errors are part of the batch's durable record.
	for _, re := range prs.Errors() {
		tally.failed++
		batch.AddError(fmt.Sprintf("%s: %s", re.Where, re.Message), re.Data)
	}

	batch.RecordsProcessed = tally.processed
	batch.RecordsFailed = tally.failed
	batch.RecordsSkipped = tally.skipped
	batch.MarkCompleted()
	// Dry runs skip POI writes but still finalize the batch record, so
	// it never sits in processing forever.
	if err := p.store.UpdateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("finalize batch: %w", err)
	}
	if !opts.DryRun {
		p.inval.InvalidatePOIs(ctx)
	}

	log.Info("import complete",
		"status", batch.Status,
		"processed", tally.processed,
		"failed", tally.failed,
		"skipped", tally.skipped,
		"duration", batch.ProcessingTime,
	)

	return &Summary{
		Status:    batch.Status,
		Processed: tally.processed,
		Failed:    tally.failed,
		Skipped:   tally.skipped,
		BatchID:   batch.ID,
	}, nil
}

type counters struct {
	processed int
	failed    int
	skipped   int
}

// writeBatch persists one batch of records inside a transaction.
// Construction failures are recorded per record; duplicate external_ids
// are absorbed by the conflict-ignoring bulk write and counted as
// skipped. The transaction either fully commits or leaves nothing.
//
// Returns how many records were submitted to the transaction, so the
// caller can count exactly those as failed when it rolls back. The
// tally only advances after a successful commit.
func (p *Pipeline) writeBatch(ctx context.Context, batch *poi.ImportBatch, records []parser.Record, tally *counters) (int, error) {
	pois := make([]*poi.PointOfInterest, 0, len(records))
	for _, rec := range records {
		pt, err := poi.New(
			rec.ExternalID, rec.Name, rec.Category,
			rec.Latitude, rec.Longitude, rec.Ratings,
			rec.Description, batch.FileName, batch.ID,
		)
		if err != nil {
			tally.failed++
			batch.AddError(err.Error(), recordData(rec))
			continue
		}
		pois = append(pois, pt)
	}
	submitted := len(pois)

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return submitted, err
	}
	defer tx.Rollback(ctx)

	inserted, err := tx.BulkInsertPOIs(ctx, pois)
	if err != nil {
		return submitted, err
	}

	// Persist live progress inside the same transaction so a consumer
	// watching the batch record sees counters advance as batches land.
	batch.RecordsProcessed = tally.processed + int(inserted)
	batch.RecordsFailed = tally.failed
	batch.RecordsSkipped = tally.skipped + submitted - int(inserted)
	if err := tx.UpdateBatch(ctx, batch); err != nil {
		return submitted, err
	}

	if err := tx.Commit(ctx); err != nil {
		return submitted, err
	}

	tally.processed += int(inserted)
	tally.skipped += submitted - int(inserted)
	return submitted, nil
}

// fail finalizes the batch on the fatal path and persists it. The run's
// error is appended to the batch log so the failure is durable even
// though it also propagates to the caller.
func (p *Pipeline) fail(ctx context.Context, batch *poi.ImportBatch, log *slog.Logger, err error) {
	log.Error("import failed", "error", err)
	batch.MarkFailed(fmt.Errorf("import failed: %w", err))
	if uerr := p.store.UpdateBatch(ctx, batch); uerr != nil {
		log.Error("could not persist failed batch", "error", uerr)
	}
}

// syncCounters persists counter state after a failed batch write, where
// no transaction is open anymore.
func (p *Pipeline) syncCounters(ctx context.Context, batch *poi.ImportBatch, tally counters, log *slog.Logger) {
	batch.RecordsProcessed = tally.processed
	batch.RecordsFailed = tally.failed
	batch.RecordsSkipped = tally.skipped
	if err := p.store.UpdateBatch(ctx, batch); err != nil {
		log.Error("could not persist batch counters", "error", err)
	}
}

func recordData(rec parser.Record) map[string]any {
	return map[string]any{
		"id":        rec.ExternalID,
		"name":      rec.Name,
		"category":  rec.Category,
		"latitude":  rec.Latitude,
		"longitude": rec.Longitude,
		"ratings":   rec.Ratings,
	}
}
