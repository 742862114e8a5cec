package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geopoi/importer/internal/poi"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the subset of pgx operations the store needs.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgres creates a Store backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, db: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Begin opens a transaction-scoped view of the store.
func (s *Postgres) Begin(ctx context.Context) (Tx, error) {
	if s.pool == nil {
		return nil, errors.New("nested transactions are not supported")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{Postgres: Postgres{db: tx}, tx: tx}, nil
}

// pgTx is a Postgres store bound to one open transaction.
type pgTx struct {
	Postgres
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

/* ----------------------------------------
	Import batches
---------------------------------------- */

func (s *Postgres) CreateBatch(ctx context.Context, b *poi.ImportBatch) error {
	errLog, err := json.Marshal(b.ErrorLog)
	if err != nil {
		return fmt.Errorf("marshal error log: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO import_batches
			(id, file_path, file_name, file_type, file_size, status,
			 started_at, records_processed, records_failed, records_skipped,
			 error_log, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.FilePath, b.FileName, string(b.FileType), b.FileSize,
		string(b.Status), b.StartedAt, b.RecordsProcessed, b.RecordsFailed,
		b.RecordsSkipped, errLog, b.JobID,
	)
	if err != nil {
		return fmt.Errorf("insert import batch: %w", err)
	}
	return nil
}

func (s *Postgres) GetBatch(ctx context.Context, id uuid.UUID) (*poi.ImportBatch, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, file_path, file_name, file_type, file_size, status,
		       started_at, completed_at, processing_time_ms,
		       records_processed, records_failed, records_skipped,
		       error_log, job_id
		FROM import_batches
		WHERE id = $1`, id)

	var (
		b        poi.ImportBatch
		fileType string
		status   string
		timingMs *int64
		errLog   []byte
	)
	err := row.Scan(
		&b.ID, &b.FilePath, &b.FileName, &fileType, &b.FileSize, &status,
		&b.StartedAt, &b.CompletedAt, &timingMs,
		&b.RecordsProcessed, &b.RecordsFailed, &b.RecordsSkipped,
		&errLog, &b.JobID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import batch: %w", err)
	}

	b.FileType = poi.FileType(fileType)
	b.Status = poi.Status(status)
	if timingMs != nil {
		d := time.Duration(*timingMs) * time.Millisecond
		b.ProcessingTime = &d
	}
	if len(errLog) > 0 {
		if err := json.Unmarshal(errLog, &b.ErrorLog); err != nil {
			return nil, fmt.Errorf("unmarshal error log: %w", err)
		}
	}

	return &b, nil
}

func (s *Postgres) UpdateBatch(ctx context.Context, b *poi.ImportBatch) error {
	errLog, err := json.Marshal(b.ErrorLog)
	if err != nil {
		return fmt.Errorf("marshal error log: %w", err)
	}

	var timingMs *int64
	if b.ProcessingTime != nil {
		ms := b.ProcessingTime.Milliseconds()
		timingMs = &ms
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE import_batches
		SET status = $2, completed_at = $3, processing_time_ms = $4,
		    records_processed = $5, records_failed = $6, records_skipped = $7,
		    error_log = $8, job_id = $9
		WHERE id = $1`,
		b.ID, string(b.Status), b.CompletedAt, timingMs,
		b.RecordsProcessed, b.RecordsFailed, b.RecordsSkipped,
		errLog, b.JobID,
	)
	if err != nil {
		return fmt.Errorf("update import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (s *Postgres) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	// POI rows go with the batch via ON DELETE CASCADE.
	tag, err := s.db.Exec(ctx, `DELETE FROM import_batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

/* ----------------------------------------
	Points of interest
---------------------------------------- */

// poiColumns are the insert columns for bulk writes, in placeholder order.
var poiColumns = []string{
	"external_id", "name", "category", "latitude", "longitude",
	"ratings", "avg_rating", "rating_count", "description",
	"source_file", "batch_id",
}

func (s *Postgres) BulkInsertPOIs(ctx context.Context, pois []*poi.PointOfInterest) (int64, error) {
	if len(pois) == 0 {
		return 0, nil
	}

	// COPY cannot skip conflicting rows, so bulk writes use a multi-row
	// INSERT ... ON CONFLICT DO NOTHING. RowsAffected exposes how many
	// rows were actually written, which lets the pipeline count
	// duplicates as skipped instead of losing them silently.
	var (
		sb   strings.Builder
		args = make([]any, 0, len(pois)*len(poiColumns))
	)
	sb.WriteString("INSERT INTO points_of_interest (")
	sb.WriteString(strings.Join(poiColumns, ", "))
	sb.WriteString(") VALUES ")

	for i, p := range pois {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range poiColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+j+1)
		}
		sb.WriteByte(')')
		args = append(args,
			p.ExternalID, p.Name, p.Category, p.Latitude, p.Longitude,
			p.Ratings, p.AvgRating, p.RatingCount, p.Description,
			p.SourceFile, p.BatchID,
		)
	}
	sb.WriteString(" ON CONFLICT (external_id) DO NOTHING")

	tag, err := s.db.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk insert pois: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) CountPOIsByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM points_of_interest WHERE batch_id = $1`, batchID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pois by batch: %w", err)
	}
	return count, nil
}

func (s *Postgres) ListUnratedPOIs(ctx context.Context, limit int) ([]*poi.PointOfInterest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, external_id, ratings
		FROM points_of_interest
		WHERE cardinality(ratings) > 0 AND avg_rating IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unrated pois: %w", err)
	}
	defer rows.Close()

	var out []*poi.PointOfInterest
	for rows.Next() {
		var p poi.PointOfInterest
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.Ratings); err != nil {
			return nil, fmt.Errorf("scan poi: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (s *Postgres) UpdatePOIRating(ctx context.Context, p *poi.PointOfInterest) error {
	_, err := s.db.Exec(ctx, `
		UPDATE points_of_interest
		SET avg_rating = $2, rating_count = $3, updated_at = now()
		WHERE id = $1`,
		p.ID, p.AvgRating, p.RatingCount,
	)
	if err != nil {
		return fmt.Errorf("update poi rating: %w", err)
	}
	return nil
}

func (s *Postgres) ClearPOIs(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM points_of_interest`)
	if err != nil {
		return 0, fmt.Errorf("clear pois: %w", err)
	}
	return tag.RowsAffected(), nil
}
