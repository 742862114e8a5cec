// Command importer ingests Point-of-Interest data from CSV, JSON, or
// XML files into the store, tracking each file's run as an ImportBatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/geopoi/importer/internal/cache"
	"github.com/geopoi/importer/internal/config"
	"github.com/geopoi/importer/internal/importer"
	"github.com/geopoi/importer/internal/logging"
	"github.com/geopoi/importer/internal/poi"
	"github.com/geopoi/importer/internal/store"
)

func main() {
	batchSize := flag.Int("batch-size", 0, "records per transactional write (default from config)")
	runAsync := flag.Bool("async", false, "queue files for asynchronous processing")
	dryRun := flag.Bool("dry-run", false, "parse and count without saving data")
	clear := flag.Bool("clear", false, "delete all existing POI data before import")
	recalculate := flag.Bool("recalculate", false, "recalculate avg ratings for POIs missing them, then exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file [file ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, flag.Args(), options{
		batchSize:   *batchSize,
		async:       *runAsync,
		dryRun:      *dryRun,
		clear:       *clear,
		recalculate: *recalculate,
	}); err != nil {
		slog.Error("import failed", "error", err)
		os.Exit(1)
	}
}

type options struct {
	batchSize   int
	async       bool
	dryRun      bool
	clear       bool
	recalculate bool
}

func run(cfg *config.Config, files []string, opts options) error {
	if !opts.recalculate && len(files) == 0 {
		return fmt.Errorf("no input files given")
	}

	// Validate all files before touching the database
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("file not found: %s", path)
		}
		if _, ok := poi.FileTypeFromPath(path); !ok {
			return fmt.Errorf("unsupported file type: %s", path)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	st := store.NewPostgres(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	inval := cache.NewTTL(cfg.Cache.TTL)
	pipeline := importer.New(st, inval)

	if opts.recalculate {
		updated, err := importer.RecalculateRatings(ctx, st, inval, cfg.Import.BatchSize)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %d POIs with calculated ratings\n", updated)
		return nil
	}

	if opts.clear && !opts.dryRun {
		count, err := st.ClearPOIs(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d existing POI records\n", count)
	}

	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = cfg.Import.BatchSize
	}
	runOpts := importer.Options{
		BatchSize:             batchSize,
		DryRun:                opts.dryRun,
		MinEncodingConfidence: cfg.Import.EncodingConfidence,
	}

	if opts.async {
		return runQueued(ctx, cfg, pipeline, st, files, runOpts)
	}
	return runSync(ctx, cfg, pipeline, st, files, runOpts)
}

func runSync(ctx context.Context, cfg *config.Config, pipeline *importer.Pipeline, st store.Store, files []string, opts importer.Options) error {
	start := time.Now()
	totalProcessed := 0
	totalFailed := 0

	for _, path := range files {
		fmt.Printf("\nProcessing: %s\n", path)

		batch, err := createBatch(ctx, st, cfg, path)
		if err != nil {
			return err
		}

		summary, err := pipeline.Run(ctx, batch.ID, path, opts)
		if err != nil {
			fmt.Printf("Error processing %s: %v\n", path, err)
			continue
		}

		totalProcessed += summary.Processed
		totalFailed += summary.Failed
		fmt.Printf("Imported %d records (%d failed, %d skipped) from %s\n",
			summary.Processed, summary.Failed, summary.Skipped, batch.FileName)
	}

	fmt.Printf("\nImport complete!\nTotal records processed: %d\nTotal records failed: %d\nTime taken: %s\n",
		totalProcessed, totalFailed, importer.FormatDuration(time.Since(start)))
	return nil
}

func runQueued(ctx context.Context, cfg *config.Config, pipeline *importer.Pipeline, st store.Store, files []string, opts importer.Options) error {
	queue := importer.NewQueue(ctx, pipeline, st, cfg.Queue.Workers, cfg.Queue.Depth)

	queued := 0
	for _, path := range files {
		batch, err := createBatch(ctx, st, cfg, path)
		if err != nil {
			queue.Close()
			return err
		}

		jobID, err := queue.Enqueue(ctx, batch.ID, path, opts)
		if err != nil {
			queue.Close()
			return err
		}
		queued++
		fmt.Printf("Queued: %s (Job ID: %s)\n", batch.FileName, jobID)
	}

	fmt.Printf("\n%d file(s) queued for processing, waiting for completion...\n", queued)
	queue.Close()
	return nil
}

func createBatch(ctx context.Context, st store.Store, cfg *config.Config, path string) (*poi.ImportBatch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > cfg.Import.MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size of %d bytes", path, cfg.Import.MaxFileSize)
	}

	fileType, _ := poi.FileTypeFromPath(path)
	batch := poi.NewBatch(path, fileType, info.Size())
	if err := st.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}
