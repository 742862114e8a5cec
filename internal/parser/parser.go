// Package parser provides streaming parsers for the three supported POI
// file formats. All three converge on one contract: a lazy, single-pass
// sequence of normalized-record batches read with bounded memory, so file
// size never dictates peak memory.
//
// Per-record problems (missing fields, bad coordinates, unparsable
// ratings) never abort a file: the record is logged, recorded in the
// parser's error list, and skipped. Only file-level problems (unreadable
// file, invalid root structure) surface as errors from Next.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/geopoi/importer/internal/poi"
)

// DefaultBatchSize is used when a non-positive batch size is requested.
const DefaultBatchSize = 1000

var (
	// ErrUnsupportedFileType is returned when no parser matches a file's
	// extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrInvalidRoot is returned when a JSON document's root is not an
	// array.
	ErrInvalidRoot = errors.New("expected JSON array at root level")
)

// Record is the canonical normalized shape all parsers converge to.
type Record struct {
	ExternalID  string
	Name        string
	Category    string
	Latitude    float64
	Longitude   float64
	Ratings     []float64
	Description string
}

// RecordError describes one skipped source record.
type RecordError struct {
	// Where locates the record in the source file ("row 7", "item abc").
	Where string
	// Message is the reason the record was skipped.
	Message string
	// Data is the offending raw record, when available.
	Data map[string]any
}

// Parser is the common contract for all format parsers.
//
// A parser is single-pass: once Next returns io.EOF the sequence is
// exhausted and a fresh parser is required to re-read the file. Batches
// are produced lazily; at most one batch of records is held at a time.
type Parser interface {
	// Next returns the next non-empty batch of normalized records.
	// The final batch may be shorter than the configured batch size.
	// It returns io.EOF once input is exhausted; an input producing
	// zero valid records yields io.EOF immediately.
	Next() ([]Record, error)

	// Errors returns the per-record errors accumulated so far.
	Errors() []RecordError

	// Processed returns the number of valid records emitted so far.
	Processed() int

	// Close releases the underlying file. Safe to call more than once.
	Close() error
}

// Options configure a parser instance.
type Options struct {
	// BatchSize is the number of records per emitted batch.
	// Non-positive values fall back to DefaultBatchSize.
	BatchSize int

	// MinEncodingConfidence is the detection confidence below which the
	// encoding detector falls back to UTF-8. Zero uses
	// encoding.DefaultConfidence. Ignored by the XML parser, which
	// honors the document's declared encoding instead.
	MinEncodingConfidence float64
}

// New selects a parser by the path's extension and opens the file.
// Returns ErrUnsupportedFileType for unrecognized extensions.
func New(path string, opts Options) (Parser, error) {
	ft, ok := poi.FileTypeFromPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(path))
	}
	return ForType(ft, path, opts)
}

// ForType constructs the parser for an already-determined file type.
func ForType(ft poi.FileType, path string, opts Options) (Parser, error) {
	switch ft {
	case poi.FileTypeCSV:
		return NewCSV(path, opts)
	case poi.FileTypeJSON:
		return NewJSON(path, opts)
	case poi.FileTypeXML:
		return NewXML(path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
	}
}

// base carries the state shared by all parsers: counters, the error
// list, and the validate/normalize/batch flow.
type base struct {
	path      string
	batchSize int
	processed int
	errs      []RecordError
	log       *slog.Logger
}

func newBase(path string, batchSize int, format string) base {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return base{
		path:      path,
		batchSize: batchSize,
		log: slog.Default().With(
			"format", format,
			"file", filepath.Base(path),
		),
	}
}

func (b *base) Errors() []RecordError { return b.errs }
func (b *base) Processed() int        { return b.processed }

func (b *base) recordError(where, message string, data map[string]any) {
	b.log.Error("error processing record", "where", where, "error", message)
	b.errs = append(b.errs, RecordError{Where: where, Message: message, Data: data})
}

// accept validates and normalizes one raw record. Invalid records are
// logged and skipped; normalization errors (uncoercible native rating
// lists) are recorded in the error list. Returns the normalized record
// and whether it should be appended to the current batch.
func (b *base) accept(raw map[string]any, where string) (Record, bool) {
	if !Validate(raw, b.log) {
		b.log.Warn("skipping invalid record", "where", where)
		return Record{}, false
	}

	rec, err := Normalize(raw)
	if err != nil {
		b.recordError(where, err.Error(), raw)
		return Record{}, false
	}

	b.processed++
	return rec, true
}
