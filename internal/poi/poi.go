// Package poi defines the persisted entities of the import pipeline: the
// PointOfInterest records themselves and the ImportBatch that tracks one
// file's ingestion run.
package poi

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate is the shared validator instance. validator.Validate caches
// struct metadata, so a single instance is reused for all records.
var validate = validator.New(validator.WithRequiredStructEnabled())

// FileType identifies a supported input format.
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeJSON FileType = "json"
	FileTypeXML  FileType = "xml"
)

// Valid reports whether t is one of the supported file types.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeCSV, FileTypeJSON, FileTypeXML:
		return true
	}
	return false
}

// FileTypeFromPath determines the file type from the path's extension.
// Returns false for unsupported extensions.
func FileTypeFromPath(path string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FileTypeCSV, true
	case ".json":
		return FileTypeJSON, true
	case ".xml":
		return FileTypeXML, true
	}
	return "", false
}

// PointOfInterest is a named, categorized, geolocated entity imported from
// a source file. Each POI is owned by exactly one ImportBatch and is
// uniquely keyed by ExternalID across the whole store.
type PointOfInterest struct {
	ID          int64     `validate:"-"`
	ExternalID  string    `validate:"required,max=255"`
	Name        string    `validate:"required,max=500"`
	Category    string    `validate:"required,max=100"`
	Latitude    float64   `validate:"gte=-90,lte=90"`
	Longitude   float64   `validate:"gte=-180,lte=180"`
	Ratings     []float64 `validate:"dive,gte=0,lte=5"`
	AvgRating   *float64  `validate:"omitempty,gte=0,lte=5"`
	RatingCount int       `validate:"gte=0"`
	Description string
	SourceFile  string
	BatchID     uuid.UUID `validate:"required"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New constructs a PointOfInterest, deriving AvgRating and RatingCount
// from the ratings slice, and validates the result. AvgRating and
// RatingCount are never accepted from callers so they are always
// consistent with Ratings at rest.
func New(externalID, name, category string, lat, lon float64, ratings []float64, description, sourceFile string, batchID uuid.UUID) (*PointOfInterest, error) {
	p := &PointOfInterest{
		ExternalID:  externalID,
		Name:        name,
		Category:    category,
		Latitude:    lat,
		Longitude:   lon,
		Ratings:     ratings,
		Description: description,
		SourceFile:  sourceFile,
		BatchID:     batchID,
	}
	p.RecalculateRating()

	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid POI %q: %w", externalID, err)
	}

	return p, nil
}

// RecalculateRating recomputes AvgRating and RatingCount from Ratings.
// An empty ratings slice yields a nil average and a zero count.
func (p *PointOfInterest) RecalculateRating() {
	if len(p.Ratings) == 0 {
		p.AvgRating = nil
		p.RatingCount = 0
		return
	}

	var sum float64
	for _, r := range p.Ratings {
		sum += r
	}
	avg := sum / float64(len(p.Ratings))
	p.AvgRating = &avg
	p.RatingCount = len(p.Ratings)
}
