package poi

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an ImportBatch.
//
// Valid transitions: pending -> processing -> {completed | partial | failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// ImportError is one entry in a batch's append-only error log.
type ImportError struct {
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
	Record    map[string]any `json:"record,omitempty"`
}

// ImportBatch tracks the ingestion run of a single file. It is created
// pending, mutated in place by the pipeline as batches commit, and
// finalized exactly once with a terminal status.
//
// A batch is mutated only by the single pipeline instance driving its
// file; no concurrent writers are supported.
type ImportBatch struct {
	ID       uuid.UUID
	FilePath string
	FileName string
	FileType FileType
	FileSize int64

	Status         Status
	StartedAt      time.Time
	CompletedAt    *time.Time
	ProcessingTime *time.Duration

	RecordsProcessed int
	RecordsFailed    int
	RecordsSkipped   int

	ErrorLog []ImportError

	// JobID is the handle of the async job processing this batch, if any.
	JobID string
}

// NewBatch creates a pending ImportBatch for the given file.
func NewBatch(filePath string, fileType FileType, fileSize int64) *ImportBatch {
	return &ImportBatch{
		ID:        uuid.New(),
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		FileType:  fileType,
		FileSize:  fileSize,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
}

// Start transitions the batch from pending to processing.
func (b *ImportBatch) Start() {
	b.Status = StatusProcessing
}

// AddError appends an entry to the error log. The record, when present,
// is the raw source data that caused the failure.
func (b *ImportBatch) AddError(message string, record map[string]any) {
	b.ErrorLog = append(b.ErrorLog, ImportError{
		Timestamp: time.Now(),
		Message:   message,
		Record:    record,
	})
}

// MarkCompleted finalizes the batch after normal parser exhaustion: it
// sets CompletedAt and ProcessingTime and chooses completed or partial
// based on the failure counter. Call at most once per run.
func (b *ImportBatch) MarkCompleted() {
	b.finalizeTiming()
	if b.RecordsFailed > 0 {
		b.Status = StatusPartial
	} else {
		b.Status = StatusCompleted
	}
}

// MarkFailed finalizes the batch after a fatal error. The error message
// is appended to the log. Failed batches get CompletedAt and
// ProcessingTime too, so timing is recorded on every terminal path.
func (b *ImportBatch) MarkFailed(err error) {
	if err != nil {
		b.AddError(err.Error(), nil)
	}
	b.finalizeTiming()
	b.Status = StatusFailed
}

func (b *ImportBatch) finalizeTiming() {
	now := time.Now()
	elapsed := now.Sub(b.StartedAt)
	b.CompletedAt = &now
	b.ProcessingTime = &elapsed
}
