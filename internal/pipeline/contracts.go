package pipeline

import (
	"context"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Stage names logged as pipeline.stage events.
const (
	StageSubmitted   = "submitted"
	StageConverting  = "converting"
	StageFallingBack = "falling_back"
	StageExtracting  = "extracting"
	StageFinalized   = "finalized"
)

// TaskUpdater is the slice of the task store the orchestrator writes to.
type TaskUpdater interface {
	Update(id string, status constants.TaskStatus, result *entity.TaskResult, errMsg string)
}

// FallbackConverter re-reads a document from its public URL.
type FallbackConverter interface {
	Convert(ctx context.Context, documentURL string) (string, error)
}

// RecordSink receives checkpoint writes for a job and its document.
type RecordSink interface {
	SaveConversion(ctx context.Context, jobID, text string) error
	CompleteDocument(ctx context.Context, jobID string, data map[string]string) error
	FailDocument(ctx context.Context, jobID, message string) error
}

// ReprocessStore loads and saves the records a reprocess pass works on.
type ReprocessStore interface {
	LoadForReprocess(ctx context.Context, documentID string) (text string, docType constants.DocumentType, jobID string, err error)
	SaveReprocess(ctx context.Context, documentID, jobID string, fields []entity.SchemaField, data map[string]string) error
	FailDocument(ctx context.Context, jobID, message string) error
}

// Cleaner releases transient local files.
type Cleaner interface {
	Cleanup(path string) error
}

// Submission is one document handed to the orchestrator.
type Submission struct {
	TaskID      string
	JobID       string
	DocumentID  string
	LocalPath   string // staged copy, removed after the run
	FileName    string
	DocumentURL string // public URL; empty disables fallback
	Schema      entity.ExtractionSchema
}

// ReprocessRequest re-runs extraction for a stored document with new fields.
type ReprocessRequest struct {
	DocumentID string
	Fields     []entity.SchemaField
}
