package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// RecordStore writes job and document state at pipeline checkpoints. Each call
// is an independent write; there is no cross-call transaction.
type RecordStore struct {
	Jobs      JobRepository
	Documents DocumentRepository
	log       *slog.Logger
}

func NewRecordStore(db *DB, log *slog.Logger) *RecordStore {
	if log == nil {
		log = slog.Default()
	}
	return &RecordStore{
		Jobs:      NewJobRepository(db, log),
		Documents: NewDocumentRepository(db, log),
		log:       log,
	}
}

// CreateSubmission records a PENDING job and its processing document.
func (s *RecordStore) CreateSubmission(ctx context.Context, job *entity.Job, doc *entity.Document) error {
	if err := s.Jobs.Create(ctx, job); err != nil {
		return err
	}
	doc.JobID = job.ID
	if doc.Status == "" {
		doc.Status = constants.DocumentStatusProcessing
	}
	return s.Documents.Create(ctx, doc)
}

func (s *RecordStore) GetDocument(ctx context.Context, id string) (*entity.Document, error) {
	return s.Documents.Get(ctx, id)
}

// SaveConversion checkpoints the normalized text before extraction.
func (s *RecordStore) SaveConversion(ctx context.Context, jobID, text string) error {
	return s.Jobs.MarkConverted(ctx, jobID, text)
}

func (s *RecordStore) CompleteDocument(ctx context.Context, jobID string, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	empty := ""
	return errors.Join(
		s.Jobs.Complete(ctx, jobID),
		s.Documents.UpdateByJobID(ctx, jobID, DocumentUpdate{
			Status:           constants.DocumentStatusCompleted,
			ProcessingResult: data,
			ErrorMessage:     &empty,
		}),
	)
}

func (s *RecordStore) FailDocument(ctx context.Context, jobID, message string) error {
	return errors.Join(
		s.Jobs.Fail(ctx, jobID, message),
		s.Documents.UpdateByJobID(ctx, jobID, DocumentUpdate{
			Status:       constants.DocumentStatusFailed,
			ErrorMessage: &message,
		}),
	)
}

// LoadForReprocess returns the stored normalized text, document type and job id
// of a document. Unknown ids are a NotFoundError.
func (s *RecordStore) LoadForReprocess(ctx context.Context, documentID string) (string, constants.DocumentType, string, error) {
	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		return "", "", "", err
	}
	job, err := s.Jobs.Get(ctx, doc.JobID)
	if err != nil {
		return "", "", "", err
	}
	if job.Result == "" {
		return "", "", "", common.NewValidationError("document_id", "document has no converted text to reprocess")
	}
	return job.Result, job.DocumentType, job.ID, nil
}

// SaveReprocess replaces the job's fields and the document's metadata and result.
func (s *RecordStore) SaveReprocess(ctx context.Context, documentID, jobID string, fields []entity.SchemaField, data map[string]string) error {
	if err := s.Jobs.UpdateFields(ctx, jobID, fields); err != nil {
		return err
	}
	if data == nil {
		data = map[string]string{}
	}
	empty := ""
	err := errors.Join(
		s.Jobs.Complete(ctx, jobID),
		s.Documents.UpdateByJobID(ctx, jobID, DocumentUpdate{
			Status:           constants.DocumentStatusCompleted,
			ProcessingResult: data,
			ErrorMessage:     &empty,
			Metadata:         nonNilFields(fields),
		}),
	)
	if err == nil {
		s.log.Info("document reprocessed", "document_id", documentID, "job_id", jobID, "fields", len(fields))
	}
	return err
}

// GetArtifact implements llm.ArtifactStore on the job's artifact_ref column.
func (s *RecordStore) GetArtifact(ctx context.Context, documentID string) (string, error) {
	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	job, err := s.Jobs.Get(ctx, doc.JobID)
	if err != nil {
		return "", err
	}
	if job.ArtifactRef == "" {
		return "", llm.ErrArtifactMiss
	}
	return job.ArtifactRef, nil
}

func (s *RecordStore) PutArtifact(ctx context.Context, documentID, ref string) error {
	doc, err := s.Documents.Get(ctx, documentID)
	if err != nil {
		return err
	}
	return s.Jobs.SetArtifactRef(ctx, doc.JobID, ref)
}
