package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/storage"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

// FileStore stages and uploads submitted files.
type FileStore interface {
	StageTemp(fileName string, r io.Reader) (string, int64, error)
	Upload(ctx context.Context, userID, fileName string, r io.Reader) (storage.Object, error)
	Cleanup(path string) error
}

// Records creates and reads the durable job and document rows.
type Records interface {
	CreateSubmission(ctx context.Context, job *entity.Job, doc *entity.Document) error
	GetDocument(ctx context.Context, id string) (*entity.Document, error)
}

// Service handles submission business logic.
type Service struct {
	tasks   tasks.Store
	files   FileStore
	records Records
	queue   async.Queue
	meta    *MetadataParser
	logger  *slog.Logger
}

// NewService creates a new ingest service.
func NewService(ts tasks.Store, files FileStore, records Records, q async.Queue, meta *MetadataParser, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: ts, files: files, records: records, queue: q, meta: meta, logger: logger}
}

// SubmitRequest is one uploaded document plus its raw metadata JSON.
type SubmitRequest struct {
	UserID      string
	FileName    string
	ContentType string
	Content     io.Reader
	Metadata    []byte
}

// SubmitResult carries the polling handle and the created document row.
type SubmitResult struct {
	TaskID   string
	Document *entity.Document
}

// Submit validates, records and schedules a document. Validation failures
// return before any task exists.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	schema, err := s.meta.Parse(req.Metadata)
	if err != nil {
		s.logger.Warn("ingest.submit.invalid_metadata", "user_id", req.UserID, "error", err)
		return SubmitResult{}, err
	}
	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if req.Content == nil || fileName == "" || fileName == "." {
		return SubmitResult{}, common.NewValidationError("file", "is required")
	}
	if !constants.IsAllowedFile(fileName) {
		return SubmitResult{}, common.NewValidationError("file", "unsupported file type; allowed: pdf, png, jpg, jpeg")
	}

	taskID := s.tasks.Create()
	log := s.logger.With("task_id", taskID, "user_id", req.UserID, "file_name", fileName)
	log.Info("ingest.submit.start", "document_type", schema.DocumentType, "fields", len(schema.Fields))

	staged, size, err := s.files.StageTemp(fileName, req.Content)
	if err != nil {
		return SubmitResult{}, s.abort(log, taskID, "", err)
	}

	obj, err := s.uploadStaged(ctx, req.UserID, fileName, staged)
	if err != nil {
		return SubmitResult{}, s.abort(log, taskID, staged, err)
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = obj.ContentType
	}
	job := &entity.Job{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		Fields:       schema.Fields,
		DocumentType: schema.DocumentType,
		Status:       constants.JobStatusPending,
	}
	doc := &entity.Document{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		FileName:     fileName,
		FilePath:     obj.URL,
		FileSize:     size,
		FileType:     contentType,
		Status:       constants.DocumentStatusProcessing,
		DocumentType: schema.DocumentType,
		Metadata:     schema.Fields,
	}
	if err := s.records.CreateSubmission(ctx, job, doc); err != nil {
		return SubmitResult{}, s.abort(log, taskID, staged, err)
	}

	err = s.queue.Enqueue(ctx, async.Job{
		Kind: async.JobProcess,
		Submission: pipeline.Submission{
			TaskID:      taskID,
			JobID:       job.ID,
			DocumentID:  doc.ID,
			LocalPath:   staged,
			FileName:    fileName,
			DocumentURL: obj.URL,
			Schema:      schema,
		},
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if err != nil {
		return SubmitResult{}, s.abort(log, taskID, staged, err)
	}

	log.Info("ingest.submit.queued", "job_id", job.ID, "document_id", doc.ID, "size", size)
	return SubmitResult{TaskID: taskID, Document: doc}, nil
}

func (s *Service) uploadStaged(ctx context.Context, userID, fileName, staged string) (storage.Object, error) {
	f, err := os.Open(staged)
	if err != nil {
		return storage.Object{}, &common.StorageError{Op: "open", Path: staged, Err: err}
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn("close file error", "path", staged, "error", err)
		}
	}(f)
	return s.files.Upload(ctx, userID, fileName, f)
}

// abort fails the task created for a submission that could not be scheduled.
func (s *Service) abort(log *slog.Logger, taskID, staged string, cause error) error {
	log.Error("ingest.submit.failed", "error", cause)
	s.tasks.Update(taskID, constants.TaskStatusFailed, nil, cause.Error())
	if staged != "" {
		if err := s.files.Cleanup(staged); err != nil {
			log.Warn("ingest.submit.cleanup_failed", "error", err)
		}
	}
	return common.NewAppError("SUBMIT_FAILED", "document could not be scheduled", cause)
}

// ReprocessRequest asks for extraction to be re-run with new fields.
type ReprocessRequest struct {
	UserID     string
	DocumentID string
	Fields     json.RawMessage
}

// Reprocess validates the request and schedules the work. Unknown documents,
// or documents owned by another user, are a NotFoundError.
func (s *Service) Reprocess(ctx context.Context, req ReprocessRequest) error {
	docID := strings.TrimSpace(req.DocumentID)
	if err := common.NewValidator().Field("document_id", docID, common.Required).Error(); err != nil {
		return err
	}
	fields, err := s.meta.ParseFields(req.Fields)
	if err != nil {
		return err
	}

	doc, err := s.records.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if req.UserID != "" && doc.UserID != req.UserID {
		return &common.NotFoundError{Resource: "document", ID: docID}
	}

	fields, err = s.meta.completeFields(doc.DocumentType, fields)
	if err != nil {
		return err
	}

	err = s.queue.Enqueue(ctx, async.Job{
		Kind:        async.JobReprocess,
		Reprocess:   pipeline.ReprocessRequest{DocumentID: docID, Fields: fields},
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	})
	if err != nil {
		if errors.Is(err, async.ErrQueueClosed) {
			s.logger.Warn("ingest.reprocess.rejected", "document_id", docID, "error", err)
		}
		return common.NewAppError("REPROCESS_FAILED", "reprocess could not be scheduled", err)
	}
	s.logger.Info("ingest.reprocess.queued", "document_id", docID, "fields", len(fields))
	return nil
}
