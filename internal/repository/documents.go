package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const documentsTable = "documents"

var documentColumns = []string{
	"id", "user_id", "file_name", "file_path", "file_size", "file_type", "status",
	"document_type", "processing_result", "error_message", "job_id", "metadata",
	"created_at", "updated_at",
}

// DocumentFilter narrows List. Zero values match everything.
type DocumentFilter struct {
	UserID string
	Status constants.DocumentStatus
	Limit  int
}

// DocumentUpdate is a partial update keyed by job id. Nil fields are left untouched.
type DocumentUpdate struct {
	Status           constants.DocumentStatus
	ProcessingResult map[string]string
	ErrorMessage     *string
	Metadata         []entity.SchemaField
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	Get(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]*entity.Document, error)
	UpdateByJobID(ctx context.Context, jobID string, upd DocumentUpdate) error
}

type documentRepo struct {
	db  *DB
	now func() time.Time
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, now: utcNow, log: log}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	meta, err := json.Marshal(nonNilFields(doc.Metadata))
	if err != nil {
		return fmt.Errorf("encode document metadata: %w", err)
	}
	result, err := encodeResult(doc.ProcessingResult)
	if err != nil {
		return err
	}
	now := r.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query, args := r.db.builder().Insert(documentsTable).
		Columns(documentColumns...).
		Values(doc.ID, doc.UserID, doc.FileName, doc.FilePath, doc.FileSize, doc.FileType, string(doc.Status),
			string(doc.DocumentType), result, doc.ErrorMessage, doc.JobID, string(meta),
			doc.CreatedAt, doc.UpdatedAt).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("document create failed", "document_id", doc.ID, "job_id", doc.JobID, "err", err)
		return common.WrapError(err, "create document")
	}
	r.log.Info("document created", "document_id", doc.ID, "job_id", doc.JobID, "file_name", doc.FileName)
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id string) (*entity.Document, error) {
	b := r.db.builder()
	query, args := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	doc, err := scanDocument(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "document", ID: id}
	}
	if err != nil {
		return nil, common.WrapError(err, "get document")
	}
	return doc, nil
}

func (r *documentRepo) List(ctx context.Context, filter DocumentFilter) ([]*entity.Document, error) {
	b := r.db.builder()
	sel := b.Select(documentColumns...).From(b.Table(documentsTable))

	var preds []*entsql.Predicate
	if filter.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", filter.UserID))
	}
	if filter.Status != "" {
		preds = append(preds, entsql.EQ("status", string(filter.Status)))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("created_at"), "id")
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.WrapError(err, "list documents")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.log.Warn("rows close error", "err", err)
		}
	}()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan document")
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "list documents")
	}
	return out, nil
}

func (r *documentRepo) UpdateByJobID(ctx context.Context, jobID string, upd DocumentUpdate) error {
	u := r.db.builder().Update(documentsTable)
	if upd.Status != "" {
		u.Set("status", string(upd.Status))
	}
	if upd.ProcessingResult != nil {
		result, err := encodeResult(upd.ProcessingResult)
		if err != nil {
			return err
		}
		u.Set("processing_result", result)
	}
	if upd.ErrorMessage != nil {
		u.Set("error_message", *upd.ErrorMessage)
	}
	if upd.Metadata != nil {
		meta, err := json.Marshal(upd.Metadata)
		if err != nil {
			return fmt.Errorf("encode document metadata: %w", err)
		}
		u.Set("metadata", string(meta))
	}
	query, args := u.Set("updated_at", r.now()).Where(entsql.EQ("job_id", jobID)).Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("document update failed", "job_id", jobID, "err", err)
		return common.WrapError(err, "update document")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &common.NotFoundError{Resource: "document for job", ID: jobID}
	}
	r.log.Info("document updated", "job_id", jobID, "status", upd.Status)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc             entity.Document
		status, docType string
		result          sql.NullString
		meta            string
	)
	if err := row.Scan(
		&doc.ID, &doc.UserID, &doc.FileName, &doc.FilePath, &doc.FileSize, &doc.FileType, &status,
		&docType, &result, &doc.ErrorMessage, &doc.JobID, &meta,
		&doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = constants.DocumentStatus(status)
	doc.DocumentType = constants.DocumentType(docType)
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode document metadata: %w", err)
	}
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &doc.ProcessingResult); err != nil {
			return nil, fmt.Errorf("decode processing result: %w", err)
		}
	}
	return &doc, nil
}

// encodeResult stores nil as SQL NULL.
func encodeResult(result map[string]string) (any, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode processing result: %w", err)
	}
	return string(b), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
