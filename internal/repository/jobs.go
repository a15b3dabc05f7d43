package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const jobsTable = "document_jobs"

var jobColumns = []string{
	"id", "user_id", "fields", "result", "error", "document_type",
	"status", "artifact_ref", "created_at", "updated_at",
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id string) (*entity.Job, error)
	MarkConverted(ctx context.Context, id, text string) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id, message string) error
	UpdateFields(ctx context.Context, id string, fields []entity.SchemaField) error
	SetArtifactRef(ctx context.Context, id, ref string) error
}

type jobRepo struct {
	db  *DB
	now func() time.Time
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, now: utcNow, log: log}
}

func utcNow() time.Time { return time.Now().UTC() }

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	fields, err := json.Marshal(nonNilFields(job.Fields))
	if err != nil {
		return fmt.Errorf("encode job fields: %w", err)
	}
	now := r.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}

	query, args := r.db.builder().Insert(jobsTable).
		Columns(jobColumns...).
		Values(job.ID, job.UserID, string(fields), job.Result, job.Error, string(job.DocumentType),
			string(job.Status), job.ArtifactRef, job.CreatedAt, job.UpdatedAt).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("document_job create failed", "job_id", job.ID, "err", err)
		return common.WrapError(err, "create job")
	}
	r.log.Info("document_job created", "job_id", job.ID, "user_id", job.UserID, "document_type", job.DocumentType)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*entity.Job, error) {
	b := r.db.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.EQ("id", id)).
		Query()

	var (
		job             entity.Job
		fields          string
		docType, status string
	)
	err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(
		&job.ID, &job.UserID, &fields, &job.Result, &job.Error, &docType,
		&status, &job.ArtifactRef, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.NotFoundError{Resource: "job", ID: id}
	}
	if err != nil {
		return nil, common.WrapError(err, "get job")
	}
	job.DocumentType = constants.DocumentType(docType)
	job.Status = constants.JobStatus(status)
	if err := json.Unmarshal([]byte(fields), &job.Fields); err != nil {
		return nil, fmt.Errorf("decode job fields: %w", err)
	}
	return &job, nil
}

func (r *jobRepo) MarkConverted(ctx context.Context, id, text string) error {
	return r.update(ctx, id, "converted", map[string]any{
		"result": text,
		"status": string(constants.JobStatusConverted),
	})
}

func (r *jobRepo) Complete(ctx context.Context, id string) error {
	return r.update(ctx, id, "completed", map[string]any{
		"error":  "",
		"status": string(constants.JobStatusCompleted),
	})
}

func (r *jobRepo) Fail(ctx context.Context, id, message string) error {
	return r.update(ctx, id, "failed", map[string]any{
		"error":  message,
		"status": string(constants.JobStatusFailed),
	})
}

func (r *jobRepo) UpdateFields(ctx context.Context, id string, fields []entity.SchemaField) error {
	b, err := json.Marshal(nonNilFields(fields))
	if err != nil {
		return fmt.Errorf("encode job fields: %w", err)
	}
	return r.update(ctx, id, "fields_updated", map[string]any{"fields": string(b)})
}

func (r *jobRepo) SetArtifactRef(ctx context.Context, id, ref string) error {
	return r.update(ctx, id, "artifact_ref_set", map[string]any{"artifact_ref": ref})
}

// update applies set to one job row; a missing row is a NotFoundError.
func (r *jobRepo) update(ctx context.Context, id, event string, set map[string]any) error {
	u := r.db.builder().Update(jobsTable)
	for _, col := range sortedKeys(set) {
		u.Set(col, set[col])
	}
	query, args := u.Set("updated_at", r.now()).Where(entsql.EQ("id", id)).Query()

	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("document_job update failed", "job_id", id, "event", event, "err", err)
		return common.WrapError(err, "update job")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &common.NotFoundError{Resource: "job", ID: id}
	}
	r.log.Info("document_job "+event, "job_id", id)
	return nil
}

func nonNilFields(fields []entity.SchemaField) []entity.SchemaField {
	if fields == nil {
		return []entity.SchemaField{}
	}
	return fields
}
