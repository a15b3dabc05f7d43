package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Orchestrator drives one submission from Processing to a terminal task state.
type Orchestrator struct {
	Tasks     TaskUpdater
	Convert   *ConvertStage
	Extractor llm.Extractor
	Records   RecordSink
	Files     Cleaner
	Logger    *slog.Logger
}

func NewOrchestrator(tasks TaskUpdater, conv *ConvertStage, ex llm.Extractor, records RecordSink, files Cleaner, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Tasks: tasks, Convert: conv, Extractor: ex, Records: records, Files: files, Logger: logger}
}

// Run processes sub and returns the terminal status it wrote. It never panics
// and never returns an error; callers observe the outcome through the task store.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) (status constants.TaskStatus) {
	log := o.Logger.With("task_id", sub.TaskID, "job_id", sub.JobID, "document_id", sub.DocumentID)
	start := time.Now()

	defer o.cleanup(log, sub.LocalPath)
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.panic", "panic", r, "stack", string(debug.Stack()))
			status = o.fail(ctx, log, sub, fmt.Sprintf("internal error: %v", r))
		}
		log.Info("pipeline.stage", "stage", StageFinalized, "status", status,
			"elapsed_ms", time.Since(start).Milliseconds())
	}()

	log.Info("pipeline.stage", "stage", StageSubmitted, "document_type", sub.Schema.DocumentType, "fields", len(sub.Schema.Fields))
	o.Tasks.Update(sub.TaskID, constants.TaskStatusProcessing, nil, "")

	log.Info("pipeline.stage", "stage", StageConverting)
	text, err := o.Convert.Run(ctx, sub)
	if err != nil {
		return o.fail(ctx, log, sub, err.Error())
	}

	if err := o.Records.SaveConversion(ctx, sub.JobID, text); err != nil {
		log.Error("pipeline.checkpoint.failed", "error", err)
		return o.fail(ctx, log, sub, common.WrapError(err, "failed to record converted text").Error())
	}

	log.Info("pipeline.stage", "stage", StageExtracting)
	data, err := o.Extractor.Extract(ctx, llm.Request{
		Text:         text,
		DocumentType: sub.Schema.DocumentType,
		Fields:       sub.Schema.Fields,
		DocumentID:   sub.DocumentID,
	})
	if err != nil {
		log.Error("pipeline.extract.failed", "error", err)
		return o.fail(ctx, log, sub, err.Error())
	}

	if err := o.Records.CompleteDocument(ctx, sub.JobID, data); err != nil {
		log.Error("pipeline.record.complete_failed", "error", err)
	}
	o.Tasks.Update(sub.TaskID, constants.TaskStatusCompleted, &entity.TaskResult{Markdown: text, Data: data}, "")
	log.Info("pipeline.extract.ok", "fields", len(data))
	return constants.TaskStatusCompleted
}

// fail records message on the document and fails the task.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, sub Submission, message string) constants.TaskStatus {
	if message == "" {
		message = "processing failed"
	}
	o.recordFailure(ctx, log, sub.JobID, message)
	o.Tasks.Update(sub.TaskID, constants.TaskStatusFailed, nil, message)
	return constants.TaskStatusFailed
}

func (o *Orchestrator) cleanup(log *slog.Logger, path string) {
	if o.Files == nil || path == "" {
		return
	}
	if err := o.Files.Cleanup(path); err != nil {
		var se *common.StorageError
		if !errors.As(err, &se) {
			se = &common.StorageError{Op: "cleanup", Path: path, Err: err}
		}
		log.Warn("pipeline.cleanup.failed", "error", se)
	}
}

// recordFailure is best effort; the task must still reach Failed if the record write panics.
func (o *Orchestrator) recordFailure(ctx context.Context, log *slog.Logger, jobID, message string) {
	if o.Records == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.record.fail_panic", "panic", r)
		}
	}()
	if err := o.Records.FailDocument(ctx, jobID, message); err != nil {
		log.Error("pipeline.record.fail_failed", "error", err)
	}
}
