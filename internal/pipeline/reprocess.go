package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Reprocessor re-runs extraction on stored text. It never touches the task store.
type Reprocessor struct {
	Records   ReprocessStore
	Extractor llm.Extractor
	Logger    *slog.Logger
}

func NewReprocessor(records ReprocessStore, ex llm.Extractor, logger *slog.Logger) *Reprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reprocessor{Records: records, Extractor: ex, Logger: logger}
}

// Reprocess fails with a NotFoundError before any write when the document is unknown.
func (r *Reprocessor) Reprocess(ctx context.Context, req ReprocessRequest) error {
	log := r.Logger.With("document_id", req.DocumentID)
	start := time.Now()

	text, docType, jobID, err := r.Records.LoadForReprocess(ctx, req.DocumentID)
	if err != nil {
		log.Error("reprocess.load.failed", "error", err)
		return err
	}
	log = log.With("job_id", jobID)
	log.Info("reprocess.start", "document_type", docType, "fields", len(req.Fields), "text_len", len(text))

	data, err := r.Extractor.Extract(ctx, llm.Request{
		Text:         text,
		DocumentType: docType,
		Fields:       req.Fields,
		DocumentID:   req.DocumentID,
	})
	if err != nil {
		log.Error("reprocess.extract.failed", "error", err)
		if ferr := r.Records.FailDocument(ctx, jobID, err.Error()); ferr != nil {
			log.Error("reprocess.record.fail_failed", "error", ferr)
		}
		return err
	}

	if err := r.Records.SaveReprocess(ctx, req.DocumentID, jobID, req.Fields, data); err != nil {
		log.Error("reprocess.save.failed", "error", err)
		return err
	}
	log.Info("reprocess.ok", "fields", len(data), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
