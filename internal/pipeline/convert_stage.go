package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/convert"
)

// ConvertStage turns a submission into trusted normalized text, falling back to
// the OCR engine when the primary result is missing or carries error chunks.
type ConvertStage struct {
	Converter convert.Converter
	Fallback  FallbackConverter
	Logger    *slog.Logger
}

func NewConvertStage(c convert.Converter, fb FallbackConverter, logger *slog.Logger) *ConvertStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertStage{Converter: c, Fallback: fb, Logger: logger}
}

// Run returns the normalized text, or the error that ends the submission.
func (s *ConvertStage) Run(ctx context.Context, sub Submission) (string, error) {
	log := s.Logger.With("task_id", sub.TaskID, "job_id", sub.JobID)

	res, err := s.Converter.Convert(ctx, convert.Locator{
		Path:     sub.LocalPath,
		URL:      sub.DocumentURL,
		FileName: sub.FileName,
	})
	outcome := convert.Classify(res, err)

	var cause error
	switch o := outcome.(type) {
	case convert.OK:
		log.Info("pipeline.convert.ok", "text_len", len(o.Text))
		return o.Text, nil
	case convert.PartialError:
		log.Warn("pipeline.convert.partial_error", "error_chunks", len(o.Chunks), "summary", o.Summary())
		cause = &common.ConversionError{Reason: "error chunks returned: " + o.Summary()}
	case convert.Failed:
		log.Warn("pipeline.convert.failed", "error", o.Reason)
		cause = o.Reason
	}

	if sub.DocumentURL == "" || s.Fallback == nil {
		log.Error("pipeline.fallback.unavailable", "outcome", convert.Describe(outcome))
		return "", cause
	}

	log.Info("pipeline.stage", "stage", StageFallingBack)
	text, err := s.Fallback.Convert(ctx, sub.DocumentURL)
	if err != nil {
		log.Error("pipeline.fallback.failed", "error", err)
		return "", err
	}
	log.Info("pipeline.fallback.ok", "text_len", len(text))
	return text, nil
}
