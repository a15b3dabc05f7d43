package convert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/ocr"
)

// PageExtractor is the local OCR engine contract.
type PageExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// LocalConverter converts with poppler/tesseract on this host. Every page
// becomes one chunk; pages that fail OCR become error chunks.
type LocalConverter struct {
	e      PageExtractor
	logger *slog.Logger
}

func NewLocalConverter(e PageExtractor, logger *slog.Logger) *LocalConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalConverter{e: e, logger: logger}
}

func (c *LocalConverter) Convert(ctx context.Context, loc Locator) (Result, error) {
	if loc.Path == "" {
		return Result{}, &common.ConversionError{Reason: "no local file to read"}
	}
	r, err := c.e.Extract(ctx, loc.Path)
	if err != nil {
		return Result{}, &common.ConversionError{Reason: "local ocr failed", Err: err}
	}
	if len(r.Pages) == 0 {
		return Result{}, &common.ConversionError{Reason: "no results returned"}
	}

	var (
		res   Result
		texts []string
	)
	for _, p := range r.Pages {
		if p.Err != nil {
			res.Chunks = append(res.Chunks, Chunk{Type: ChunkTypeError, Content: fmt.Sprintf("page %d: %v", p.Number, p.Err)})
			continue
		}
		res.Chunks = append(res.Chunks, Chunk{Type: "text", Content: p.Text})
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	res.NormalizedText = strings.Join(texts, "\n\n")

	c.logger.Info("convert.local.ok",
		"path", loc.Path,
		"pages", len(r.Pages),
		"error_chunks", len(res.ErrorChunks()),
		"elapsed_ms", r.Duration.Milliseconds(),
	)
	return res, nil
}
