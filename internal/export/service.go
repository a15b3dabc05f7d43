package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// SheetName is the worksheet the export writes.
const SheetName = "Documents"

// FixedHeaders lead every export; one column per extracted field id follows.
var FixedHeaders = []string{"ID", "File", "Type", "Status", "Created", "Error"}

// DocumentLister is the read side of the document repository.
type DocumentLister interface {
	List(ctx context.Context, filter repository.DocumentFilter) ([]*entity.Document, error)
}

// Filter selects the documents to export. From and To bound created_at by
// date (inclusive); only From means From..today.
type Filter struct {
	UserID string
	Status constants.DocumentStatus
	From   *time.Time
	To     *time.Time
}

// Service produces XLSX bytes for document exports.
type Service struct {
	docs   DocumentLister
	logger *slog.Logger
}

func NewService(docs DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportDocumentsXLSX returns an XLSX workbook (as bytes) for the documents matching f.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, f Filter) ([]byte, error) {
	start := time.Now()

	docs, err := s.docs.List(ctx, repository.DocumentFilter{UserID: f.UserID, Status: f.Status})
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	docs = inWindow(docs, f.From, f.To)
	fieldIDs := resultColumns(docs)

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := x.SetSheetName(x.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	headers := append(append([]string{}, FixedHeaders...), fieldIDs...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(SheetName, cell, h)
	}

	for i, d := range docs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(SheetName, cell, v)
		}
		write(1, d.ID)
		write(2, d.FileName)
		write(3, d.DocumentType.Label())
		write(4, string(d.Status))
		write(5, d.CreatedAt.UTC().Format(time.RFC3339))
		write(6, truncate(d.ErrorMessage, 140))
		for j, id := range fieldIDs {
			write(len(FixedHeaders)+j+1, d.ProcessingResult[id])
		}
	}

	_ = x.SetColWidth(SheetName, "A", "A", 38) // id
	_ = x.SetColWidth(SheetName, "B", "B", 32) // file
	_ = x.SetColWidth(SheetName, "C", "D", 18)
	_ = x.SetColWidth(SheetName, "E", "E", 22)
	_ = x.SetColWidth(SheetName, "F", "F", 48) // error

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", f.UserID,
		"rows", len(docs),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// resultColumns lists every field id present in the documents, in first-seen
// order of each document's schema, then any extras sorted.
func resultColumns(docs []*entity.Document) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range docs {
		for _, f := range d.Metadata {
			if !seen[f.ID] {
				seen[f.ID] = true
				out = append(out, f.ID)
			}
		}
	}
	var extra []string
	for _, d := range docs {
		for id := range d.ProcessingResult {
			if !seen[id] {
				seen[id] = true
				extra = append(extra, id)
			}
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func inWindow(docs []*entity.Document, from, to *time.Time) []*entity.Document {
	if from == nil && to == nil {
		return docs
	}
	var lo, hi time.Time
	if from != nil {
		lo = dateOnly(*from)
		if to == nil {
			hi = dateOnly(time.Now().UTC())
		}
	}
	if to != nil {
		hi = dateOnly(*to)
	}
	out := make([]*entity.Document, 0, len(docs))
	for _, d := range docs {
		day := dateOnly(d.CreatedAt)
		if !lo.IsZero() && day.Before(lo) {
			continue
		}
		if !hi.IsZero() && day.After(hi) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
