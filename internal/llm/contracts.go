// Package llm holds the provider-neutral side of field extraction.
package llm

import (
	"context"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Result maps every requested field id to its extracted value ("" when not found).
type Result map[string]string

// Request is one extraction call.
type Request struct {
	Text         string
	DocumentType constants.DocumentType
	Fields       []entity.SchemaField

	// DocumentID addresses upstream artifacts created for this document on an
	// earlier pass so they can be reused. Empty disables reuse.
	DocumentID string
}

// Extractor is the interface the pipeline depends on. Failures are *common.ExtractionError.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}
