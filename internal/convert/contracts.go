// Package convert turns an uploaded document into normalized text.
package convert

import (
	"context"
	"strings"
)

// ChunkTypeError tags a chunk the engine could not convert.
const ChunkTypeError = "error"

// Chunk is a structural unit of converted output.
type Chunk struct {
	Type    string `json:"chunk_type"`
	Content string `json:"content"`
}

// IsError reports whether the engine tagged this chunk as failed.
func (c Chunk) IsError() bool {
	return strings.EqualFold(c.Type, ChunkTypeError)
}

// Result is the raw engine output.
type Result struct {
	NormalizedText string
	Chunks         []Chunk
}

// ErrorChunks returns only the error-tagged chunks, in order.
func (r Result) ErrorChunks() []Chunk {
	var out []Chunk
	for _, c := range r.Chunks {
		if c.IsError() {
			out = append(out, c)
		}
	}
	return out
}

// Locator identifies the document for an engine: a local path for upload
// engines and a public URL for engines that fetch remotely.
type Locator struct {
	Path     string
	URL      string
	FileName string
}

// Converter is the primary document-to-text engine. It returns a
// *common.ConversionError when the engine produced no results at all;
// error-tagged chunks are returned verbatim with a nil error.
type Converter interface {
	Convert(ctx context.Context, loc Locator) (Result, error)
}
