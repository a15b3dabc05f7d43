package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// Outcome is the closed set of conversion results the pipeline branches on:
// OK, PartialError or Failed.
type Outcome interface {
	isOutcome()
}

// OK carries trusted normalized text.
type OK struct {
	Text string
}

// PartialError carries a result with at least one error chunk. Its text is not trusted.
type PartialError struct {
	Chunks []Chunk
	Text   string
}

// Failed carries the reason the engine produced nothing usable.
type Failed struct {
	Reason error
}

func (OK) isOutcome()           {}
func (PartialError) isOutcome() {}
func (Failed) isOutcome()       {}

// Summary joins error chunk contents for logs and error messages.
func (p PartialError) Summary() string {
	parts := make([]string, 0, len(p.Chunks))
	for _, c := range p.Chunks {
		if c.IsError() {
			parts = append(parts, c.Content)
		}
	}
	return strings.Join(parts, "; ")
}

// Classify folds an engine call into an Outcome.
func Classify(res Result, err error) Outcome {
	if err != nil {
		var ce *common.ConversionError
		if !errors.As(err, &ce) {
			err = &common.ConversionError{Reason: "engine error", Err: err}
		}
		return Failed{Reason: err}
	}
	if len(res.Chunks) == 0 && strings.TrimSpace(res.NormalizedText) == "" {
		return Failed{Reason: &common.ConversionError{Reason: "no results returned"}}
	}
	if bad := res.ErrorChunks(); len(bad) > 0 {
		return PartialError{Chunks: bad, Text: res.NormalizedText}
	}
	return OK{Text: res.NormalizedText}
}

// Describe renders an outcome for logs.
func Describe(o Outcome) string {
	switch v := o.(type) {
	case OK:
		return fmt.Sprintf("ok(%d bytes)", len(v.Text))
	case PartialError:
		return fmt.Sprintf("partial_error(%d error chunks)", len(v.Chunks))
	case Failed:
		return fmt.Sprintf("failed(%v)", v.Reason)
	default:
		return "unknown"
	}
}
