package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// JobKind selects the pipeline entry point a job runs through.
type JobKind string

const (
	JobProcess   JobKind = "process"
	JobReprocess JobKind = "reprocess"
)

// Job is one unit of detached pipeline work.
type Job struct {
	Kind        JobKind
	Submission  pipeline.Submission       // Kind == JobProcess
	Reprocess   pipeline.ReprocessRequest // Kind == JobReprocess
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
