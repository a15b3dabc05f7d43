package entity

import (
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// Task is the pollable lifecycle state of one submission.
type Task struct {
	ID        string               `json:"task_id"`
	Status    constants.TaskStatus `json:"status"`
	Result    *TaskResult          `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// TaskResult is the payload of a completed task.
type TaskResult struct {
	Markdown string            `json:"markdown"`
	Data     map[string]string `json:"data"`
}

// Clone returns a deep copy so callers never share the result map with the store.
func (r *TaskResult) Clone() *TaskResult {
	if r == nil {
		return nil
	}
	data := make(map[string]string, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return &TaskResult{Markdown: r.Markdown, Data: data}
}
