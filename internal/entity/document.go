package entity

import (
	"time"

	"github.com/joseph-ayodele/docextract/constants"
)

// Document is a persisted upload and its latest extraction outcome.
type Document struct {
	ID               string                   `json:"id"`
	UserID           string                   `json:"user_id"`
	FileName         string                   `json:"file_name"`
	FilePath         string                   `json:"file_path"`
	FileSize         int64                    `json:"file_size"`
	FileType         string                   `json:"file_type"`
	Status           constants.DocumentStatus `json:"status"`
	DocumentType     constants.DocumentType   `json:"document_type"`
	ProcessingResult map[string]string        `json:"processing_result,omitempty"`
	ErrorMessage     string                   `json:"error_message"`
	JobID            string                   `json:"job_id"`
	Metadata         []SchemaField            `json:"metadata"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// Job is the conversion/extraction job backing a document.
type Job struct {
	ID           string                 `json:"job_id"`
	UserID       string                 `json:"user_id"`
	Fields       []SchemaField          `json:"fields"`
	Result       string                 `json:"result"`
	Error        string                 `json:"error"`
	DocumentType constants.DocumentType `json:"document_type"`
	Status       constants.JobStatus    `json:"status"`
	ArtifactRef  string                 `json:"artifact_ref,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
