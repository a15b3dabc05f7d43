package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusProcessing, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusProcessing, TaskStatusProcessing, true},
		{TaskStatusProcessing, TaskStatusCompleted, true},
		{TaskStatusProcessing, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
		{TaskStatusFailed, TaskStatusFailed, false},
		{TaskStatusPending, TaskStatus("bogus"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())
}

func TestDocumentTypes(t *testing.T) {
	dt, ok := ParseDocumentType("  PayStub ")
	assert.True(t, ok)
	assert.Equal(t, DocumentTypePaystub, dt)

	_, ok = ParseDocumentType("invoice")
	assert.False(t, ok)

	assert.Equal(t, "W-2 Tax Form", DocumentTypeW2.Label())
	assert.Equal(t, DocumentTypeCustom.Label(), DocumentType("unknown").Label())
	assert.Contains(t, DocumentTypeStrings(), "custom")
	assert.Len(t, DocumentTypeStrings(), len(DocumentTypes))
}

func TestFiles(t *testing.T) {
	assert.True(t, IsAllowedFile("scan.JPEG"))
	assert.True(t, IsAllowedFile("/tmp/a.b/report.pdf"))
	assert.False(t, IsAllowedFile("notes.txt"))
	assert.False(t, IsAllowedFile("pdf"))

	assert.Equal(t, PDF, MapExtToFormat(".PDF"))
	assert.Equal(t, IMAGE, MapExtToFormat("png"))
	assert.Empty(t, MapExtToFormat(".heic"))

	assert.Equal(t, "image/jpeg", MimeTypeFor("a.jpg"))
	assert.Equal(t, "application/pdf", MimeTypeFor("a.PDF"))
}
