package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/presets"
	"github.com/joseph-ayodele/docextract/internal/storage"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

type fakeRecords struct {
	mu        sync.Mutex
	jobs      []*entity.Job
	docs      map[string]*entity.Document
	createErr error
}

func (f *fakeRecords) CreateSubmission(_ context.Context, job *entity.Job, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	doc.JobID = job.ID
	f.jobs = append(f.jobs, job)
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRecords) GetDocument(_ context.Context, id string) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, &common.NotFoundError{Resource: "document", ID: id}
	}
	return d, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

type fixture struct {
	svc     *Service
	tasks   *tasks.MemoryStore
	records *fakeRecords
	queue   *fakeQueue
	tempDir string
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tasks:   tasks.NewMemoryStore(nil),
		records: &fakeRecords{docs: map[string]*entity.Document{}},
		queue:   &fakeQueue{},
		tempDir: t.TempDir(),
		root:    t.TempDir(),
	}
	files, err := storage.NewLocalStore(storage.Config{
		Root: f.root, Bucket: "documents", PublicBaseURL: "http://files.local/files", TempDir: f.tempDir,
	}, nil)
	require.NoError(t, err)
	meta, err := NewMetadataParser(presets.Default())
	require.NoError(t, err)
	f.svc = NewService(f.tasks, files, f.records, f.queue, meta, nil)
	return f
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

const customMeta = `{"document_type":"custom","fields":[{"id":"invoice_no","name":"Invoice number","description":"Top right"}]}`

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Submit(context.Background(), SubmitRequest{
		UserID:      "user-1",
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-1.7"),
		Metadata:    []byte(customMeta),
	})
	require.NoError(t, err)

	task, ok := f.tasks.Get(res.TaskID)
	require.True(t, ok)
	assert.Equal(t, constants.TaskStatusPending, task.Status)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, async.JobProcess, job.Kind)
	sub := job.Submission
	assert.Equal(t, res.TaskID, sub.TaskID)
	assert.Equal(t, res.Document.ID, sub.DocumentID)
	assert.Equal(t, res.Document.JobID, sub.JobID)
	assert.Equal(t, constants.DocumentTypeCustom, sub.Schema.DocumentType)
	assert.Equal(t, "invoice_no", sub.Schema.Fields[0].ID)
	assert.True(t, strings.HasPrefix(sub.DocumentURL, "http://files.local/files/documents/user-1/"), sub.DocumentURL)
	assert.Equal(t, ".pdf", filepath.Ext(sub.LocalPath))
	b, err := os.ReadFile(sub.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))

	doc := res.Document
	assert.Equal(t, constants.DocumentStatusProcessing, doc.Status)
	assert.Equal(t, int64(8), doc.FileSize)
	assert.Equal(t, "application/pdf", doc.FileType)
	assert.Equal(t, sub.DocumentURL, doc.FilePath)
	require.Len(t, f.records.jobs, 1)
	assert.Equal(t, constants.JobStatusPending, f.records.jobs[0].Status)
}

func TestSubmitFillsPresetFields(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Submit(context.Background(), SubmitRequest{
		UserID: "u", FileName: "stub.png", Content: strings.NewReader("png"),
		Metadata: []byte(`{"document_type":"paystub"}`),
	})
	require.NoError(t, err)
	fields := f.queue.jobs[0].Submission.Schema.Fields
	assert.Equal(t, presets.Default().Fields(constants.DocumentTypePaystub), fields)
	assert.Equal(t, fields, f.records.jobs[0].Fields)
	assert.Equal(t, "image/png", res.Document.FileType)
}

func TestSubmitValidationCreatesNoTask(t *testing.T) {
	cases := map[string]SubmitRequest{
		"malformed json":       {FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(`{"document_type":`)},
		"missing metadata":     {FileName: "a.pdf", Content: strings.NewReader("x")},
		"unknown type":         {FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(`{"document_type":"invoice"}`)},
		"fields not array":     {FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(`{"document_type":"custom","fields":{"a":1}}`)},
		"field without id":     {FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(`{"document_type":"custom","fields":[{"name":"A"}]}`)},
		"custom without field": {FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(`{"document_type":"custom"}`)},
		"duplicate ids": {FileName: "a.pdf", Content: strings.NewReader("x"),
			Metadata: []byte(`{"document_type":"custom","fields":[{"id":"a","name":"A"},{"id":"a","name":"B"}]}`)},
		"bad extension": {FileName: "a.docx", Content: strings.NewReader("x"), Metadata: []byte(customMeta)},
		"missing file":  {Metadata: []byte(customMeta)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Submit(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, 400, common.HTTPStatus(err))
			assert.Zero(t, f.tasks.Len())
			assert.Empty(t, f.queue.jobs)
			assert.Empty(t, stagedFiles(t, f.tempDir))
		})
	}
}

func TestSubmitFailureAfterTaskFailsTask(t *testing.T) {
	f := newFixture(t)
	f.records.createErr = errors.New("db down")

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		UserID: "u", FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(customMeta),
	})
	require.Error(t, err)
	assert.Equal(t, 500, common.HTTPStatus(err))
	require.Equal(t, 1, f.tasks.Len())
	assert.Empty(t, stagedFiles(t, f.tempDir), "staged file removed")
	assert.Empty(t, f.queue.jobs)
}

func TestSubmitEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.queue.err = async.ErrQueueClosed

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		UserID: "u", FileName: "a.pdf", Content: strings.NewReader("x"), Metadata: []byte(customMeta),
	})
	assert.ErrorIs(t, err, async.ErrQueueClosed)
	assert.Empty(t, stagedFiles(t, f.tempDir))
}

func seedDocument(f *fixture, id, user string, dt constants.DocumentType) {
	f.records.docs[id] = &entity.Document{ID: id, UserID: user, DocumentType: dt, JobID: "job-" + id}
}

func TestReprocess(t *testing.T) {
	f := newFixture(t)
	seedDocument(f, "doc-1", "user-1", constants.DocumentTypeCustom)

	err := f.svc.Reprocess(context.Background(), ReprocessRequest{
		UserID:     "user-1",
		DocumentID: "doc-1",
		Fields:     json.RawMessage(`[{"id":"total","name":"Total","description":"Grand total"}]`),
	})
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, async.JobReprocess, job.Kind)
	assert.Equal(t, "doc-1", job.Reprocess.DocumentID)
	assert.Equal(t, []entity.SchemaField{{ID: "total", Name: "Total", Description: "Grand total"}}, job.Reprocess.Fields)
	assert.Zero(t, f.tasks.Len(), "reprocess never creates a task")
}

func TestReprocessPresetFallback(t *testing.T) {
	f := newFixture(t)
	seedDocument(f, "doc-1", "user-1", constants.DocumentTypeW2)

	require.NoError(t, f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "user-1", DocumentID: "doc-1"}))
	assert.Equal(t, presets.Default().Fields(constants.DocumentTypeW2), f.queue.jobs[0].Reprocess.Fields)
}

func TestReprocessErrors(t *testing.T) {
	f := newFixture(t)
	seedDocument(f, "doc-1", "owner", constants.DocumentTypeCustom)

	err := f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "owner"})
	assert.Equal(t, 400, common.HTTPStatus(err))

	err = f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "owner", DocumentID: "nope"})
	assert.Equal(t, 404, common.HTTPStatus(err))

	err = f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "intruder", DocumentID: "doc-1",
		Fields: json.RawMessage(`[{"id":"a","name":"A"}]`)})
	assert.Equal(t, 404, common.HTTPStatus(err))

	err = f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "owner", DocumentID: "doc-1",
		Fields: json.RawMessage(`"not-an-array"`)})
	assert.Equal(t, 400, common.HTTPStatus(err))

	err = f.svc.Reprocess(context.Background(), ReprocessRequest{UserID: "owner", DocumentID: "doc-1"})
	assert.Equal(t, 400, common.HTTPStatus(err), "custom documents need fields")

	assert.Empty(t, f.queue.jobs)
}

func TestSubmitDirectory(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PNG", "notes.txt", ".hidden.pdf", filepath.Join("sub", "c.jpg"), filepath.Join(".git", "d.pdf")} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("data"), 0o600))
	}

	n, err := CountDocuments(dir, true)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var seen []string
	results, stats, err := f.svc.SubmitDirectory(context.Background(), DirectoryRequest{
		UserID: "u", Root: dir, SkipHidden: true, Metadata: []byte(customMeta),
	}, func(r FileResult) { seen = append(seen, filepath.Base(r.Path)) })
	require.NoError(t, err)

	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(3), stats.Submitted)
	assert.Zero(t, stats.Failed)
	assert.ElementsMatch(t, []string{"a.pdf", "b.PNG", "c.jpg"}, seen)
	assert.Len(t, results, 3)
	assert.Len(t, f.queue.jobs, 3)
	assert.Equal(t, 3, f.tasks.Len())
}

func TestSubmitDirectoryRejectsBadMetadata(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.SubmitDirectory(context.Background(), DirectoryRequest{Root: t.TempDir(), Metadata: []byte(`{}`)}, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}
