package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
	"github.com/joseph-ayodele/docextract/internal/tasks"
)

type fakeSubmitter struct {
	submitted   []ingest.SubmitRequest
	body        []string
	reprocessed []ingest.ReprocessRequest
	submitErr   error
	reprocErr   error
}

func (f *fakeSubmitter) Submit(_ context.Context, req ingest.SubmitRequest) (ingest.SubmitResult, error) {
	if f.submitErr != nil {
		return ingest.SubmitResult{}, f.submitErr
	}
	b := new(bytes.Buffer)
	_, _ = b.ReadFrom(req.Content)
	f.body = append(f.body, b.String())
	f.submitted = append(f.submitted, req)
	return ingest.SubmitResult{
		TaskID:   "task-1",
		Document: &entity.Document{ID: "doc-1", FileName: req.FileName, Status: constants.DocumentStatusProcessing},
	}, nil
}

func (f *fakeSubmitter) Reprocess(_ context.Context, req ingest.ReprocessRequest) error {
	f.reprocessed = append(f.reprocessed, req)
	return f.reprocErr
}

type fakeExporter struct {
	filter export.Filter
}

func (f *fakeExporter) ExportDocumentsXLSX(_ context.Context, filter export.Filter) ([]byte, error) {
	f.filter = filter
	return []byte("xlsx-bytes"), nil
}

type harness struct {
	srv      *httptest.Server
	sub      *fakeSubmitter
	tasks    *tasks.MemoryStore
	exporter *fakeExporter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{sub: &fakeSubmitter{}, tasks: tasks.NewMemoryStore(nil), exporter: &fakeExporter{}}
	opts = append([]Option{WithExporter(h.exporter)}, opts...)
	s := New(Config{AllowedOrigins: []string{"http://localhost:8080"}}, h.sub, h.tasks, nil, opts...)
	h.srv = httptest.NewServer(s.Routes())
	t.Cleanup(h.srv.Close)
	return h
}

func multipartBody(t *testing.T, fileName, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("metadata", metadata))
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, WithAuth(StaticTokens{"secret": "u1"}))
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/health", nil)
	resp, body := do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestProcess(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartBody(t, "invoice.pdf", "%PDF", `{"document_type":"custom","fields":[{"id":"a","name":"A"}]}`)
	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/process", body)
	req.Header.Set("Content-Type", ct)

	resp, out := do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Document processing started", out["message"])
	assert.Equal(t, "task-1", out["task_id"])
	assert.Equal(t, "processing", out["status"])
	info := out["document_info"].([]any)
	require.Len(t, info, 1)
	assert.Equal(t, "doc-1", info[0].(map[string]any)["id"])

	require.Len(t, h.sub.submitted, 1)
	got := h.sub.submitted[0]
	assert.Equal(t, LocalUser, got.UserID)
	assert.Equal(t, "invoice.pdf", got.FileName)
	assert.JSONEq(t, `{"document_type":"custom","fields":[{"id":"a","name":"A"}]}`, string(got.Metadata))
	assert.Equal(t, "%PDF", h.sub.body[0])
}

func TestProcessErrors(t *testing.T) {
	h := newHarness(t)

	body, ct := multipartBody(t, "", "", `{}`)
	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/process", body)
	req.Header.Set("Content-Type", ct)
	resp, out := do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", out["error"])

	req, _ = http.NewRequest(http.MethodPost, h.srv.URL+"/process", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.sub.submitErr = common.NewValidationError("metadata", "Invalid metadata JSON format")
	body, ct = multipartBody(t, "a.pdf", "x", `{`)
	req, _ = http.NewRequest(http.MethodPost, h.srv.URL+"/process", body)
	req.Header.Set("Content-Type", ct)
	resp, out = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["detail"], "Invalid metadata JSON format")

	h.sub.submitErr = common.NewAppError("SUBMIT_FAILED", "document could not be scheduled", assert.AnError)
	body, ct = multipartBody(t, "a.pdf", "x", `{}`)
	req, _ = http.NewRequest(http.MethodPost, h.srv.URL+"/process", body)
	req.Header.Set("Content-Type", ct)
	resp, out = do(t, req)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "SUBMIT_FAILED", out["error"])
	assert.Equal(t, "internal server error", out["detail"])
}

func TestReprocess(t *testing.T) {
	h := newHarness(t)
	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/reprocess",
		strings.NewReader(`{"document_id":"doc-9","fields":[{"id":"total","name":"Total"}]}`))
	resp, out := do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Document reprocessed", out["message"])
	assert.Equal(t, "doc-9", out["document_id"])
	require.Len(t, h.sub.reprocessed, 1)
	assert.JSONEq(t, `[{"id":"total","name":"Total"}]`, string(h.sub.reprocessed[0].Fields))

	req, _ = http.NewRequest(http.MethodPost, h.srv.URL+"/reprocess", strings.NewReader(`not json`))
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.sub.reprocErr = &common.NotFoundError{Resource: "document", ID: "missing"}
	req, _ = http.NewRequest(http.MethodPost, h.srv.URL+"/reprocess", strings.NewReader(`{"document_id":"missing"}`))
	resp, out = do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", out["error"])
}

func TestTaskStatus(t *testing.T) {
	h := newHarness(t)
	id := h.tasks.Create()
	h.tasks.Update(id, constants.TaskStatusProcessing, nil, "")
	h.tasks.Update(id, constants.TaskStatusCompleted, &entity.TaskResult{Markdown: "# doc", Data: map[string]string{"a": "1"}}, "")

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/task/"+id, nil)
	resp, out := do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, out["task_id"])
	assert.Equal(t, "completed", out["status"])
	assert.NotEmpty(t, out["created_at"])
	assert.NotEmpty(t, out["updated_at"])
	result := out["result"].(map[string]any)
	assert.Equal(t, "# doc", result["markdown"])
	assert.NotContains(t, out, "error")

	failed := h.tasks.Create()
	h.tasks.Update(failed, constants.TaskStatusFailed, nil, "conversion failed")
	req, _ = http.NewRequest(http.MethodGet, h.srv.URL+"/task/"+failed, nil)
	_, out = do(t, req)
	assert.Equal(t, "conversion failed", out["error"])
	assert.NotContains(t, out, "result")

	req, _ = http.NewRequest(http.MethodGet, h.srv.URL+"/task/nonexistent", nil)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTask(t *testing.T) {
	h := newHarness(t)
	id := h.tasks.Create()

	req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/task/"+id, nil)
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := h.tasks.Get(id)
	assert.False(t, ok)

	resp, _ = do(t, req.Clone(context.Background()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	h := newHarness(t, WithAuth(StaticTokens{"secret": "user-7"}))
	url := h.srv.URL + "/reprocess"

	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(`{"document_id":"d"}`))
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	req, _ = http.NewRequest(http.MethodPost, url, strings.NewReader(`{"document_id":"d"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, url, strings.NewReader(`{"document_id":"d"}`))
	req.Header.Set("Authorization", "Basic c2VjcmV0")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, url, strings.NewReader(`{"document_id":"d"}`))
	req.Header.Set("Authorization", "Bearer secret")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, h.sub.reprocessed, 1)
	assert.Equal(t, "user-7", h.sub.reprocessed[0].UserID)
}

func TestCORS(t *testing.T) {
	h := newHarness(t)

	req, _ := http.NewRequest(http.MethodOptions, h.srv.URL+"/process", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:8080", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "authorization", resp.Header.Get("Access-Control-Allow-Headers"))

	req, _ = http.NewRequest(http.MethodGet, h.srv.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, _ = do(t, req)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/documents/export?status=completed&from_date=2025-01-02", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "documents.xlsx")
	b := new(bytes.Buffer)
	_, _ = b.ReadFrom(resp.Body)
	assert.Equal(t, "xlsx-bytes", b.String())
	assert.Equal(t, constants.DocumentStatusCompleted, h.exporter.filter.Status)
	require.NotNil(t, h.exporter.filter.From)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), *h.exporter.filter.From)

	req, _ = http.NewRequest(http.MethodGet, h.srv.URL+"/documents/export?from_date=01/02/2025", nil)
	resp2, _ := do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, h.srv.URL+"/documents/export?status=weird", nil)
	resp3, _ := do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestStaticTokens(t *testing.T) {
	v := StaticTokens{"a": "alice"}
	user, err := v.Verify(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	_, err = v.Verify(context.Background(), "b")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestHealthServer(t *testing.T) {
	hs, err := ListenHealth("127.0.0.1:0", nil)
	require.NoError(t, err)
	go func() { _ = hs.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 50*time.Millisecond)
}
