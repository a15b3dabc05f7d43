package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/common"
)

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(Config{
		Root:          t.TempDir(),
		PublicBaseURL: "http://files.local/files/",
		TempDir:       t.TempDir(),
	}, nil)
	require.NoError(t, err)
	return s
}

func TestUpload(t *testing.T) {
	s := newStore(t)
	obj, err := s.Upload(context.Background(), "user-1", "Pay Slip.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.Key, "user-1/"), obj.Key)
	assert.True(t, strings.HasSuffix(obj.Key, ".pdf"), obj.Key)
	assert.Equal(t, "http://files.local/files/documents/"+obj.Key, obj.URL)
	assert.Equal(t, int64(8), obj.Size)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Len(t, obj.SHA256, 64)

	b, err := os.ReadFile(s.objectPath(obj.Key))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))

	other, err := s.Upload(context.Background(), "user-1", "Pay Slip.PDF", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotEqual(t, obj.Key, other.Key)
}

func TestStageAndCleanup(t *testing.T) {
	s := newStore(t)
	p, n, err := s.StageTemp("scan.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
	assert.Equal(t, ".png", filepath.Ext(p))

	require.NoError(t, s.Cleanup(p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Cleanup(p), "already removed")
	assert.NoError(t, s.Cleanup(""))
}

func TestCleanupFailureIsStorageError(t *testing.T) {
	s := newStore(t)
	dir := filepath.Join(t.TempDir(), "busy")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "child"), 0o755))

	err := s.Cleanup(dir)
	var se *common.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "cleanup", se.Op)
}

func TestHandlerServesObjects(t *testing.T) {
	s := newStore(t)
	obj, err := s.Upload(context.Background(), "u", "a.png", strings.NewReader("image"))
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler("/files"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/files/documents/" + obj.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image", string(body))

	resp, err = http.Get(srv.URL + "/files/documents/u/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
