package convert

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/ocr"
)

func TestClassify(t *testing.T) {
	t.Run("clean result is OK", func(t *testing.T) {
		o := Classify(Result{NormalizedText: "# Pay", Chunks: []Chunk{{Type: "text", Content: "Pay"}}}, nil)
		assert.Equal(t, OK{Text: "# Pay"}, o)
	})

	t.Run("any error chunk is PartialError even with text", func(t *testing.T) {
		res := Result{NormalizedText: "some text", Chunks: []Chunk{
			{Type: "text", Content: "ok"},
			{Type: "error", Content: "page 2: timeout"},
		}}
		o := Classify(res, nil)
		pe, ok := o.(PartialError)
		require.True(t, ok, "got %T", o)
		assert.Equal(t, []Chunk{{Type: "error", Content: "page 2: timeout"}}, pe.Chunks)
		assert.Equal(t, "page 2: timeout", pe.Summary())
	})

	t.Run("error chunk type is case insensitive", func(t *testing.T) {
		_, ok := Classify(Result{Chunks: []Chunk{{Type: "ERROR"}}}, nil).(PartialError)
		assert.True(t, ok)
	})

	t.Run("zero results is Failed", func(t *testing.T) {
		f, ok := Classify(Result{}, nil).(Failed)
		require.True(t, ok)
		var ce *common.ConversionError
		assert.ErrorAs(t, f.Reason, &ce)
	})

	t.Run("adapter error is Failed and wrapped", func(t *testing.T) {
		f, ok := Classify(Result{}, errors.New("dial tcp")).(Failed)
		require.True(t, ok)
		var ce *common.ConversionError
		require.ErrorAs(t, f.Reason, &ce)
		assert.Contains(t, f.Reason.Error(), "dial tcp")
	})
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestRemoteConverter_SurfacesErrorChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic secret", r.Header.Get("Authorization"))
		f, hdr, err := r.FormFile("pdf")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.7", string(b))
		assert.Equal(t, "stub.pdf", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"markdown": "  # Stub  ", "chunks": [
				{"text": "Stub", "chunk_type": "title"},
				{"text": "could not parse table", "chunk_type": "error"}
			]},
			"errors": [{"page_num": 2, "error": "timeout"}]
		}`))
	}))
	defer srv.Close()

	c := NewRemoteConverter(RemoteConfig{URL: srv.URL, APIKey: "secret"}, nil)
	res, err := c.Convert(context.Background(), Locator{Path: writeTempFile(t, "stub.pdf", "%PDF-1.7")})
	require.NoError(t, err)

	assert.Equal(t, "# Stub", res.NormalizedText)
	assert.Equal(t, []Chunk{
		{Type: "title", Content: "Stub"},
		{Type: "error", Content: "could not parse table"},
		{Type: "error", Content: "page 2: timeout"},
	}, res.Chunks)
}

func TestRemoteConverter_ImageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("image")
		assert.NoError(t, err)
		_, _ = w.Write([]byte(`{"data": {"markdown": "img", "chunks": []}}`))
	}))
	defer srv.Close()

	c := NewRemoteConverter(RemoteConfig{URL: srv.URL, APIKey: "k"}, nil)
	res, err := c.Convert(context.Background(), Locator{Path: writeTempFile(t, "scan.png", "png"), FileName: "scan.png"})
	require.NoError(t, err)
	assert.Equal(t, "img", res.NormalizedText)
}

func TestRemoteConverter_Failures(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"markdown": "", "chunks": []}}`))
	}))
	defer empty.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer broken.Close()

	t.Setenv("VISION_AGENT_API_KEY", "")
	path := writeTempFile(t, "a.pdf", "x")
	cases := map[string]*RemoteConverter{
		"no results":  NewRemoteConverter(RemoteConfig{URL: empty.URL, APIKey: "k"}, nil),
		"non-2xx":     NewRemoteConverter(RemoteConfig{URL: broken.URL, APIKey: "k"}, nil),
		"missing key": NewRemoteConverter(RemoteConfig{URL: empty.URL}, nil),
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Convert(context.Background(), Locator{Path: path})
			var ce *common.ConversionError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

type stubPages struct {
	res ocr.ExtractionResult
	err error
}

func (s stubPages) Extract(context.Context, string) (ocr.ExtractionResult, error) {
	return s.res, s.err
}

func TestLocalConverter(t *testing.T) {
	c := NewLocalConverter(stubPages{res: ocr.ExtractionResult{Pages: []ocr.Page{
		{Number: 1, Text: "alpha"},
		{Number: 2, Err: errors.New("tesseract: exit 1")},
		{Number: 3, Text: "gamma"},
	}}}, nil)

	res, err := c.Convert(context.Background(), Locator{Path: "doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "alpha\n\ngamma", res.NormalizedText)
	require.Len(t, res.ErrorChunks(), 1)
	assert.Contains(t, res.ErrorChunks()[0].Content, "page 2")

	_, isPartial := Classify(res, nil).(PartialError)
	assert.True(t, isPartial)
}

func TestLocalConverter_NoPages(t *testing.T) {
	c := NewLocalConverter(stubPages{}, nil)
	_, err := c.Convert(context.Background(), Locator{Path: "doc.pdf"})
	var ce *common.ConversionError
	assert.ErrorAs(t, err, &ce)

	c = NewLocalConverter(stubPages{err: errors.New("unsupported")}, nil)
	_, err = c.Convert(context.Background(), Locator{Path: "doc.pdf"})
	assert.ErrorAs(t, err, &ce)
}
