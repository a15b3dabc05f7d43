package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
)

// RemoteConfig configures the agentic document analysis endpoint.
type RemoteConfig struct {
	URL     string        // default https://api.va.landing.ai/v1/tools/agentic-document-analysis
	APIKey  string        // if empty, falls back to env VISION_AGENT_API_KEY
	Timeout time.Duration // http client timeout
}

// RemoteConverter uploads the document to a hosted conversion engine.
type RemoteConverter struct {
	cfg    RemoteConfig
	http   *http.Client
	logger *slog.Logger
}

func NewRemoteConverter(cfg RemoteConfig, logger *slog.Logger) *RemoteConverter {
	if cfg.URL == "" {
		cfg.URL = "https://api.va.landing.ai/v1/tools/agentic-document-analysis"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("VISION_AGENT_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteConverter{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type analysisResponse struct {
	Data struct {
		Markdown string `json:"markdown"`
		Chunks   []struct {
			Text      string `json:"text"`
			ChunkType string `json:"chunk_type"`
		} `json:"chunks"`
	} `json:"data"`
	Errors []struct {
		PageNum int    `json:"page_num"`
		Error   string `json:"error"`
	} `json:"errors"`
}

func (c *RemoteConverter) Convert(ctx context.Context, loc Locator) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.APIKey == "" {
		return Result{}, &common.ConversionError{Reason: "VISION_AGENT_API_KEY is not set"}
	}
	if loc.Path == "" {
		return Result{}, &common.ConversionError{Reason: "no local file to upload"}
	}
	name := loc.FileName
	if name == "" {
		name = filepath.Base(loc.Path)
	}

	c.logger.Info("convert.remote.start", "req_id", rid, "file", name, "url", c.cfg.URL)

	raw, err := c.post(ctx, loc.Path, name)
	if err != nil {
		c.logger.Error("convert.remote.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, &common.ConversionError{Reason: "engine request failed", Err: err}
	}

	var ar analysisResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		c.logger.Error("convert.remote.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return Result{}, &common.ConversionError{Reason: "decode engine response", Err: err}
	}

	res := Result{NormalizedText: strings.TrimSpace(ar.Data.Markdown)}
	for _, ch := range ar.Data.Chunks {
		res.Chunks = append(res.Chunks, Chunk{Type: ch.ChunkType, Content: ch.Text})
	}
	for _, e := range ar.Errors {
		res.Chunks = append(res.Chunks, Chunk{
			Type:    ChunkTypeError,
			Content: fmt.Sprintf("page %d: %s", e.PageNum, e.Error),
		})
	}
	if len(res.Chunks) == 0 && res.NormalizedText == "" {
		c.logger.Warn("convert.remote.empty", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, &common.ConversionError{Reason: "no results returned"}
	}

	c.logger.Info("convert.remote.ok",
		"req_id", rid,
		"chunks", len(res.Chunks),
		"error_chunks", len(res.ErrorChunks()),
		"markdown_len", len(res.NormalizedText),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *RemoteConverter) post(ctx context.Context, path, name string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	field := "image"
	if constants.MapExtToFormat(filepath.Ext(name)) == constants.PDF {
		field = "pdf"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("convert.remote.body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("conversion status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
