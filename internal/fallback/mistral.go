// Package fallback re-reads a document through a hosted OCR model when the
// primary conversion engine yields nothing usable.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Config for the Mistral OCR client.
type Config struct {
	URL     string        // default https://api.mistral.ai/v1/ocr
	APIKey  string        // if empty, falls back to env VITE_MISTRAL_API_KEY, then MISTRAL_API_KEY
	Model   string        // default "mistral-ocr-latest"
	Timeout time.Duration // http client timeout
}

// Client calls the Mistral OCR endpoint with a public document URL.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://api.mistral.ai/v1/ocr"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("VITE_MISTRAL_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MISTRAL_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-ocr-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: logger}
}

type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// Convert returns the page markdown of the document at documentURL joined by blank lines.
func (c *Client) Convert(ctx context.Context, documentURL string) (string, error) {
	start := time.Now()
	if c.cfg.APIKey == "" {
		c.log.Error("fallback.ocr.missing_key")
		return "", &common.FallbackError{Reason: "VITE_MISTRAL_API_KEY environment variable not set"}
	}
	if documentURL == "" {
		return "", &common.FallbackError{Reason: "document url is empty"}
	}

	body := ocrRequest{
		Model:    c.cfg.Model,
		Document: ocrDocument{Type: "document_url", DocumentURL: documentURL},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.http, http.MethodPost, c.cfg.URL, body, headers, c.log)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			return "", &common.FallbackError{Reason: "mistral ocr rejected the request", Err: err}
		}
		return "", &common.FallbackError{Reason: "mistral ocr unreachable", Err: err}
	}

	var resp ocrResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &common.FallbackError{Reason: "decode mistral ocr response", Err: err}
	}
	if len(resp.Pages) == 0 {
		return "", &common.FallbackError{Reason: "no pages returned"}
	}

	pages := make([]string, 0, len(resp.Pages))
	for _, p := range resp.Pages {
		pages = append(pages, p.Markdown)
	}
	text := JoinPages(pages)
	if text == "" {
		return "", &common.FallbackError{Reason: "all pages empty"}
	}

	c.log.Info("fallback.ocr.ok",
		"pages", len(resp.Pages),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// JoinPages concatenates non-empty pages with a blank line between them.
func JoinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
