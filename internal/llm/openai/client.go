package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Extract implements llm.Extractor.
func (c *Client) Extract(ctx context.Context, req llm.Request) (llm.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"document_type", req.DocumentType,
		"fields", len(req.Fields),
		"document_id", req.DocumentID,
		"file_search", c.cfg.FileSearch && req.DocumentID != "",
	)

	if c.cfg.APIKey == "" {
		c.log.Error("llm.extract.missing_key", "req_id", rid)
		return nil, common.NewExtractionError(common.ExtractionMissingCredentials, "OPENAI_API_KEY environment variable not set", nil)
	}
	if len(req.Fields) == 0 {
		return llm.Result{}, nil
	}

	var (
		content string
		err     error
	)
	if c.cfg.FileSearch && req.DocumentID != "" {
		content, err = c.fileSearch(ctx, rid, req)
	} else {
		content, err = c.chat(ctx, rid, req)
	}
	if err != nil {
		c.log.Error("llm.extract.failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	out, err := llm.DecodeFields(content, req.Fields)
	if err != nil {
		c.log.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"fields", len(out),
		"filled", countFilled(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) chat(ctx context.Context, rid string, req llm.Request) (string, error) {
	prompt := llm.BuildPrompt(req.DocumentType, req.Fields)
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": llm.BuildUserMessage(prompt, req.Text)},
		},
	}

	raw, err := c.send(ctx, "POST", "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.NewExtractionError(common.ExtractionMalformed, "decode openai response", err)
	}
	if len(cc.Choices) == 0 || cc.Choices[0].Message.Content == nil {
		c.log.Error("llm.extract.no_choices", "req_id", rid, "raw", string(raw))
		return "", common.NewExtractionError(common.ExtractionNoContent, "no valid response data received from OpenAI API", nil)
	}
	return *cc.Choices[0].Message.Content, nil
}

// send issues a JSON call and maps transport and status failures onto ExtractionError.
func (c *Client) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	raw, _, err := llm.SendJSON(ctx, c.http, method, url, body, c.headers(), c.log)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			return nil, common.NewExtractionError(common.ExtractionUnavailable, "OpenAI API Error", err)
		}
		return nil, common.NewExtractionError(common.ExtractionUnavailable, "OpenAI API unreachable", err)
	}
	return raw, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func countFilled(r llm.Result) int {
	n := 0
	for _, v := range r {
		if v != "" {
			n++
		}
	}
	return n
}

// fieldIDs is used in log lines.
func fieldIDs(fields []entity.SchemaField) string {
	return strings.Join(entity.FieldIDs(fields), ",")
}
