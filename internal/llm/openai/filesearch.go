package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// ErrNoCitation is wrapped when a file_search answer does not cite the indexed document.
var ErrNoCitation = errors.New("response carried no file citation")

// fileSearch answers from an indexed copy of the document text, reusing the
// vector store recorded for req.DocumentID when there is one.
func (c *Client) fileSearch(ctx context.Context, rid string, req llm.Request) (string, error) {
	storeID, err := c.ensureVectorStore(ctx, rid, req)
	if err != nil {
		return "", err
	}

	prompt := llm.BuildPrompt(req.DocumentType, req.Fields)
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"input":       prompt + "\n\nUse the attached document as the only source.",
		"tools": []map[string]any{{
			"type":             "file_search",
			"vector_store_ids": []string{storeID},
		}},
	}
	raw, err := c.send(ctx, http.MethodPost, "/responses", body)
	if err != nil {
		return "", err
	}

	var rr struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				Annotations []struct {
					Type string `json:"type"`
				} `json:"annotations"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &rr); err != nil {
		return "", common.NewExtractionError(common.ExtractionMalformed, "decode openai response", err)
	}

	var (
		text  strings.Builder
		cited bool
	)
	for _, item := range rr.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			text.WriteString(part.Text)
			for _, a := range part.Annotations {
				if a.Type == "file_citation" {
					cited = true
				}
			}
		}
	}
	if text.Len() == 0 {
		return "", common.NewExtractionError(common.ExtractionNoContent, "no valid response data received from OpenAI API", nil)
	}
	if !cited {
		c.log.Warn("llm.filesearch.no_citation", "req_id", rid, "vector_store_id", storeID, "fields", fieldIDs(req.Fields))
		return "", common.NewExtractionError(common.ExtractionNoContent, "answer not grounded in document", ErrNoCitation)
	}
	return text.String(), nil
}

func (c *Client) ensureVectorStore(ctx context.Context, rid string, req llm.Request) (string, error) {
	ref, err := c.artifacts.GetArtifact(ctx, req.DocumentID)
	switch {
	case err == nil && ref != "":
		c.log.Info("llm.filesearch.reuse", "req_id", rid, "document_id", req.DocumentID, "vector_store_id", ref)
		return ref, nil
	case err != nil && !errors.Is(err, llm.ErrArtifactMiss):
		c.log.Warn("llm.filesearch.artifact_lookup_failed", "req_id", rid, "document_id", req.DocumentID, "error", err)
	}

	fileID, err := c.uploadText(ctx, req.DocumentID+".md", req.Text)
	if err != nil {
		return "", err
	}
	raw, err := c.send(ctx, http.MethodPost, "/vector_stores", map[string]any{
		"name":     "document-" + req.DocumentID,
		"file_ids": []string{fileID},
	})
	if err != nil {
		return "", err
	}
	var vs vectorStore
	if err := json.Unmarshal(raw, &vs); err != nil || vs.ID == "" {
		return "", common.NewExtractionError(common.ExtractionMalformed, "decode vector store", err)
	}
	if err := c.waitIndexed(ctx, vs); err != nil {
		return "", err
	}

	if err := c.artifacts.PutArtifact(ctx, req.DocumentID, vs.ID); err != nil {
		c.log.Warn("llm.filesearch.artifact_store_failed", "req_id", rid, "document_id", req.DocumentID, "error", err)
	}
	c.log.Info("llm.filesearch.indexed", "req_id", rid, "document_id", req.DocumentID, "file_id", fileID, "vector_store_id", vs.ID)
	return vs.ID, nil
}

type vectorStore struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	FileCounts struct {
		InProgress int `json:"in_progress"`
		Failed     int `json:"failed"`
	} `json:"file_counts"`
}

func (c *Client) waitIndexed(ctx context.Context, vs vectorStore) error {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	for {
		switch {
		case vs.FileCounts.Failed > 0 || vs.Status == "expired":
			return common.NewExtractionError(common.ExtractionUnavailable, "document indexing failed", fmt.Errorf("vector store %s status %s", vs.ID, vs.Status))
		case vs.Status == "completed" && vs.FileCounts.InProgress == 0:
			return nil
		case time.Now().After(deadline):
			return common.NewExtractionError(common.ExtractionUnavailable, "document indexing timed out", nil)
		}

		select {
		case <-ctx.Done():
			return common.NewExtractionError(common.ExtractionUnavailable, "document indexing interrupted", ctx.Err())
		case <-time.After(c.cfg.PollInterval):
		}

		raw, err := c.send(ctx, http.MethodGet, "/vector_stores/"+vs.ID, nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &vs); err != nil {
			return common.NewExtractionError(common.ExtractionMalformed, "decode vector store", err)
		}
	}
}

// uploadText stores text as a file for indexing and returns its file id.
func (c *Client) uploadText(ctx context.Context, name, text string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.WriteString(part, text); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.NewExtractionError(common.ExtractionUnavailable, "OpenAI API unreachable", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", common.NewExtractionError(common.ExtractionUnavailable, "OpenAI API Error",
			&llm.StatusError{StatusCode: resp.StatusCode, Body: raw})
	}
	var f struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &f); err != nil || f.ID == "" {
		return "", common.NewExtractionError(common.ExtractionMalformed, "decode file upload", err)
	}
	return f.ID, nil
}
