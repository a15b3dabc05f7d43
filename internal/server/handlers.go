package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/services/ingest"
)

type processResponse struct {
	Message      string             `json:"message"`
	TaskID       string             `json:"task_id"`
	Status       string             `json:"status"`
	DocumentInfo []*entity.Document `json:"document_info"`
}

type reprocessRequest struct {
	DocumentID string          `json:"document_id"`
	Fields     json.RawMessage `json:"fields"`
}

type reprocessResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, common.NewValidationError("file", fmt.Sprintf("exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeError(w, common.NewValidationError("body", "expected multipart/form-data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.NewValidationError("file", "is required"))
		return
	}
	defer func() { _ = file.Close() }()

	res, err := s.ingest.Submit(r.Context(), ingest.SubmitRequest{
		UserID:      common.UserIDFromContext(r.Context()),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
		Metadata:    []byte(r.FormValue("metadata")),
	})
	if err != nil {
		if common.HTTPStatus(err) >= http.StatusInternalServerError {
			s.logger.Error("http.process.failed", "file_name", header.Filename, "error", err)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Message:      "Document processing started",
		TaskID:       res.TaskID,
		Status:       string(constants.DocumentStatusProcessing),
		DocumentInfo: []*entity.Document{res.Document},
	})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, common.NewValidationError("body", "Invalid JSON body"))
		return
	}
	err := s.ingest.Reprocess(r.Context(), ingest.ReprocessRequest{
		UserID:     common.UserIDFromContext(r.Context()),
		DocumentID: req.DocumentID,
		Fields:     req.Fields,
	})
	if err != nil {
		if common.HTTPStatus(err) >= http.StatusInternalServerError {
			s.logger.Error("http.reprocess.failed", "document_id", req.DocumentID, "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reprocessResponse{Message: "Document reprocessed", DocumentID: strings.TrimSpace(req.DocumentID)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	task, ok := s.tasks.Get(id)
	if !ok {
		writeError(w, &common.NotFoundError{Resource: "task", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	if _, ok := s.tasks.Get(id); !ok {
		writeError(w, &common.NotFoundError{Resource: "task", ID: id})
		return
	}
	s.tasks.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := export.Filter{UserID: common.UserIDFromContext(r.Context())}
	if st := strings.TrimSpace(q.Get("status")); st != "" {
		if err := common.NewValidator().Field("status", st, common.OneOf(
			string(constants.DocumentStatusProcessing),
			string(constants.DocumentStatusCompleted),
			string(constants.DocumentStatusFailed),
		)).Error(); err != nil {
			writeError(w, err)
			return
		}
		f.Status = constants.DocumentStatus(st)
	}
	var err error
	if f.From, err = parseDate(q.Get("from_date")); err != nil {
		writeError(w, common.NewValidationError("from_date", "must be YYYY-MM-DD"))
		return
	}
	if f.To, err = parseDate(q.Get("to_date")); err != nil {
		writeError(w, common.NewValidationError("to_date", "must be YYYY-MM-DD"))
		return
	}

	xlsx, err := s.exporter.ExportDocumentsXLSX(r.Context(), f)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "user_id", f.UserID, "error", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
