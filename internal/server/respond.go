package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/docextract/internal/common"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("http.response.encode_failed", "error", err)
	}
}

// writeError maps err onto its HTTP status. 5xx details are replaced with a
// generic message.
func writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	body := errorBody{Error: errorCode(err, status), Detail: err.Error()}
	if status >= http.StatusInternalServerError {
		body.Detail = "internal server error"
	}
	writeJSON(w, status, body)
}

func errorCode(err error, status int) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && status >= http.StatusInternalServerError {
		return appErr.Code
	}
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}
