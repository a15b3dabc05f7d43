package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ConversionError is returned by the primary conversion engine when it yields no usable result.
type ConversionError struct {
	Reason string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return "conversion failed: " + e.Reason
}

func (e *ConversionError) Unwrap() error { return e.Err }

// FallbackError is returned by the fallback OCR engine.
type FallbackError struct {
	Reason string
	Err    error
}

func (e *FallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fallback ocr failed: %s: %v", e.Reason, e.Err)
	}
	return "fallback ocr failed: " + e.Reason
}

func (e *FallbackError) Unwrap() error { return e.Err }

// ExtractionErrorKind distinguishes the causes of an extraction failure.
type ExtractionErrorKind string

const (
	ExtractionMissingCredentials ExtractionErrorKind = "missing_credentials"
	ExtractionUnavailable        ExtractionErrorKind = "unavailable"
	ExtractionNoContent          ExtractionErrorKind = "no_content"
	ExtractionMalformed          ExtractionErrorKind = "malformed"
)

// ExtractionError is returned by the field extraction step.
type ExtractionError struct {
	Kind    ExtractionErrorKind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction failed (%s): %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError builds an ExtractionError of the given kind.
func NewExtractionError(kind ExtractionErrorKind, message string, cause error) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: message, Err: cause}
}

// IsExtractionKind reports whether err is an ExtractionError of the given kind.
func IsExtractionKind(err error, kind ExtractionErrorKind) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == kind
}

// NotFoundError reports an unknown task handle or record id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError reports a failed file operation (upload, staging, cleanup).
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// HTTPStatus maps an error onto the HTTP status surfaced to callers.
func HTTPStatus(err error) int {
	var (
		verr  ValidationError
		vperr *ValidationError
		nf    *NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr), errors.As(err, &vperr),
		errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &nf), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
