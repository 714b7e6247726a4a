package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrEmailTaken            = errors.New("email already exists")
	ErrPasswordMismatch      = errors.New("password and confirmPassword do not match")
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// FieldError describes one failed rule on one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError enumerates every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// StatusCategory is the transport-neutral outcome class of an operation.
type StatusCategory string

const (
	StatusOK          StatusCategory = "ok"
	StatusClientError StatusCategory = "clientError"
	StatusConflict    StatusCategory = "conflict"
	StatusNotFound    StatusCategory = "notFound"
	StatusServerError StatusCategory = "serverError"
)

// CategoryOf classifies the error returned by an account operation.
// A nil error is StatusOK; anything unrecognised is StatusServerError.
func CategoryOf(err error) StatusCategory {
	var ve *ValidationError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &ve), errors.Is(err, ErrPasswordMismatch):
		return StatusClientError
	case errors.Is(err, ErrEmailTaken):
		return StatusConflict
	case errors.Is(err, ErrAccountNotFound):
		return StatusNotFound
	default:
		return StatusServerError
	}
}
