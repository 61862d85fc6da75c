package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pooledbismuth/poolstats/internal/stats"
)

// Error represents an API error
type Error struct {
	Code    int
	Status  int
	Message string
	Err     error
}

// NewError creates a new API error
func NewError(code, status int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Err:     err,
	}
}

// InvalidParams wraps a parameter decoding failure.
func InvalidParams(err error) *Error {
	return NewError(ErrInvalidParams, http.StatusBadRequest, "Invalid params", err)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail is the client-facing description of the failure. Internal errors
// are not echoed back.
func (e *Error) Detail() string {
	if e.Err == nil || e.Status >= http.StatusInternalServerError {
		return e.Message
	}
	return e.Err.Error()
}

// Classify maps a reporter error onto its JSON-RPC code and HTTP status.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, stats.ErrNotFound):
		return NewError(ErrNotFound, http.StatusNotFound, "Not found", err)
	case errors.Is(err, stats.ErrNoData):
		return NewError(ErrNoData, http.StatusNotFound, "No data", err)
	case errors.Is(err, stats.ErrInsufficientData):
		return NewError(ErrInsufficientData, http.StatusUnprocessableEntity, "Insufficient data", err)
	default:
		return NewError(ErrServerError, http.StatusInternalServerError, "Server error", err)
	}
}
