package common

import (
	"errors"
	"fmt"
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

// NewAppError creates a new application error
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Sentinel classes for the pipeline's error taxonomy. Wrap with
// fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	// ErrInvalidInput marks caller mistakes (bad config, bad arguments).
	ErrInvalidInput = errors.New("invalid input")

	// ErrFatalDocument aborts the whole document; nothing is persisted.
	// Raised for unreadable files, detector init failures, and an
	// extractor that returns no content.
	ErrFatalDocument = errors.New("fatal document error")

	// ErrRecoverablePage isolates a single page's failure; processing
	// continues with the remaining pages.
	ErrRecoverablePage = errors.New("recoverable page error")

	// ErrSchemaValidation marks an LLM reply that failed JSON parsing or
	// schema checks. Retried before promotion to a fatal or page error.
	ErrSchemaValidation = errors.New("schema validation error")

	// ErrIndexConsistency marks an LLM reply referencing an out-of-range
	// block index. Shares the retry budget with schema errors.
	ErrIndexConsistency = errors.New("index consistency error")

	// ErrProviderCall marks a network/API failure talking to the LLM.
	ErrProviderCall = errors.New("provider call error")
)

// IsFatal reports whether err aborts the whole document.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalDocument)
}
