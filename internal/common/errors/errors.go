// Package errors provides standardized error handling for the intake service.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request-shape errors
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRequestTooLarge  ErrorCode = "REQUEST_TOO_LARGE"
	ErrCodeBatchTooLarge    ErrorCode = "BATCH_TOO_LARGE"
	ErrCodeInvalidPayload   ErrorCode = "INVALID_PAYLOAD"

	// Throttling
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// Record-level errors
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidDate         ErrorCode = "INVALID_DATE"
	ErrCodeInvalidNumber       ErrorCode = "INVALID_NUMBER"
	ErrCodeSchoolResolveFailed ErrorCode = "SCHOOL_RESOLVE_FAILED"
	ErrCodeVacancyUpsertFailed ErrorCode = "VACANCY_UPSERT_FAILED"
	ErrCodeBatchTimeout        ErrorCode = "BATCH_TIMEOUT"

	// Backend errors
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	// Search relay upstream errors
	ErrCodeWebhookNotActive        ErrorCode = "N8N_WEBHOOK_NOT_ACTIVE"
	ErrCodeWebhookMethodMismatch   ErrorCode = "N8N_METHOD_MISMATCH"
	ErrCodeWebhookUnsupportedMedia ErrorCode = "N8N_UNSUPPORTED_MEDIA"
	ErrCodeWorkflowStartFailed     ErrorCode = "N8N_WORKFLOW_START_FAILED"
	ErrCodeUpstreamError           ErrorCode = "N8N_UPSTREAM_ERROR"
	ErrCodeKeywordsRequired        ErrorCode = "KEYWORDS_REQUIRED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func NewMethodNotAllowedError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   "Method not allowed",
		Details:   fmt.Sprintf("method: %s", method),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestTooLargeError reports a body over the byte ceiling.
func NewRequestTooLargeError(maxSize int64) *StandardError {
	return (&StandardError{
		Code:      ErrCodeRequestTooLarge,
		Message:   "Request too large",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}).WithMetadata("max_size", maxSize)
}

// NewBatchTooLargeError reports a batch over the item ceiling.
func NewBatchTooLargeError(received, maxAllowed int) *StandardError {
	return (&StandardError{
		Code:      ErrCodeBatchTooLarge,
		Message:   "Batch too large",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}).WithMetadata("received", received).WithMetadata("max_allowed", maxAllowed)
}

func NewInvalidPayloadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "Invalid JSON payload",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError carries the limit and window so callers can back off.
func NewRateLimitedError(limit int, window time.Duration) *StandardError {
	return (&StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Rate limit exceeded",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}).WithMetadata("limit", limit).WithMetadata("window_ms", window.Milliseconds())
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewKeywordsRequiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeKeywordsRequired,
		Message:   "Keywords are required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamError builds a relay error for a failed webhook call.
func NewUpstreamError(code ErrorCode, message, hint string) *StandardError {
	e := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: code == ErrCodeUpstreamError,
		Timestamp: time.Now().UTC(),
	}
	if hint != "" {
		e.WithMetadata("hint", hint)
	}
	return e
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Mapping
// ==========================

// HTTPStatusMapping maps error codes to the status returned to callers.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeBatchTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeInvalidPayload:   http.StatusBadRequest,
	ErrCodeKeywordsRequired: http.StatusBadRequest,
	ErrCodeRateLimited:      http.StatusTooManyRequests,

	ErrCodeValidationFailed: http.StatusUnprocessableEntity,
	ErrCodeInvalidDate:      http.StatusUnprocessableEntity,
	ErrCodeInvalidNumber:    http.StatusUnprocessableEntity,

	ErrCodeWebhookNotActive:        http.StatusFailedDependency,
	ErrCodeWebhookMethodMismatch:   http.StatusFailedDependency,
	ErrCodeWebhookUnsupportedMedia: http.StatusFailedDependency,
	ErrCodeWorkflowStartFailed:     http.StatusFailedDependency,
	ErrCodeUpstreamError:           http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status for code, 500 when unmapped.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsRetryableErrorCode checks if an error code represents a retryable error
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRateLimited,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeBatchTimeout,
		ErrCodeUpstreamError:
		return true
	}
	return false
}

// GetErrorCategory returns the category of an error code for metrics and logging
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeMethodNotAllowed, ErrCodeRequestTooLarge, ErrCodeBatchTooLarge,
		ErrCodeInvalidPayload, ErrCodeKeywordsRequired:
		return "request"
	case ErrCodeRateLimited:
		return "throttling"
	case ErrCodeValidationFailed, ErrCodeInvalidDate, ErrCodeInvalidNumber:
		return "validation"
	case ErrCodeSchoolResolveFailed, ErrCodeVacancyUpsertFailed,
		ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed:
		return "database"
	case ErrCodeBatchTimeout:
		return "timeout"
	case ErrCodeWebhookNotActive, ErrCodeWebhookMethodMismatch, ErrCodeWebhookUnsupportedMedia,
		ErrCodeWorkflowStartFailed, ErrCodeUpstreamError:
		return "upstream"
	}
	return "internal"
}
