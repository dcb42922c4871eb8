// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestStartKey is the echo context key holding the time a request arrived.
const RequestStartKey = "request_start"

// ErrorHandler renders errors as the JSON bodies callers expect.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Body builds the response body for err: {"error": message, ...metadata}.
func Body(stdErr *StandardError) map[string]interface{} {
	body := map[string]interface{}{
		"error": stdErr.Message,
		"code":  string(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		body[k] = v
	}
	return body
}

// Respond writes err to the client with its mapped status code.
func (h *ErrorHandler) Respond(c echo.Context, err error) error {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)
	body := Body(stdErr)
	if status >= http.StatusInternalServerError {
		h.logError(c, stdErr)
		markFailed(c, body)
	}
	return c.JSON(status, body)
}

// markFailed adds the fields every 500 body carries: success, elapsed time
// since the request arrived and a timestamp.
func markFailed(c echo.Context, body map[string]interface{}) {
	var elapsed int64
	if start, ok := c.Get(RequestStartKey).(time.Time); ok {
		elapsed = time.Since(start).Milliseconds()
	}
	body["success"] = false
	body["processing_time_ms"] = elapsed
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
}

// HandleHTTPError is installed as echo's HTTPErrorHandler so router errors
// and panics recovered by middleware get the same JSON shape.
func (h *ErrorHandler) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		body := map[string]interface{}{"error": msg}
		if he.Code >= http.StatusInternalServerError {
			markFailed(c, body)
		}
		_ = c.JSON(he.Code, body)
		return
	}

	_ = h.Respond(c, err)
}

// Normalize ensures we always have a StandardError
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(c echo.Context, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	h.logger.Error("request failed", map[string]interface{}{
		"method":        c.Request().Method,
		"path":          c.Path(),
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
