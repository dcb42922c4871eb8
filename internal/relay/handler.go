// internal/relay/handler.go
package relay

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"

	"github.com/labstack/echo/v4"
)

// maxFilterBytes bounds the search filter body.
const maxFilterBytes = 64 << 10

type Handler struct {
	relay  *Relay
	errors *apperrors.ErrorHandler
}

func NewHandler(r *Relay, log logger.Logger) *Handler {
	return &Handler{relay: r, errors: apperrors.NewErrorHandler(log)}
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/search", h.Trigger)
}

// failureBody is the JSON answer when the webhook could not be reached.
type failureBody struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	Upstream struct {
		Post Attempt `json:"post"`
		Get  Attempt `json:"get"`
	} `json:"upstream"`
}

func (h *Handler) Trigger(c echo.Context) error {
	// An unreadable body counts as empty filters, which then fails the
	// keywords check.
	filters := map[string]interface{}{}
	if data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFilterBytes)); err == nil {
		_ = json.Unmarshal(data, &filters)
	}
	if filters == nil {
		filters = map[string]interface{}{}
	}

	payload, err := h.relay.BuildPayload(filters)
	if err != nil {
		return h.errors.Respond(c, err)
	}

	result, err := h.relay.Trigger(c.Request().Context(), payload)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			body := failureBody{
				OK:      false,
				Error:   string(upErr.Code),
				Message: upErr.Message,
				Hint:    upErr.Hint,
			}
			body.Upstream.Post = upErr.Post
			body.Upstream.Get = upErr.Get
			return c.JSON(upErr.Status(), body)
		}
		return h.errors.Respond(c, apperrors.NewInternalError(err))
	}

	return c.JSON(http.StatusOK, result)
}
