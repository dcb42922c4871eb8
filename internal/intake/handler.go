// internal/intake/handler.go
package intake

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recruit-intake/internal/common/config"
	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/common/metrics"
	"recruit-intake/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

const anonymousClient = "anonymous"

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type, x-api-key",
	"Access-Control-Allow-Methods": "POST, OPTIONS",
}

// Handler serves the batch intake endpoint.
type Handler struct {
	runner  *Runner
	limiter ratelimit.Limiter
	cfg     config.IntakeConfig
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(runner *Runner, limiter ratelimit.Limiter, cfg config.IntakeConfig, log logger.Logger) *Handler {
	return &Handler{
		runner:  runner,
		limiter: limiter,
		cfg:     cfg,
		errors:  apperrors.NewErrorHandler(log),
		logger:  log.WithFields(map[string]interface{}{"component": "intake-handler"}),
	}
}

// Register mounts the endpoint. Every method is routed here so that wrong
// methods get the JSON 405 with CORS headers.
func (h *Handler) Register(e *echo.Echo) {
	e.Any("/intake", h.Handle)
}

func (h *Handler) Handle(c echo.Context) error {
	for k, v := range corsHeaders {
		c.Response().Header().Set(k, v)
	}

	req := c.Request()
	switch req.Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusNoContent)
	case http.MethodPost:
	default:
		return h.errors.Respond(c, apperrors.NewMethodNotAllowedError(req.Method))
	}

	if req.ContentLength > h.cfg.MaxRequestBytes {
		return h.errors.Respond(c, apperrors.NewRequestTooLargeError(h.cfg.MaxRequestBytes))
	}

	clientID := ClientID(req)
	decision := h.limiter.Allow(req.Context(), clientID)
	if !decision.Allowed {
		metrics.RateLimitDecisions.WithLabelValues("rejected").Inc()
		retry := int(math.Ceil(decision.RetryAfter(time.Now()).Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
		h.logger.Warn("rate limit exceeded", map[string]interface{}{
			"clientId": clientID,
			"limit":    decision.Limit,
		})
		return h.errors.Respond(c, apperrors.NewRateLimitedError(decision.Limit, decision.Window))
	}
	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, h.cfg.MaxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return h.errors.Respond(c, apperrors.NewRequestTooLargeError(h.cfg.MaxRequestBytes))
		}
		return h.errors.Respond(c, apperrors.NewInvalidPayloadError(err))
	}

	items, err := DecodeBatch(body)
	if err != nil {
		return h.errors.Respond(c, apperrors.NewInvalidPayloadError(err))
	}

	if len(items) > h.cfg.MaxBatchSize {
		return h.errors.Respond(c, apperrors.NewBatchTooLargeError(len(items), h.cfg.MaxBatchSize))
	}

	log := logger.FromContext(req.Context(), h.logger)
	log.Info("received intake payload", map[string]interface{}{
		"clientId": clientID,
		"items":    len(items),
	})

	result, err := h.runner.Run(req.Context(), items)
	if err != nil {
		log.Error("intake batch failed", map[string]interface{}{
			"error":     err,
			"processed": result.Processed,
		})
		return c.JSON(http.StatusInternalServerError, result)
	}

	return c.JSON(http.StatusOK, result)
}

// ClientID picks the rate-limit bucket key: x-api-key, else the first
// x-forwarded-for address, else a shared anonymous bucket. It is not an
// authentication check.
func ClientID(req *http.Request) string {
	if key := strings.TrimSpace(req.Header.Get("x-api-key")); key != "" {
		return key
	}
	if fwd := req.Header.Get("x-forwarded-for"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	return anonymousClient
}
