package server

import (
	"strconv"
	"time"

	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an id and stores a logger
// carrying that id in both the echo context and the request context.
func RequestIDMiddleware(base logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(apperrors.RequestStartKey, time.Now())

			req := c.Request()
			requestID := req.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				req.Header.Set(requestIDHeader, requestID)
			}
			c.Response().Header().Set(requestIDHeader, requestID)
			c.Set("request_id", requestID)

			log := base.With(map[string]interface{}{"requestId": requestID})
			c.Set("logger", log)
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), log)))

			return next(c)
		}
	}
}

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		method := c.Request().Method
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Response().Status)

		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return nil
	}
}
