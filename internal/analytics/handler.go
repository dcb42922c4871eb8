// internal/analytics/handler.go
package analytics

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc    *Service
	errors *apperrors.ErrorHandler
}

func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, errors: apperrors.NewErrorHandler(log)}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/analytics/summary", h.Summary)
	g.GET("/schools", h.ListSchools)
	g.GET("/vacancies", h.ListVacancies)
}

func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.svc.Summary(c.Request().Context())
	if err != nil {
		return h.errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListSchools(c echo.Context) error {
	schools, err := h.svc.ListSchools(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")))
	if err != nil {
		return h.errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"schools": schools, "count": len(schools)})
}

func (h *Handler) ListVacancies(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = DefaultLimit
	}
	vacancies, err := h.svc.ListVacancies(c.Request().Context(), limit, c.QueryParam("status"))
	if err != nil {
		return h.errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"vacancies": vacancies, "count": len(vacancies)})
}
