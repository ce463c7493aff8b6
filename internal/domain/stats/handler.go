package stats

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/stats")
	g.GET("", h.Summary)
	g.GET("/clinicians", h.PerClinician, auth.RequireAdminTier())
	g.GET("/performance", h.Performance)
}

func (h *Handler) Summary(c echo.Context) error {
	var clinicianID *uuid.UUID
	if v := c.QueryParam("clinician_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid clinician_id")
		}
		clinicianID = &id
	}

	summary, err := h.svc.Summary(c.Request().Context(),
		c.QueryParam("start_date"), c.QueryParam("end_date"), clinicianID)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) PerClinician(c echo.Context) error {
	out, err := h.svc.PerClinician(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if out == nil {
		out = []ClinicianStats{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Performance(c echo.Context) error {
	out, err := h.svc.Performance(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if out == nil {
		out = []ModelStats{}
	}
	return c.JSON(http.StatusOK, out)
}
