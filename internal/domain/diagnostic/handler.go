package diagnostic

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/diagnostics")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/image", h.Image)
	g.DELETE("/:id", h.Delete)
}

// Create accepts a multipart form: an "image" file plus "patient_id" and
// optional "model_name" and "notes" fields.
func (h *Handler) Create(c echo.Context) error {
	patientID, err := uuid.Parse(c.FormValue("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read image file")
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read image file")
	}

	in := CreateInput{
		PatientID: patientID,
		ModelName: c.FormValue("model_name"),
		Image:     data,
		ImageExt:  filepath.Ext(fh.Filename),
	}
	if notes := c.FormValue("notes"); notes != "" {
		in.Notes = &notes
	}

	d, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	var filters Filters
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filters.PatientID = &id
	}
	if v := c.QueryParam("stage"); v != "" {
		stage, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid stage")
		}
		filters.Stage = &stage
	}

	items, total, err := h.svc.List(c.Request().Context(), filters, pg.Limit, pg.Skip)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if items == nil {
		items = []*Diagnostic{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Skip))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnostic id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Image(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnostic id")
	}
	rc, locator, err := h.svc.OpenImage(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(locator))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("inline; filename=%q", locator))
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid diagnostic id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
