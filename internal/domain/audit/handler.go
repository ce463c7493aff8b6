package audit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
	"github.com/fibrose/fibrose/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireAdminTier())
	g.GET("/audit", h.List)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filters := Filters{
		Action:     c.QueryParam("action"),
		EntityType: c.QueryParam("entity_type"),
	}
	if v := c.QueryParam("principal_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid principal_id")
		}
		filters.PrincipalID = &id
	}

	items, total, err := h.svc.List(c.Request().Context(), filters, pg.Limit, pg.Skip)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if items == nil {
		items = []*Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Skip))
}

// SourceAddrMiddleware stamps the caller's address into the request context
// so service-level audit entries can attribute the action.
func SourceAddrMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithSourceAddress(c.Request().Context(), c.RealIP())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
