package patient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/pkg/pagination"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

type createRequest struct {
	LastName  string  `json:"last_name"`
	FirstName string  `json:"first_name"`
	BirthDate string  `json:"birth_date"`
	Sex       Sex     `json:"sex"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
}

type updateRequest struct {
	LastName  *string `json:"last_name"`
	FirstName *string `json:"first_name"`
	BirthDate *string `json:"birth_date"`
	Sex       *Sex    `json:"sex"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	birth, err := time.Parse(dateLayout, req.BirthDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
	}

	p, err := h.svc.Create(c.Request().Context(), CreateInput{
		LastName:  req.LastName,
		FirstName: req.FirstName,
		BirthDate: birth,
		Sex:       req.Sex,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	})
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("search"), pg.Limit, pg.Skip)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Skip))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	in := UpdateInput{
		LastName:  req.LastName,
		FirstName: req.FirstName,
		Sex:       req.Sex,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	}
	if req.BirthDate != nil {
		birth, err := time.Parse(dateLayout, *req.BirthDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
		}
		in.BirthDate = &birth
	}

	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}
