package clinician

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
)

const tokenTTL = 24 * time.Hour

type Handler struct {
	svc        *Service
	signingKey []byte
}

func NewHandler(svc *Service, signingKey []byte) *Handler {
	return &Handler{svc: svc, signingKey: signingKey}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)
	api.GET("/clinicians", h.ListClinicians, auth.RequireAdminTier())
}

// RegisterPublicRoutes attaches the routes that must work without a token.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"access_token"`
	User  *User  `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	token, err := auth.SignToken(h.signingKey, u.ID, u.Role, tokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot sign token")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

func (h *Handler) Me(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no principal")
	}
	u, err := h.svc.Get(c.Request().Context(), p.UserID)
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListClinicians(c echo.Context) error {
	users, err := h.svc.ListClinicians(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(apperrors.HTTPStatus(err), apperrors.PublicMessage(err)).SetInternal(err)
	}
	if users == nil {
		users = []*User{}
	}
	return c.JSON(http.StatusOK, users)
}
