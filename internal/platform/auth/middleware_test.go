package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Principal
	handler := mw(func(c echo.Context) error {
		if p, ok := PrincipalFromContext(c.Request().Context()); ok {
			seen = &p
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, seen
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := SignToken(testKey, userID, RoleClinician, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec, seen := doRequest(t, JWTMiddleware(testKey), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil {
		t.Fatal("principal not set")
	}
	if seen.UserID != userID || seen.Role != RoleClinician {
		t.Errorf("unexpected principal: %+v", seen)
	}
}

func TestJWTMiddleware_MissingToken(t *testing.T) {
	rec, _ := doRequest(t, JWTMiddleware(testKey), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token, _ := SignToken([]byte("other-key"), uuid.New(), RoleAdmin, time.Hour)
	rec, _ := doRequest(t, JWTMiddleware(testKey), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	token, _ := SignToken(testKey, uuid.New(), RoleAdmin, -time.Minute)
	rec, _ := doRequest(t, JWTMiddleware(testKey), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	token, _ := SignToken(testKey, uuid.New(), Role("intern"), time.Hour)
	rec, _ := doRequest(t, JWTMiddleware(testKey), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdminTier(t *testing.T) {
	e := echo.New()

	run := func(p *Principal) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			req = req.WithContext(WithPrincipal(req.Context(), *p))
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := RequireAdminTier()(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		if err := h(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	if code := run(&Principal{UserID: uuid.New(), Role: RoleAdmin}); code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", code)
	}
	if code := run(&Principal{UserID: uuid.New(), Role: RoleSuperAdmin}); code != http.StatusOK {
		t.Errorf("super-admin: expected 200, got %d", code)
	}
	if code := run(&Principal{UserID: uuid.New(), Role: RoleClinician}); code != http.StatusForbidden {
		t.Errorf("clinician: expected 403, got %d", code)
	}
	if code := run(nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	_, seen := doRequest(t, DevAuthMiddleware(), "")
	if seen == nil {
		t.Fatal("principal not set")
	}
	if seen.Role != RoleSuperAdmin {
		t.Errorf("expected super-admin, got %s", seen.Role)
	}
}
