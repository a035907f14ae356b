package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/utils"
)

const testSecret = "unit-test-secret"

func runProtected(t *testing.T, authHeader string, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		t.Fatalf("handler chain: %v", err)
	}
	return rec
}

func bearerFor(t *testing.T, isAdmin bool) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, 7, "TEAM_A", "alice", "alice@example.com", isAdmin, 5)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + at.Token
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	if rec := runProtected(t, "", JWTAuth(testSecret)); rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rec.Code)
	}
	if rec := runProtected(t, "Bearer not-a-jwt", JWTAuth(testSecret)); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}

	other, err := utils.NewAccessToken("different-secret", 7, "TEAM_A", "alice", "alice@example.com", false, 5)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if rec := runProtected(t, "Bearer "+other.Token, JWTAuth(testSecret)); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthInjectsClaims(t *testing.T) {
	e := echo.New()
	var gotTeam, gotName interface{}
	h := JWTAuth(testSecret)(func(c echo.Context) error {
		gotTeam = c.Get("team")
		gotName = c.Get("user_name")
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearerFor(t, false))
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotTeam != "TEAM_A" {
		t.Errorf("team claim = %v, want TEAM_A", gotTeam)
	}
	if gotName != "alice" {
		t.Errorf("user_name claim = %v, want alice", gotName)
	}
}

func TestRequireAdmin(t *testing.T) {
	if rec := runProtected(t, bearerFor(t, true), JWTAuth(testSecret), RequireAdmin()); rec.Code != http.StatusOK {
		t.Errorf("admin token: status = %d, want 200", rec.Code)
	}
	if rec := runProtected(t, bearerFor(t, false), JWTAuth(testSecret), RequireAdmin()); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin token: status = %d, want 403", rec.Code)
	}
}
