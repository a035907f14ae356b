package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/config"
)

func newTestContext(method, path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c
}

func TestBuildRateKeyStrategies(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	c := newTestContext("POST", "/v1/codes/reserve")
	c.Set("user_id", float64(42))

	if got := buildRateKey(cfg, c); got != "rl:user:42" {
		t.Errorf("user strategy key = %q", got)
	}

	cfg.KeyStrategy = "route"
	if got := buildRateKey(cfg, c); got != "rl:route:POST /v1/codes/reserve" {
		t.Errorf("route strategy key = %q", got)
	}

	cfg.KeyStrategy = "user_route"
	if got := buildRateKey(cfg, c); !strings.HasPrefix(got, "rl:user:42:route:") {
		t.Errorf("user_route strategy key = %q", got)
	}
}

func TestCurrentUserIDFallsBackToAnon(t *testing.T) {
	c := newTestContext("GET", "/v1/my-codes")
	if got := currentUserID(c); got != "anon" {
		t.Errorf("unauthenticated key part = %q, want anon", got)
	}
	c.Set("user_id", "17")
	if got := currentUserID(c); got != "17" {
		t.Errorf("string user id = %q, want 17", got)
	}
	c.Set("user_id", uint64(9))
	if got := currentUserID(c); got != "9" {
		t.Errorf("uint64 user id = %q, want 9", got)
	}
}

func TestAsInt64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int64
	}{
		{int64(5), 5},
		{int32(6), 6},
		{7, 7},
		{float64(8), 8},
		{"9", 9},
		{"not-a-number", 0},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := asInt64(tc.in); got != tc.want {
			t.Errorf("asInt64(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
