package router

import (
	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/handler"
	"github.com/testerhub/code-pool-reservation/internal/middleware"
)

// RegisterCodes wires the tester-facing pool endpoints under /v1.
// The rate limiter runs after JWT auth so per-user keys see the
// authenticated identity; pass nil to skip limiting.
func RegisterCodes(e *echo.Echo, h *handler.CodeHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/codes/reserve", h.Reserve)
	g.POST("/codes/release", h.Release)
	g.GET("/my-codes", h.MyCodes)
}
