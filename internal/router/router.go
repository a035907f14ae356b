package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/handler"
	"github.com/testerhub/code-pool-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the session endpoints.  Login, refresh and
// logout-by-refresh-token live under /v1/auth without a JWT; /v1/me
// and logout-all sit behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/logout", a.Logout)
}

// RegisterLookups exposes the region/country reference tables.  No
// authentication: the claim form needs them before login completes.
func RegisterLookups(e *echo.Echo, r *handler.RegionHandler) {
	e.GET("/v1/regions", r.ListRegions)
	e.GET("/v1/regions/:id/countries", r.ListCountries)
}
