package router

import (
	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/handler"
	"github.com/testerhub/code-pool-reservation/internal/middleware"
)

// RegisterAdmin wires the admin surface under /v1/admin: code
// provisioning, user management and the audit trail.  The cache
// middleware, when non-nil, is applied only to the report reads; the
// mutating routes must always hit the store.
func RegisterAdmin(
	e *echo.Echo,
	codes *handler.AdminCodeHandler,
	users *handler.AdminUserHandler,
	logs *handler.AdminLogHandler,
	jwtSecret string,
	cache echo.MiddlewareFunc,
) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireAdmin())

	g.POST("/codes", codes.BulkAddCodes)
	g.DELETE("/codes/:code", codes.DeleteCode)
	g.POST("/codes/:code/block", codes.BlockCode)

	g.POST("/users", users.CreateUser)
	g.PATCH("/users/:id", users.UpdateUser)
	g.DELETE("/users/:id", users.DeleteUser)

	reads := []echo.MiddlewareFunc{}
	if cache != nil {
		reads = append(reads, cache)
	}
	g.GET("/codes/counts", codes.CodeCounts, reads...)
	g.GET("/users", users.ListUsersWithCodes, reads...)
	g.GET("/logs", logs.ListLogs, reads...)
}
