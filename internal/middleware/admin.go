package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin returns a middleware that rejects callers whose token
// does not carry the admin flag.  It assumes JWTAuth has already
// stored "is_admin" in the context.  Non-admins get 403 Forbidden.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isAdmin, ok := c.Get("is_admin").(bool); !ok || !isAdmin {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "admin required"})
			}
			return next(c)
		}
	}
}
