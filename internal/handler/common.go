package handler // handler defines http handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getIdentity assembles the caller identity from the claims the JWT
// middleware stored in the context.
func getIdentity(c echo.Context) (service.Identity, error) {
	uid, err := getUserID(c)
	if err != nil {
		return service.Identity{}, err
	}
	ident := service.Identity{ID: uid}
	if s, ok := c.Get("user_name").(string); ok {
		ident.UserName = s
	}
	if s, ok := c.Get("contact_email").(string); ok {
		ident.ContactEmail = s
	}
	if s, ok := c.Get("team").(string); ok {
		ident.Team = s
	}
	return ident, nil
}
