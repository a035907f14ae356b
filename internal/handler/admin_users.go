package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/config"
	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/repository"
)

// AdminUserHandler manages tester accounts.  Account CRUD is guarded
// by the reserved-code count: a user holding codes cannot be removed.
// Password resets and admin demotions revoke the account's refresh
// tokens; deletion drops them through the refresh_tokens FK cascade.
type AdminUserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAdminUserHandler(cfg config.Config, users *repository.UserRepo, tokens *repository.TokenRepo) *AdminUserHandler {
	if users == nil || tokens == nil {
		panic("nil repository passed to NewAdminUserHandler")
	}
	return &AdminUserHandler{Cfg: cfg, Users: users, Tokens: tokens}
}

type createUserReq struct {
	Team     string `json:"team"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateUser handles POST /v1/admin/users.
func (h *AdminUserHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.UserName = strings.TrimSpace(req.UserName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.UserName == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_name, email and password are required"})
	}
	team, ok := model.ParseCodeType(req.Team)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown team"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, string(team), req.UserName, req.Email, req.Password, req.IsAdmin, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        uid,
		"team":      string(team),
		"user_name": req.UserName,
		"email":     req.Email,
		"is_admin":  req.IsAdmin,
	})
}

type updateUserReq struct {
	Team     *string `json:"team"`
	UserName *string `json:"user_name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"is_admin"`
}

// UpdateUser handles PATCH /v1/admin/users/:id.  Absent fields are
// left unchanged.
func (h *AdminUserHandler) UpdateUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Team != nil {
		team, ok := model.ParseCodeType(*req.Team)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown team"})
		}
		s := string(team)
		req.Team = &s
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	upd := repository.UserUpdate{
		Team:     req.Team,
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	}
	if err := h.Users.Update(ctx, id, upd, h.Cfg.BcryptCost); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update user failed"})
	}

	// A new password or a revoked admin bit invalidates existing
	// sessions; the account row is already updated, so a revoke
	// failure is logged rather than surfaced.
	if req.Password != nil || (req.IsAdmin != nil && !*req.IsAdmin) {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			c.Logger().Warnf("revoke refresh tokens for user %d: %v", id, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser handles DELETE /v1/admin/users/:id.  A user still
// holding reserved codes cannot be removed; release first.
func (h *AdminUserHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrUserHasReservedCodes):
			return c.JSON(http.StatusConflict, echo.Map{"error": "user still holds reserved codes"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete user failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListUsersWithCodes handles GET /v1/admin/users and returns all
// non-admin users with the codes they currently hold.
func (h *AdminUserHandler) ListUsersWithCodes(c echo.Context) error {
	users, err := h.Users.ListWithReservedCodes(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load users"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users})
}
