package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/repository"
	"github.com/testerhub/code-pool-reservation/internal/service"
)

// AdminCodeHandler groups the pool-management endpoints: bulk
// ingestion, deletion, blocking and status counts.  All routes sit
// behind the admin middleware.
type AdminCodeHandler struct {
	Prov  *service.Provisioner
	Alloc *service.Allocator
	Codes *repository.CodeRepo
}

// NewAdminCodeHandler constructs the handler and panics on nil deps.
func NewAdminCodeHandler(prov *service.Provisioner, alloc *service.Allocator, codes *repository.CodeRepo) *AdminCodeHandler {
	if prov == nil || alloc == nil || codes == nil {
		panic("nil dependency passed to NewAdminCodeHandler")
	}
	return &AdminCodeHandler{Prov: prov, Alloc: alloc, Codes: codes}
}

type bulkAddReq struct {
	CodeType  string   `json:"code_type"`
	Countries []string `json:"countries"`
	Codes     []string `json:"codes"`
}

// BulkAddCodes handles POST /v1/admin/codes.  The batch is partially
// successful: per-code failures and unknown country names come back in
// the result rather than failing the request.
func (h *AdminCodeHandler) BulkAddCodes(c echo.Context) error {
	ident, err := getIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req bulkAddReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	codeType, ok := model.ParseCodeType(req.CodeType)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown code type"})
	}
	if len(req.Codes) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "codes is required"})
	}

	result, err := h.Prov.BulkAdd(c.Request().Context(), ident, codeType, req.Countries, req.Codes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoValidCodes):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid codes in batch", "failed": result.Failed})
		case errors.Is(err, service.ErrCountryRequired):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "country association required for this code type"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "bulk add failed"})
	}
	return c.JSON(http.StatusCreated, result)
}

// DeleteCode handles DELETE /v1/admin/codes/:code.  Only AVAILABLE
// codes can be deleted; anything else is 404.
func (h *AdminCodeHandler) DeleteCode(c echo.Context) error {
	ident, err := getIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	if err := h.Prov.DeleteCode(c.Request().Context(), ident, code); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found or not deletable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type blockReq struct {
	Reason string `json:"reason"`
}

// BlockCode handles POST /v1/admin/codes/:code/block, pulling a code
// from circulation regardless of its current status.
func (h *AdminCodeHandler) BlockCode(c echo.Context) error {
	ident, err := getIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}
	var req blockReq
	_ = c.Bind(&req)
	var reason *string
	if s := strings.TrimSpace(req.Reason); s != "" {
		reason = &s
	}

	blocked, err := h.Alloc.Block(c.Request().Context(), ident, code, reason)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "block failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"blocked": blocked})
}

// CodeCounts handles GET /v1/admin/codes/counts and reports the pool
// size per status.  Sits behind the response cache.
func (h *AdminCodeHandler) CodeCounts(c echo.Context) error {
	counts, err := h.Codes.CountsByStatus(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count codes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"counts": counts})
}
