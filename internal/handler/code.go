package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/model"
	"github.com/testerhub/code-pool-reservation/internal/queue"
	"github.com/testerhub/code-pool-reservation/internal/repository"
	"github.com/testerhub/code-pool-reservation/internal/service"
)

// CodeHandler exposes the tester-facing pool operations: reserve a
// code, release a code, list own reservations.  Authentication and
// claim extraction are handled by middleware before these run.
type CodeHandler struct {
	Alloc *service.Allocator
}

// NewCodeHandler constructs a CodeHandler and panics on a nil allocator.
func NewCodeHandler(alloc *service.Allocator) *CodeHandler {
	if alloc == nil {
		panic("nil allocator passed to NewCodeHandler")
	}
	return &CodeHandler{Alloc: alloc}
}

type reserveReq struct {
	CodeType   string `json:"code_type"`   // optional; defaults to the caller's team
	Region     string `json:"region"`      // optional region restriction
	TesterName string `json:"tester_name"` // optional label for who the code is for
}

type reservedResp struct {
	Code       string     `json:"code"`
	CodeType   string     `json:"code_type"`
	ClaimToken string     `json:"claim_token"`
	ClaimedAt  *time.Time `json:"claimed_at"`
}

// Reserve handles POST /v1/codes/reserve.  The requested tier defaults
// to the caller's team and falls back to the shared pool when that
// tier is exhausted.  An empty pool yields 409 Conflict.
func (h *CodeHandler) Reserve(c echo.Context) error {
	ident, err := getIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	raw := req.CodeType
	if strings.TrimSpace(raw) == "" {
		raw = ident.Team
	}
	codeType, ok := model.ParseCodeType(raw)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown code type"})
	}

	var tester *string
	if s := strings.TrimSpace(req.TesterName); s != "" {
		tester = &s
	}

	reserved, err := h.Alloc.Claim(c.Request().Context(), service.ClaimRequest{
		Identity:   ident,
		CodeType:   codeType,
		Region:     strings.TrimSpace(req.Region),
		TesterName: tester,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoCodesAvailable) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "no codes available"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reserve failed"})
	}

	go publishActivity(queue.CodeActivityEvent{
		Action:     string(model.ActionReserved),
		Code:       reserved.Code,
		CodeType:   string(reserved.CodeType),
		UserID:     ident.ID,
		UserName:   ident.UserName,
		Team:       ident.Team,
		Region:     strings.TrimSpace(req.Region),
		TesterName: strings.TrimSpace(req.TesterName),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	token := ""
	if reserved.ClaimToken != nil {
		token = *reserved.ClaimToken
	}
	return c.JSON(http.StatusOK, reservedResp{
		Code:       reserved.Code,
		CodeType:   string(reserved.CodeType),
		ClaimToken: token,
		ClaimedAt:  reserved.ClaimedAt,
	})
}

type releaseReq struct {
	Code         string `json:"code"`
	ClearanceRef string `json:"clearance_ref"`
	Note         string `json:"note"`
}

// Release handles POST /v1/codes/release.  Releasing a code that is
// not currently reserved yields 404; under the owner-only policy a
// code reserved by someone else yields 403.
func (h *CodeHandler) Release(c echo.Context) error {
	ident, err := getIdentity(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req releaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	released, err := h.Alloc.Release(c.Request().Context(), service.ReleaseRequest{
		Identity:     ident,
		Code:         code,
		ClearanceRef: strings.TrimSpace(req.ClearanceRef),
		Note:         strings.TrimSpace(req.Note),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCodeNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found or not reserved"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "code reserved by another user"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}

	go publishActivity(queue.CodeActivityEvent{
		Action:     string(model.ActionReleased),
		Code:       released,
		UserID:     ident.ID,
		UserName:   ident.UserName,
		Team:       ident.Team,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// MyCodes handles GET /v1/my-codes and lists the caller's currently
// reserved codes, newest first.
func (h *CodeHandler) MyCodes(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Alloc.ListClaimed(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load codes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// publishActivity ships one event to the broker off the request path.
// A dead broker only costs a log line.
func publishActivity(ev queue.CodeActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = service.PublishCodeActivity(ctx, ev)
}
