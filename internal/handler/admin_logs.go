package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/repository"
)

// AdminLogHandler serves the paginated audit trail.
type AdminLogHandler struct {
	Audit *repository.AuditRepo
}

func NewAdminLogHandler(audit *repository.AuditRepo) *AdminLogHandler {
	if audit == nil {
		panic("nil repository passed to NewAdminLogHandler")
	}
	return &AdminLogHandler{Audit: audit}
}

// ListLogs handles GET /v1/admin/logs.  Query parameters: page
// (1-based), code, user, start and end (YYYY-MM-DD, inclusive).
// Missing date bounds are widened to the full table range.
func (h *AdminLogHandler) ListLogs(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		page = n
	}

	f := repository.LogFilter{
		Code:     strings.ToUpper(strings.TrimSpace(c.QueryParam("code"))),
		UserName: strings.TrimSpace(c.QueryParam("user")),
		Limit:    repository.DefaultLogPageSize,
		Offset:   (page - 1) * repository.DefaultLogPageSize,
	}

	if raw := c.QueryParam("start"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start date"})
		}
		f.Start = &t
	}
	if raw := c.QueryParam("end"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end date"})
		}
		// Inclusive end of day.
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.End = &end
	}

	total, entries, err := h.Audit.ListFiltered(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load logs"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total":     total,
		"page":      page,
		"page_size": repository.DefaultLogPageSize,
		"items":     entries,
	})
}
