package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/testerhub/code-pool-reservation/internal/repository"
)

// RegionHandler serves the region/country lookup tables that back the
// claim form.
type RegionHandler struct {
	Regions *repository.RegionRepo
}

func NewRegionHandler(regions *repository.RegionRepo) *RegionHandler {
	if regions == nil {
		panic("nil repository passed to NewRegionHandler")
	}
	return &RegionHandler{Regions: regions}
}

// ListRegions handles GET /v1/regions.
func (h *RegionHandler) ListRegions(c echo.Context) error {
	regions, err := h.Regions.ListRegions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load regions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": regions})
}

// ListCountries handles GET /v1/regions/:id/countries.
func (h *RegionHandler) ListCountries(c echo.Context) error {
	regionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || regionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid region id"})
	}
	countries, err := h.Regions.ListCountriesByRegion(c.Request().Context(), regionID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load countries"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": countries})
}
