package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ahplanner/planner-server/internal/planner/engine"
	"github.com/ahplanner/planner-server/pkg/planner"
)

// Handler serves the planner API endpoints.
type Handler struct {
	engine           *engine.Engine
	stores           Stores
	defaultPriceMode planner.PriceMode
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Health returns a simple service status.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// GameVersions lists the supported game versions.
func (h *Handler) GameVersions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]planner.GameVersion{
		"game_versions": planner.ValidGameVersions(),
	})
}

// Regions lists the supported regions.
func (h *Handler) Regions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]planner.Region{
		"regions": planner.ValidRegions(),
	})
}

// Realms lists the known realms for a region and game version.
func (h *Handler) Realms(c echo.Context) error {
	region, err := planner.ParseRegion(c.QueryParam("region"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	version, err := planner.ParseGameVersion(c.QueryParam("version"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	realms, err := h.stores.Realms.ListRealms(c.Request().Context(), region, version)
	if err != nil {
		return serverError(c)
	}
	if realms == nil {
		realms = []planner.Realm{}
	}

	return c.JSON(http.StatusOK, map[string][]planner.Realm{"realms": realms})
}

// Professions lists the professions for a game version.
func (h *Handler) Professions(c echo.Context) error {
	version, err := planner.ParseGameVersion(c.QueryParam("version"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	professions, err := h.stores.Recipes.GetProfessions(c.Request().Context(), version)
	if err != nil {
		return serverError(c)
	}
	if professions == nil {
		professions = []planner.Profession{}
	}

	return c.JSON(http.StatusOK, map[string][]planner.Profession{"professions": professions})
}

// Recipes lists a profession's recipes for a game version.
func (h *Handler) Recipes(c echo.Context) error {
	version, err := planner.ParseGameVersion(c.QueryParam("version"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	professionID, err := parseIntParam(c.QueryParam("profession_id"))
	if err != nil {
		return badRequest(c, "profession_id must be a positive integer")
	}

	recipes, err := h.stores.Recipes.GetRecipes(c.Request().Context(), version, professionID)
	if err != nil {
		return serverError(c)
	}
	if recipes == nil {
		recipes = []planner.Recipe{}
	}

	return c.JSON(http.StatusOK, map[string][]planner.Recipe{"recipes": recipes})
}

// Prices returns the latest snapshot prices for the requested items on a
// realm. A realm without any uploaded snapshot yields success=false rather
// than an HTTP error.
func (h *Handler) Prices(c echo.Context) error {
	realmKey, err := planner.ParseRealmKey(c.QueryParam("realm"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	var itemIDs []int
	for _, raw := range strings.Split(c.QueryParam("items"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := parseIntParam(raw)
		if err != nil {
			return badRequest(c, "items must be a comma-separated list of positive item ids")
		}
		itemIDs = append(itemIDs, id)
	}
	if len(itemIDs) == 0 {
		return badRequest(c, "items is required")
	}

	mode := h.defaultPriceMode
	if raw := c.QueryParam("price_mode"); raw != "" {
		mode, err = planner.ParsePriceMode(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	snapshot, err := h.stores.Prices.GetPrices(c.Request().Context(), realmKey, itemIDs, mode)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, snapshot)
}

// GetExclusions returns the excluded recipe set for a profession.
func (h *Handler) GetExclusions(c echo.Context) error {
	version, err := planner.ParseGameVersion(c.QueryParam("version"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	professionID, err := parseIntParam(c.QueryParam("profession_id"))
	if err != nil {
		return badRequest(c, "profession_id must be a positive integer")
	}

	excluded, err := h.stores.Recipes.GetExcludedRecipeIDs(c.Request().Context(), version, professionID)
	if err != nil {
		return serverError(c)
	}

	ids := make([]string, 0, len(excluded))
	for id := range excluded {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return c.JSON(http.StatusOK, map[string][]string{"recipe_ids": ids})
}

type ExclusionsRequest struct {
	GameVersion  string   `json:"game_version" validate:"required"`
	ProfessionID int      `json:"profession_id" validate:"gt=0"`
	RecipeIDs    []string `json:"recipe_ids"`
}

// PutExclusions replaces the excluded recipe set for a profession.
func (h *Handler) PutExclusions(c echo.Context) error {
	var req ExclusionsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	version, err := planner.ParseGameVersion(req.GameVersion)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.stores.Recipes.SetExcludedRecipeIDs(c.Request().Context(), version, req.ProfessionID, req.RecipeIDs); err != nil {
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetOwned returns a user's owned materials on a realm.
func (h *Handler) GetOwned(c echo.Context) error {
	realmKey, err := planner.ParseRealmKey(c.QueryParam("realm"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	owned, err := h.stores.Owned.GetOwned(c.Request().Context(), realmKey, userID(c))
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, map[string]map[int]int64{"owned": owned})
}

type OwnedRequest struct {
	Realm string        `json:"realm" validate:"required"`
	Owned map[int]int64 `json:"owned" validate:"required"`
}

// PutOwned replaces a user's owned materials on a realm.
func (h *Handler) PutOwned(c echo.Context) error {
	var req OwnedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	realmKey, err := planner.ParseRealmKey(req.Realm)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.stores.Owned.ReplaceOwned(c.Request().Context(), realmKey, userID(c), req.Owned); err != nil {
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// userID identifies the caller. The API carries no accounts; clients pass
// a stable identifier and anonymous callers share the default bucket.
func userID(c echo.Context) string {
	if id := c.Request().Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

func parseIntParam(raw string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid integer parameter %q", raw)
	}
	return value, nil
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
