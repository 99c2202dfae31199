package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ahplanner/planner-server/pkg/planner"
)

type PlanRequest struct {
	Realm                 string          `json:"realm" validate:"required"`
	ProfessionID          int             `json:"profession_id" validate:"gt=0"`
	CurrentSkill          int             `json:"current_skill" validate:"gte=0"`
	TargetSkill           int             `json:"target_skill" validate:"gte=0"`
	PriceMode             string          `json:"price_mode,omitempty"`
	UseCraftIntermediates bool            `json:"use_craft_intermediates"`
	UseSmeltIntermediates bool            `json:"use_smelt_intermediates"`
	UseOwnedMaterials     bool            `json:"use_owned_materials"`
	OwnedMaterials        map[int]int64   `json:"owned_materials,omitempty"`

	// A nil list falls back to the caller's stored exclusions; an
	// explicitly empty list overrides them with none.
	ExcludedRecipeIDs *[]string `json:"excluded_recipe_ids,omitempty"`
}

// Plan computes a leveling plan. Domain failures (no snapshot, no viable
// recipe, missing prices) come back as 400 with the structured result so
// clients can render what went wrong; only infrastructure failures are 500.
func (h *Handler) Plan(c echo.Context) error {
	var req PlanRequest
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
	if req.TargetSkill < req.CurrentSkill {
		return badRequest(c, "target_skill must not be below current_skill")
	}

	priceMode := h.defaultPriceMode
	if req.PriceMode != "" {
		priceMode, err = planner.ParsePriceMode(req.PriceMode)
		if err != nil {
			return badRequest(c, err.Error())
		}
	}

	planReq := planner.PlanRequest{
		RealmKey:              realmKey,
		ProfessionID:          req.ProfessionID,
		CurrentSkill:          req.CurrentSkill,
		TargetSkill:           req.TargetSkill,
		PriceMode:             priceMode,
		UseCraftIntermediates: req.UseCraftIntermediates,
		UseSmeltIntermediates: req.UseSmeltIntermediates,
		UseOwnedMaterials:     req.UseOwnedMaterials,
		OwnedMaterials:        req.OwnedMaterials,
	}
	if req.ExcludedRecipeIDs != nil {
		planReq.ExcludedRecipeIDs = make(map[string]bool, len(*req.ExcludedRecipeIDs))
		for _, id := range *req.ExcludedRecipeIDs {
			planReq.ExcludedRecipeIDs[id] = true
		}
	}

	result, err := h.engine.ComputePlan(c.Request().Context(), userID(c), planReq)
	if err != nil {
		return serverError(c)
	}

	if result.Plan == nil {
		return c.JSON(http.StatusBadRequest, result)
	}

	return c.JSON(http.StatusOK, result)
}
