// Package engine contains the leveling plan optimizer and its data boundary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// RecipeSource provides read-only access to recipe data.
type RecipeSource interface {
	GetProfessions(ctx context.Context, version planner.GameVersion) ([]planner.Profession, error)
	GetRecipes(ctx context.Context, version planner.GameVersion, professionID int) ([]planner.Recipe, error)
	GetExcludedRecipeIDs(ctx context.Context, version planner.GameVersion, professionID int) (map[string]bool, error)
}

// ItemSource provides read-only access to item names and vendor prices.
type ItemSource interface {
	GetItemName(ctx context.Context, version planner.GameVersion, itemID int) (string, error)
	GetVendorPrices(ctx context.Context, version planner.GameVersion) (map[int]int64, error)
}

// PriceSource provides market price snapshots per realm.
type PriceSource interface {
	GetPrices(ctx context.Context, realmKey planner.RealmKey, itemIDs []int, mode planner.PriceMode) (planner.PriceSnapshot, error)
}

// OwnedSource provides the player's owned-material inventory.
type OwnedSource interface {
	GetOwned(ctx context.Context, realmKey planner.RealmKey, userID string) (map[int]int64, error)
}

// Engine resolves a plan request's data through the read sources and runs
// the planner on the resulting in-memory snapshot. All I/O happens before
// the plan computation starts; the computation itself is pure.
type Engine struct {
	recipes RecipeSource
	items   ItemSource
	prices  PriceSource
	owned   OwnedSource
	planner *Planner

	// staleAfter is the snapshot age beyond which pricing is flagged stale.
	staleAfter time.Duration

	now func() time.Time
}

// New creates an Engine over the given read sources.
func New(recipes RecipeSource, items ItemSource, prices PriceSource, owned OwnedSource, staleAfter time.Duration) *Engine {
	return &Engine{
		recipes:    recipes,
		items:      items,
		prices:     prices,
		owned:      owned,
		planner:    NewPlanner(),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// ComputePlan executes the plan boundary contract: it returns a structured
// result for domain failures (no eligible recipe, missing pricing) and an
// error only for invalid requests or failing data access.
func (e *Engine) ComputePlan(ctx context.Context, userID string, req planner.PlanRequest) (*planner.PlanComputationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	version := req.RealmKey.GameVersion

	recipes, err := e.loadRecipeUniverse(ctx, version, req)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return &planner.PlanComputationResult{
			ErrorMessage: fmt.Sprintf("no recipes found for profession %d (%s)", req.ProfessionID, version),
		}, nil
	}

	if req.ExcludedRecipeIDs == nil {
		excluded, err := e.recipes.GetExcludedRecipeIDs(ctx, version, req.ProfessionID)
		if err != nil {
			return nil, fmt.Errorf("loading excluded recipes: %w", err)
		}
		req.ExcludedRecipeIDs = excluded
	}

	if req.UseOwnedMaterials && req.OwnedMaterials == nil {
		owned, err := e.owned.GetOwned(ctx, req.RealmKey, userID)
		if err != nil {
			return nil, fmt.Errorf("loading owned materials: %w", err)
		}
		req.OwnedMaterials = owned
	}

	vendorPrices, err := e.items.GetVendorPrices(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("loading vendor prices: %w", err)
	}

	snapshot, err := e.prices.GetPrices(ctx, req.RealmKey, reagentItemIDs(recipes), req.PriceMode)
	if err != nil {
		return nil, fmt.Errorf("loading price snapshot: %w", err)
	}
	snapshot.IsStale = snapshot.Success && e.now().Sub(snapshot.SnapshotTimestamp) > e.staleAfter
	if !snapshot.Success {
		return &planner.PlanComputationResult{
			PriceSnapshot: snapshot,
			ErrorMessage:  snapshot.ErrorMessage,
		}, nil
	}

	plan, missing, err := e.planner.BuildPlan(ctx, req, Snapshot{
		Recipes:      recipes,
		VendorPrices: vendorPrices,
		Prices:       snapshot.Prices,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return &planner.PlanComputationResult{
			PriceSnapshot: snapshot,
			ErrorMessage:  err.Error(),
		}, nil
	}

	return &planner.PlanComputationResult{
		Plan:           plan,
		PriceSnapshot:  snapshot,
		MissingItemIDs: missing,
	}, nil
}

// loadRecipeUniverse loads the planned profession's recipes, widened with
// every other profession's recipes when an intermediate flag may expand
// through them (smelting belongs to mining, not to the planned profession).
func (e *Engine) loadRecipeUniverse(ctx context.Context, version planner.GameVersion, req planner.PlanRequest) ([]planner.Recipe, error) {
	recipes, err := e.recipes.GetRecipes(ctx, version, req.ProfessionID)
	if err != nil {
		return nil, fmt.Errorf("loading recipes: %w", err)
	}
	if len(recipes) == 0 || (!req.UseCraftIntermediates && !req.UseSmeltIntermediates) {
		return recipes, nil
	}

	professions, err := e.recipes.GetProfessions(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("loading professions: %w", err)
	}

	seen := make(map[string]bool, len(recipes))
	for _, r := range recipes {
		seen[r.RecipeID] = true
	}

	for _, prof := range professions {
		if prof.ProfessionID == req.ProfessionID {
			continue
		}
		more, err := e.recipes.GetRecipes(ctx, version, prof.ProfessionID)
		if err != nil {
			return nil, fmt.Errorf("loading recipes for profession %d: %w", prof.ProfessionID, err)
		}
		for _, r := range more {
			if !seen[r.RecipeID] {
				seen[r.RecipeID] = true
				recipes = append(recipes, r)
			}
		}
	}

	return recipes, nil
}

func validateRequest(req planner.PlanRequest) error {
	if !req.RealmKey.Region.IsValid() {
		return fmt.Errorf("invalid region %q", req.RealmKey.Region)
	}
	if !req.RealmKey.GameVersion.IsValid() {
		return fmt.Errorf("invalid game version %q", req.RealmKey.GameVersion)
	}
	if req.RealmKey.RealmSlug == "" {
		return errors.New("realm slug is required")
	}
	if !req.PriceMode.IsValid() {
		return fmt.Errorf("invalid price mode %q", req.PriceMode)
	}
	if req.ProfessionID <= 0 {
		return fmt.Errorf("invalid profession id %d", req.ProfessionID)
	}
	if req.CurrentSkill < 0 || req.TargetSkill < 0 {
		return errors.New("skill levels must be non-negative")
	}
	if req.CurrentSkill > req.TargetSkill {
		return fmt.Errorf("current skill %d exceeds target skill %d", req.CurrentSkill, req.TargetSkill)
	}
	return nil
}

// reagentItemIDs collects every item id that could appear on a shopping
// list for the given recipes: reagents and producible outputs alike, so
// the price snapshot covers cyclic fallbacks too.
func reagentItemIDs(recipes []planner.Recipe) []int {
	set := make(map[int]bool)
	for _, r := range recipes {
		for _, reagent := range r.Reagents {
			if reagent.ItemID > 0 {
				set[reagent.ItemID] = true
			}
		}
		if r.Output != nil && r.Output.ItemID > 0 {
			set[r.Output.ItemID] = true
		}
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
