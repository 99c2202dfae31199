package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// Snapshot is the fully-resolved, immutable input for one plan
// computation. Recipes holds the planned profession's catalog plus any
// producer recipes from other professions the intermediate flags may
// expand through. Nothing in a Snapshot is mutated by the planner.
type Snapshot struct {
	Recipes      []planner.Recipe
	VendorPrices map[int]int64
	Prices       map[int]planner.PriceSummary
}

// Planner turns a plan request and a snapshot into a leveling plan. The
// zero value is not usable; construct with NewPlanner.
type Planner struct {
	// Chance is the skill-up probability policy. Defaults to LinearChance.
	Chance ChanceModel

	now func() time.Time
}

// NewPlanner creates a Planner with the default chance policy.
func NewPlanner() *Planner {
	return &Planner{Chance: LinearChance, now: time.Now}
}

// candidate is one recipe costed for selection at the current skill.
type candidate struct {
	recipe       *planner.Recipe
	chance       float64
	span         int
	costPerPoint float64
}

// BuildPlan walks the skill range and greedily selects the cheapest
// recipe per skill point at every step. It is pure and deterministic:
// identical inputs produce identical plans apart from the generation
// timestamp. The context is checked between step iterations only; a
// single step's resolution is bounded and fast.
//
// The returned item ids are required acquisitions that could not be
// priced at all. The error is terminal: no recipe can cover some part of
// the requested skill range.
func (p *Planner) BuildPlan(ctx context.Context, req planner.PlanRequest, snap Snapshot) (*planner.PlanResult, []int, error) {
	if req.CurrentSkill > req.TargetSkill {
		return nil, nil, fmt.Errorf("current skill %d exceeds target skill %d", req.CurrentSkill, req.TargetSkill)
	}

	chance := p.Chance
	if chance == nil {
		chance = LinearChance
	}

	excluded := req.ExcludedRecipeIDs
	candidates := catalog(snap.Recipes, req.ProfessionID, excluded)
	resolver := &bomResolver{
		producers:    buildProducerIndex(snap.Recipes, excluded),
		vendor:       snap.VendorPrices,
		prices:       snap.Prices,
		mode:         req.PriceMode,
		professionID: req.ProfessionID,
		useCraft:     req.UseCraftIntermediates,
		useSmelt:     req.UseSmeltIntermediates,
		chance:       chance,
	}

	pool := newOwnedPool(req.OwnedMaterials, req.UseOwnedMaterials)
	missing := make(map[int]bool)

	var steps []planner.PlanStep
	var breakdowns []planner.StepBreakdown
	var skillUpCredit float64

	cur := req.CurrentSkill
	for cur < req.TargetSkill {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		best := p.selectCandidate(candidates, resolver, pool, cur, req.TargetSkill, chance)
		if best == nil {
			return nil, nil, fmt.Errorf(
				"no eligible recipe can raise skill at %d (target %d): every candidate is unlearned, excluded or gray", cur, req.TargetSkill)
		}

		stepEnd := cur + best.span
		points := stepEnd - cur
		crafts := expectedCrafts(best.chance, points)

		res := newStepResolution()
		for _, reagent := range best.recipe.Reagents {
			if reagent.Quantity <= 0 {
				continue
			}
			resolver.resolve(reagent.ItemID, crafts*float64(reagent.Quantity), cur, nil, pool, res, missing)
		}

		steps = append(steps, planner.PlanStep{
			RecipeID:           best.recipe.RecipeID,
			RecipeName:         best.recipe.Name,
			SkillFrom:          cur,
			SkillTo:            stepEnd,
			SkillUpChance:      best.chance,
			ExpectedCrafts:     crafts,
			ExpectedCostCopper: res.costCopper,
		})
		breakdowns = append(breakdowns, breakdownFor(len(steps)-1, res))
		skillUpCredit += res.skillUpCredit

		cur = stepEnd
	}

	plan := buildPlanResult(steps, breakdowns, skillUpCredit, p.now())
	return plan, sortedItemIDs(missing), nil
}

// selectCandidate costs every learnable, non-gray recipe and picks the
// cheapest expected cost per skill point. Candidates are costed
// independently and prospectively: each gets a scratch copy of the owned
// pool so comparison never depletes inventory. Ties break toward the
// longest skill span, then the lexicographically first recipe id.
func (p *Planner) selectCandidate(candidates []planner.Recipe, resolver *bomResolver, pool *ownedPool, skill, target int, chance ChanceModel) *candidate {
	var best *candidate
	for i := range candidates {
		r := &candidates[i]
		if skill < r.MinSkill || skill >= r.GrayAt {
			continue
		}
		ch := chance(r, skill)
		if ch <= 0 {
			continue
		}

		span := bandEnd(r, skill) + 1 - skill
		if skill+span > target {
			span = target - skill
		}
		if span <= 0 {
			continue
		}

		craftCost := p.costOneCraft(r, resolver, pool)
		c := &candidate{
			recipe:       r,
			chance:       ch,
			span:         span,
			costPerPoint: craftCost / ch,
		}

		if best == nil || c.better(best) {
			best = c
		}
	}
	return best
}

func (c *candidate) better(other *candidate) bool {
	if c.costPerPoint != other.costPerPoint {
		return c.costPerPoint < other.costPerPoint
	}
	if c.span != other.span {
		return c.span > other.span
	}
	return c.recipe.RecipeID < other.recipe.RecipeID
}

// costOneCraft prices a single craft of the recipe against the current
// owned inventory without consuming it.
func (p *Planner) costOneCraft(r *planner.Recipe, resolver *bomResolver, pool *ownedPool) float64 {
	res := newStepResolution()
	scratchMissing := make(map[int]bool)
	scratchPool := pool.clone()
	for _, reagent := range r.Reagents {
		if reagent.Quantity <= 0 {
			continue
		}
		resolver.resolve(reagent.ItemID, float64(reagent.Quantity), r.MinSkill, nil, scratchPool, res, scratchMissing)
	}
	return res.costCopper
}
