package engine

import (
	"sort"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// buildProducerIndex maps each output item id to the first eligible
// producer recipe. Recipes are stable-sorted by (MinSkill, RecipeID) before
// indexing so that the lowest-skill producer wins deterministically, not
// whichever happened to be inserted first. Excluded recipes are never
// valid producers; recipes with no output or a non-positive output
// quantity are skipped.
func buildProducerIndex(recipes []planner.Recipe, excluded map[string]bool) map[int]*planner.Recipe {
	ordered := make([]*planner.Recipe, 0, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		if excluded[r.RecipeID] {
			continue
		}
		if r.Output == nil || r.Output.ItemID <= 0 || r.Output.Quantity <= 0 {
			continue
		}
		ordered = append(ordered, r)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MinSkill != ordered[j].MinSkill {
			return ordered[i].MinSkill < ordered[j].MinSkill
		}
		return ordered[i].RecipeID < ordered[j].RecipeID
	})

	byOutput := make(map[int]*planner.Recipe, len(ordered))
	for _, r := range ordered {
		if _, exists := byOutput[r.Output.ItemID]; !exists {
			byOutput[r.Output.ItemID] = r
		}
	}

	return byOutput
}

// catalog returns the profession's step candidates: exclusion-filtered and
// skill-ordered with the (MinSkill, RecipeID) tie-break.
func catalog(recipes []planner.Recipe, professionID int, excluded map[string]bool) []planner.Recipe {
	out := make([]planner.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if r.ProfessionID != professionID {
			continue
		}
		if excluded[r.RecipeID] {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MinSkill != out[j].MinSkill {
			return out[i].MinSkill < out[j].MinSkill
		}
		return out[i].RecipeID < out[j].RecipeID
	})

	return out
}
