package engine

import (
	"math"
	"sort"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

// breakdownFor flattens a step resolution into the step's breakdown,
// with lines ordered by item id for deterministic output.
func breakdownFor(stepIndex int, res *stepResolution) planner.StepBreakdown {
	b := planner.StepBreakdown{StepIndex: stepIndex}

	for _, id := range sortedLineIDs(res.intermediates) {
		b.Intermediates = append(b.Intermediates, *res.intermediates[id])
	}
	for _, id := range sortedLineIDs(res.acquisitions) {
		b.Acquisitions = append(b.Acquisitions, *res.acquisitions[id])
	}

	return b
}

// buildPlanResult merges all step breakdowns into the plan-wide
// intermediates list, shopping list and owned-material usage, and sums
// the total cost. Owned usage contributes zero cost; the total is exactly
// the sum of shopping-list line costs.
func buildPlanResult(steps []planner.PlanStep, breakdowns []planner.StepBreakdown, skillUpCredit float64, generatedAt time.Time) *planner.PlanResult {
	intermediates := make(map[int]*planner.IntermediateLine)
	shopping := make(map[int]*planner.ShoppingListLine)
	ownedUsed := make(map[int]float64)

	for _, b := range breakdowns {
		for _, line := range b.Intermediates {
			agg := intermediates[line.ItemID]
			if agg == nil {
				agg = &planner.IntermediateLine{
					ItemID:       line.ItemID,
					Kind:         line.Kind,
					ProducerName: line.ProducerName,
				}
				intermediates[line.ItemID] = agg
			}
			agg.Quantity += line.ToProduceQuantity
			if line.OwnedUsedQuantity > 0 {
				ownedUsed[line.ItemID] += line.OwnedUsedQuantity
			}
		}

		for _, line := range b.Acquisitions {
			if line.AcquireQuantity > 0 {
				agg := shopping[line.ItemID]
				if agg == nil {
					// Unit price re-derived once from the same
					// vendor-over-market rule the step lines used.
					agg = &planner.ShoppingListLine{
						ItemID:          line.ItemID,
						UnitPriceCopper: line.UnitPriceCopper,
						Source:          line.Source,
					}
					shopping[line.ItemID] = agg
				}
				agg.Quantity += line.AcquireQuantity
			}
			if line.OwnedUsedQuantity > 0 {
				ownedUsed[line.ItemID] += line.OwnedUsedQuantity
			}
		}
	}

	result := &planner.PlanResult{
		Steps:                             steps,
		StepBreakdowns:                    breakdowns,
		SkillCreditApplied:                int(math.Floor(skillUpCredit)),
		ExpectedSkillUpsFromIntermediates: skillUpCredit,
		GeneratedAt:                       generatedAt,
	}

	for _, id := range sortedLineIDs(intermediates) {
		line := intermediates[id]
		if line.Quantity > 0 {
			result.Intermediates = append(result.Intermediates, *line)
		}
	}
	for _, id := range sortedLineIDs(shopping) {
		line := shopping[id]
		result.ShoppingList = append(result.ShoppingList, *line)
		result.TotalCostCopper += line.Quantity * float64(line.UnitPriceCopper)
	}
	for _, id := range sortedKeys(ownedUsed) {
		result.OwnedMaterialsUsed = append(result.OwnedMaterialsUsed, planner.OwnedMaterialLine{
			ItemID:   id,
			Quantity: ownedUsed[id],
		})
	}

	return result
}

func sortedLineIDs[T any](lines map[int]*T) []int {
	ids := make([]int, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedKeys(m map[int]float64) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedItemIDs(set map[int]bool) []int {
	if len(set) == 0 {
		return nil
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
