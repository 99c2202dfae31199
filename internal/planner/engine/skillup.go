package engine

import "github.com/ahplanner/planner-server/pkg/planner"

// ChanceModel computes the probability that one successful craft of the
// recipe grants a skill point at the given current skill. The exact shape
// of the yellow/green decay is a policy choice, so it is replaceable.
type ChanceModel func(r *planner.Recipe, skill int) float64

// LinearChance is the default decay policy: guaranteed skill-ups through
// the orange band, then a single linear ramp from the end of orange down
// to zero at GrayAt. Strictly decreasing through both yellow and green.
func LinearChance(r *planner.Recipe, skill int) float64 {
	if skill < r.MinSkill || skill >= r.GrayAt {
		return 0
	}
	if skill <= r.OrangeUntil {
		return 1
	}
	span := r.GrayAt - r.OrangeUntil
	if span <= 0 {
		return 0
	}
	return float64(r.GrayAt-skill) / float64(span)
}

// bandEnd returns the last skill point at which the recipe stays in its
// current color band. Crafting at GrayAt or beyond grants nothing, so the
// gray boundary is exclusive.
func bandEnd(r *planner.Recipe, skill int) int {
	switch {
	case skill <= r.OrangeUntil:
		return r.OrangeUntil
	case skill <= r.YellowUntil:
		return r.YellowUntil
	case skill <= r.GreenUntil:
		return r.GreenUntil
	default:
		return r.GrayAt - 1
	}
}

// expectedCrafts returns the expected number of successful crafts needed
// to gain the given number of skill points at a constant chance. Each
// successful craft advances skill by exactly one point, so one point costs
// 1/p crafts in expectation.
func expectedCrafts(chance float64, points int) float64 {
	if chance <= 0 || points <= 0 {
		return 0
	}
	return float64(points) / chance
}
