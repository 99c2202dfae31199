package engine

import "github.com/ahplanner/planner-server/pkg/planner"

// bomResolver expands a required item into intermediate crafting actions
// and buyable leaves against one immutable snapshot.
type bomResolver struct {
	producers    map[int]*planner.Recipe
	vendor       map[int]int64
	prices       map[int]planner.PriceSummary
	mode         planner.PriceMode
	professionID int
	useCraft     bool
	useSmelt     bool
	chance       ChanceModel
}

// stepResolution accumulates the lines, cost and intermediate skill-up
// credit of one resolution pass. Lines are aggregated per item so a step
// carries at most one line per item.
type stepResolution struct {
	intermediates map[int]*planner.StepIntermediateLine
	acquisitions  map[int]*planner.StepAcquireLine
	costCopper    float64
	skillUpCredit float64
}

func newStepResolution() *stepResolution {
	return &stepResolution{
		intermediates: make(map[int]*planner.StepIntermediateLine),
		acquisitions:  make(map[int]*planner.StepAcquireLine),
	}
}

// resolve expands a requirement of qty units of itemID.
//
// Vendor availability always short-circuits expansion: a vendor-sold item
// is a buyable leaf even when a producer recipe exists. Otherwise an
// eligible producer makes the item an intermediate whose remaining (not
// owned) quantity is expanded into the producer's reagents, scaled by the
// producer's output quantity. Anything else is a market leaf.
//
// path carries the item ids currently being expanded in this branch; an
// item met again while on the path is a reagent cycle in the data and is
// resolved as a leaf instead of recursing forever.
func (b *bomResolver) resolve(itemID int, qty float64, skill int, path []int, pool *ownedPool, res *stepResolution, missing map[int]bool) {
	if qty <= 0 {
		return
	}

	if _, vendorSold := b.vendor[itemID]; !vendorSold {
		if producer, ok := b.producers[itemID]; ok && b.eligible(producer) && !contains(path, itemID) {
			b.resolveIntermediate(producer, itemID, qty, skill, path, pool, res, missing)
			return
		}
	}

	b.resolveLeaf(itemID, qty, pool, res, missing)
}

func (b *bomResolver) resolveIntermediate(producer *planner.Recipe, itemID int, qty float64, skill int, path []int, pool *ownedPool, res *stepResolution, missing map[int]bool) {
	ownedUsed := pool.take(itemID, qty)
	toProduce := qty - ownedUsed

	line := res.intermediates[itemID]
	if line == nil {
		line = &planner.StepIntermediateLine{
			ItemID:       itemID,
			Kind:         producer.Kind,
			ProducerName: producer.Name,
		}
		res.intermediates[itemID] = line
	}
	line.RequiredQuantity += qty
	line.OwnedUsedQuantity += ownedUsed
	line.ToProduceQuantity += toProduce

	if toProduce <= 0 {
		return
	}

	crafts := toProduce / float64(producer.Output.Quantity)

	// Crafting your own materials can grant skill-ups for free when the
	// producer belongs to the planned profession and is not yet gray at
	// the step's skill. Reported as a side credit, never advances the loop.
	if producer.ProfessionID == b.professionID {
		if p := b.chance(producer, skill); p > 0 {
			res.skillUpCredit += crafts * p
		}
	}

	branch := append(path, itemID)
	for _, reagent := range producer.Reagents {
		if reagent.Quantity <= 0 {
			continue
		}
		b.resolve(reagent.ItemID, crafts*float64(reagent.Quantity), skill, branch, pool, res, missing)
	}
}

func (b *bomResolver) resolveLeaf(itemID int, qty float64, pool *ownedPool, res *stepResolution, missing map[int]bool) {
	ownedUsed := pool.take(itemID, qty)
	acquire := qty - ownedUsed

	source, unitPrice := priceLeaf(itemID, b.vendor, b.prices, b.mode)

	line := res.acquisitions[itemID]
	if line == nil {
		line = &planner.StepAcquireLine{
			ItemID:          itemID,
			Source:          source,
			UnitPriceCopper: unitPrice,
		}
		res.acquisitions[itemID] = line
	}
	line.RequiredQuantity += qty
	line.OwnedUsedQuantity += ownedUsed
	line.AcquireQuantity += acquire

	if acquire > 0 {
		if source == planner.SourceUnresolved {
			missing[itemID] = true
		}
		res.costCopper += acquire * float64(unitPrice)
	}
}

// eligible reports whether a producer kind may be expanded through under
// the request's intermediate flags. Smelting producers need the smelt
// flag; crafting producers outside the planned profession need the craft
// flag; the profession's own crafting recipes are always expandable.
func (b *bomResolver) eligible(producer *planner.Recipe) bool {
	switch producer.Kind {
	case planner.ProducerSmelt:
		return b.useSmelt
	case planner.ProducerCraft:
		return b.useCraft || producer.ProfessionID == b.professionID
	default:
		return false
	}
}

func contains(path []int, itemID int) bool {
	for _, id := range path {
		if id == itemID {
			return true
		}
	}
	return false
}
