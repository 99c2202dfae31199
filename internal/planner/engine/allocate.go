package engine

import "github.com/ahplanner/planner-server/pkg/planner"

// ownedPool tracks how much of the player's inventory a plan has claimed.
// Owned materials are a shared, depleting pool across all steps, allocated
// in step order. The pool is private to one plan computation; the caller's
// inventory map is never mutated.
type ownedPool struct {
	remaining map[int]float64
}

func newOwnedPool(owned map[int]int64, enabled bool) *ownedPool {
	p := &ownedPool{remaining: make(map[int]float64, len(owned))}
	if !enabled {
		return p
	}
	for itemID, qty := range owned {
		if qty > 0 {
			p.remaining[itemID] = float64(qty)
		}
	}
	return p
}

// take allocates up to qty from the pool and returns how much was taken.
func (p *ownedPool) take(itemID int, qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	avail := p.remaining[itemID]
	if avail <= 0 {
		return 0
	}
	if avail >= qty {
		p.remaining[itemID] = avail - qty
		return qty
	}
	delete(p.remaining, itemID)
	return avail
}

// clone copies the pool for prospective candidate costing, which must not
// deplete the real inventory.
func (p *ownedPool) clone() *ownedPool {
	c := &ownedPool{remaining: make(map[int]float64, len(p.remaining))}
	for itemID, qty := range p.remaining {
		c.remaining[itemID] = qty
	}
	return c
}

// priceLeaf selects the acquisition source and unit price for a leaf item:
// vendor price when present, otherwise the active price-mode market value,
// otherwise an unresolved zero-cost placeholder the caller must surface.
func priceLeaf(itemID int, vendor map[int]int64, prices map[int]planner.PriceSummary, mode planner.PriceMode) (planner.AcquisitionSource, int64) {
	if copper, ok := vendor[itemID]; ok {
		return planner.SourceVendor, copper
	}
	if summary, ok := prices[itemID]; ok {
		return planner.SourceMarket, summary.ValueFor(mode)
	}
	return planner.SourceUnresolved, 0
}
