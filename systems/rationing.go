package systems

import (
	"fmt"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/store"
)

// RationingSystem folds each colony's latest fulfillment into a smoothed
// rationing level and abandons colonies that can no longer do anything.
type RationingSystem struct {
	colonies *store.Colonies
	alpha    float64

	// OnAbandon is called for each colony just before it is removed.
	OnAbandon func(col store.Colony)
}

// NewRationingSystem creates a rationing system. alpha is the weight of the
// newest fulfillment sample and must be in (0, 1].
func NewRationingSystem(colonies *store.Colonies, alpha float64) *RationingSystem {
	if !(alpha > 0 && alpha <= 1) {
		panic(fmt.Sprintf("rationing: smoothing %g outside (0, 1]", alpha))
	}
	return &RationingSystem{colonies: colonies, alpha: alpha}
}

// Update smooths every colony's rationing level and returns the colonies
// abandoned this round.
func (s *RationingSystem) Update() []store.ColonyID {
	var dead []store.ColonyID
	s.colonies.Each(func(col store.Colony) {
		for c := range col.Rationing.Smoothed {
			prev := col.Rationing.Smoothed[c]
			col.Rationing.Smoothed[c] = prev + s.alpha*(col.Fulfillment.Fraction[c]-prev)
		}
		if Abandoned(col.Production, col.Stockpile) {
			dead = append(dead, col.ID)
		}
	})

	// Removal moves component storage, so it happens after iteration.
	for _, id := range dead {
		if s.OnAbandon != nil {
			if col, err := s.colonies.Lookup(id); err == nil {
				s.OnAbandon(col)
			}
		}
		if err := s.colonies.Abandon(id); err != nil {
			panic(fmt.Sprintf("rationing: abandon %v: %v", id, err))
		}
	}
	return dead
}

// Abandoned reports whether a colony has no running facility and nothing
// left in store.
func Abandoned(prod *components.Production, stock *components.Stockpile) bool {
	return prod.Idle() && stock.Total() == 0
}
