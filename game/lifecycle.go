package game

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/store"
)

// foundConfiguredColonies creates every colony listed in the config.
func (g *Game) foundConfiguredColonies() error {
	for _, spec := range g.cfg.Derived.Colonies {
		if _, err := g.Found(spec); err != nil {
			return err
		}
	}
	return nil
}

// foundGeneratedColonies adds randomly placed colonies, each running a
// random subset of facilities.
func (g *Game) foundGeneratedColonies() error {
	gen := g.cfg.Generation
	for i := 0; i < gen.Count; i++ {
		// Uniform over the disc.
		r := gen.Radius * math.Sqrt(g.rng.Float64())
		theta := g.rng.Float64() * 2 * math.Pi

		spec := config.ColonySpec{
			Name:     fmt.Sprintf("Outpost %d", i+1),
			Location: components.Location{X: r * math.Cos(theta), Y: r * math.Sin(theta)},
		}
		for _, f := range g.rng.Perm(components.NumFacilities)[:min(gen.Facilities, components.NumFacilities)] {
			spec.Production[f] = g.rng.Float64() * gen.MaxRate
		}
		for c := range spec.Stock {
			spec.Stock[c] = g.rng.Float64() * gen.InitialStock
		}
		if _, err := g.Found(spec); err != nil {
			return err
		}
	}
	return nil
}

// Found creates a colony from spec. A spec with negative stock or rates is
// rejected before anything is created.
func (g *Game) Found(spec config.ColonySpec) (store.ColonyID, error) {
	for c, m := range spec.Stock {
		if m < 0 || math.IsNaN(m) {
			return store.ColonyID{}, fmt.Errorf("found %q: %v stock %g: %w", spec.Name, components.Commodity(c), m, config.ErrInvalid)
		}
	}
	for f, rate := range spec.Production {
		if rate < 0 || math.IsNaN(rate) {
			return store.ColonyID{}, fmt.Errorf("found %q: %v rate %g: %w", spec.Name, components.Facility(f), rate, store.ErrNegativeRate)
		}
	}

	id := g.colonies.Found(spec.Name, spec.Location)
	for c, m := range spec.Stock {
		if m > 0 {
			if err := g.colonies.Deposit(id, components.Commodity(c), m); err != nil {
				return id, fmt.Errorf("found %q: %w", spec.Name, err)
			}
		}
	}
	for f, rate := range spec.Production {
		if err := g.colonies.SetProductionRate(id, components.Facility(f), rate); err != nil {
			return id, fmt.Errorf("found %q: %w", spec.Name, err)
		}
	}
	g.collector.RecordFounded(1)

	g.log.Debug("colony founded",
		zap.String("name", spec.Name),
		zap.Uint32("id", id.ID()),
		zap.Float64("x", spec.Location.X),
		zap.Float64("y", spec.Location.Y),
	)
	return id, nil
}

// onAbandon withdraws a dying colony's orders before it is removed.
func (g *Game) onAbandon(col store.Colony) {
	g.trading.Forget(col.ID)
	g.log.Info("colony abandoned",
		zap.String("name", col.Name.Value),
		zap.Uint32("id", col.ID.ID()),
		zap.Stringer("at", g.clock.Now()),
	)
}
