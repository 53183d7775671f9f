package systems

import (
	"fmt"
	"math"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
)

// Fulfill returns the fraction of requested mass the stockpile can cover.
// Zero demand is always fully met.
func Fulfill(stockpile, requested components.Mass) float64 {
	mustNonNegative("stockpile", stockpile)
	mustNonNegative("requested", requested)
	if requested == 0 {
		return 1
	}
	return math.Min(1, stockpile/requested)
}

// EffectiveFulfillment is the minimum fulfillment across a recipe's inputs,
// or 1 when it has none. A facility missing any input is throttled on all
// of them.
func EffectiveFulfillment(r components.Recipe, f *components.Fulfillment) float64 {
	eff := 1.0
	for _, in := range r.Inputs {
		eff = math.Min(eff, f.Fraction[in.Commodity])
	}
	return eff
}

func mustNonNegative(what string, v float64) {
	if v < 0 || math.IsNaN(v) {
		panic(fmt.Sprintf("production: %s is %g", what, v))
	}
}

// ProductionSystem converts facility capacity and stockpiles into output once
// per cycle, rationing proportionally when inputs are short.
type ProductionSystem struct {
	interval time.Duration
	recipes  *[components.NumFacilities]components.Recipe
	filter   *ecs.Filter4[components.Stockpile, components.Demand, components.Fulfillment, components.Production]
}

// NewProductionSystem creates a production engine that runs cycles of the
// given length over every colony in w.
func NewProductionSystem(w *ecs.World, interval time.Duration) *ProductionSystem {
	if interval <= 0 {
		panic(fmt.Sprintf("production: non-positive cycle interval %v", interval))
	}
	return &ProductionSystem{
		interval: interval,
		recipes:  &components.Recipes,
		filter:   ecs.NewFilter4[components.Stockpile, components.Demand, components.Fulfillment, components.Production](w),
	}
}

// UseRecipes replaces the facility recipe table.
func (s *ProductionSystem) UseRecipes(recipes *[components.NumFacilities]components.Recipe) *ProductionSystem {
	s.recipes = recipes
	return s
}

// Interval returns the cycle length.
func (s *ProductionSystem) Interval() time.Duration {
	return s.interval
}

// RunCycle runs one production cycle: reset demand, request inputs, compute
// fulfillment, then consume and produce.
func (s *ProductionSystem) RunCycle() {
	dt := s.interval.Seconds()

	query := s.filter.Query()
	defer func() {
		// An invariant panic must not leave the world locked.
		if r := recover(); r != nil {
			query.Close()
			panic(r)
		}
	}()
	for query.Next() {
		stock, demand, fulfillment, prod := query.Get()

		s.request(demand, prod, dt)
		for c := range fulfillment.Fraction {
			fulfillment.Fraction[c] = Fulfill(stock.Mass[c], demand.Requested[c])
		}
		s.produce(stock, fulfillment, prod, dt)
		s.ship(stock, demand)
	}
}

// request resets demand and adds every running facility's input needs.
func (s *ProductionSystem) request(demand *components.Demand, prod *components.Production, dt float64) {
	demand.Requested = [components.NumCommodities]components.Mass{}

	for f, rate := range prod.Rate {
		mustNonNegative("production rate", rate)
		if rate == 0 {
			continue
		}
		for _, in := range s.recipes[f].Inputs {
			demand.Requested[in.Commodity] += rate * in.Multiplier * dt
		}
	}
}

// produce scales each facility's consumption and output by its effective
// fulfillment.
func (s *ProductionSystem) produce(stock *components.Stockpile, fulfillment *components.Fulfillment, prod *components.Production, dt float64) {
	for f, rate := range prod.Rate {
		if rate == 0 {
			continue
		}
		recipe := s.recipes[f]
		eff := EffectiveFulfillment(recipe, fulfillment)

		for _, in := range recipe.Inputs {
			used := rate * in.Multiplier * eff * dt
			stock.Mass[in.Commodity] = math.Max(0, stock.Mass[in.Commodity]-used)
		}
		stock.Mass[recipe.Output] += rate * eff * dt
	}
}

// ship is where shipping-related demand and marshalling would hook in.
func (s *ProductionSystem) ship(*components.Stockpile, *components.Demand) {}
