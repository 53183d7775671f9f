// Package store keeps colony state in the ECS world and hands out validated
// handles to it.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
)

var (
	// ErrColonyNotFound is returned for identifiers whose colony has been
	// abandoned, or that never referred to a colony.
	ErrColonyNotFound = errors.New("colony not found")

	// ErrNegativeRate is returned when a production rate below zero is set.
	ErrNegativeRate = errors.New("negative production rate")
)

// ColonyID is a generation-checked entity identifier.
type ColonyID = ecs.Entity

// Colony is a validated handle: every pointer refers to live component
// storage. Handles stay valid until the next entity is created or removed.
type Colony struct {
	ID          ColonyID
	Name        *components.Name
	Location    *components.Location
	Stockpile   *components.Stockpile
	Demand      *components.Demand
	Fulfillment *components.Fulfillment
	Production  *components.Production
	Rationing   *components.Rationing
}

// Colonies owns every colony entity in a world.
type Colonies struct {
	world *ecs.World

	builder *ecs.Map7[
		components.Name,
		components.Location,
		components.Stockpile,
		components.Demand,
		components.Fulfillment,
		components.Production,
		components.Rationing,
	]
	filter *ecs.Filter1[components.Name]

	names       *ecs.Map[components.Name]
	locations   *ecs.Map[components.Location]
	stockpiles  *ecs.Map[components.Stockpile]
	demands     *ecs.Map[components.Demand]
	fulfillment *ecs.Map[components.Fulfillment]
	production  *ecs.Map[components.Production]
	rationing   *ecs.Map[components.Rationing]
}

// NewColonies creates a colony store backed by w.
func NewColonies(w *ecs.World) *Colonies {
	return &Colonies{
		world: w,
		builder: ecs.NewMap7[
			components.Name,
			components.Location,
			components.Stockpile,
			components.Demand,
			components.Fulfillment,
			components.Production,
			components.Rationing,
		](w),
		filter:      ecs.NewFilter1[components.Name](w),
		names:       ecs.NewMap[components.Name](w),
		locations:   ecs.NewMap[components.Location](w),
		stockpiles:  ecs.NewMap[components.Stockpile](w),
		demands:     ecs.NewMap[components.Demand](w),
		fulfillment: ecs.NewMap[components.Fulfillment](w),
		production:  ecs.NewMap[components.Production](w),
		rationing:   ecs.NewMap[components.Rationing](w),
	}
}

// World returns the ECS world the store writes to.
func (c *Colonies) World() *ecs.World {
	return c.world
}

// Found creates a colony with empty stockpiles and idle facilities.
func (c *Colonies) Found(name string, loc components.Location) ColonyID {
	var fulfillment components.Fulfillment
	for i := range fulfillment.Fraction {
		fulfillment.Fraction[i] = 1
	}
	rationing := components.FullRationing()

	return c.builder.NewEntity(
		&components.Name{Value: name},
		&loc,
		&components.Stockpile{},
		&components.Demand{},
		&fulfillment,
		&components.Production{},
		&rationing,
	)
}

// Alive reports whether id still refers to a colony.
func (c *Colonies) Alive(id ColonyID) bool {
	return !id.IsZero() && c.world.Alive(id) && c.names.Has(id)
}

// Lookup validates id and returns a handle to its components.
func (c *Colonies) Lookup(id ColonyID) (Colony, error) {
	if !c.Alive(id) {
		return Colony{}, ErrColonyNotFound
	}
	return Colony{
		ID:          id,
		Name:        c.names.Get(id),
		Location:    c.locations.Get(id),
		Stockpile:   c.stockpiles.Get(id),
		Demand:      c.demands.Get(id),
		Fulfillment: c.fulfillment.Get(id),
		Production:  c.production.Get(id),
		Rationing:   c.rationing.Get(id),
	}, nil
}

// Abandon zeroes a colony's fields and removes it. The identifier is
// invalidated; later lookups return ErrColonyNotFound.
func (c *Colonies) Abandon(id ColonyID) error {
	col, err := c.Lookup(id)
	if err != nil {
		return err
	}
	*col.Stockpile = components.Stockpile{}
	*col.Demand = components.Demand{}
	*col.Fulfillment = components.Fulfillment{}
	*col.Production = components.Production{}
	*col.Rationing = components.Rationing{}

	c.world.RemoveEntity(id)
	return nil
}

// SetProductionRate sets the output rate of one facility in kg/s.
func (c *Colonies) SetProductionRate(id ColonyID, f components.Facility, rate components.MassRate) error {
	if int(f) >= components.NumFacilities {
		return fmt.Errorf("set production rate: %v", f)
	}
	if rate < 0 || math.IsNaN(rate) {
		return fmt.Errorf("set production rate %v=%g: %w", f, rate, ErrNegativeRate)
	}
	col, err := c.Lookup(id)
	if err != nil {
		return err
	}
	col.Production.Rate[f] = rate
	return nil
}

// Deposit adds mass of a commodity to a colony's stockpile.
func (c *Colonies) Deposit(id ColonyID, com components.Commodity, m components.Mass) error {
	if m < 0 || math.IsNaN(m) {
		panic(fmt.Sprintf("store: deposit of invalid mass %g", m))
	}
	col, err := c.Lookup(id)
	if err != nil {
		return err
	}
	col.Stockpile.Mass[com] += m
	return nil
}

// Withdraw removes up to m of a commodity and returns the mass actually
// removed. The stockpile is floored at zero.
func (c *Colonies) Withdraw(id ColonyID, com components.Commodity, m components.Mass) (components.Mass, error) {
	if m < 0 || math.IsNaN(m) {
		panic(fmt.Sprintf("store: withdrawal of invalid mass %g", m))
	}
	col, err := c.Lookup(id)
	if err != nil {
		return 0, err
	}
	taken := math.Min(m, col.Stockpile.Mass[com])
	col.Stockpile.Mass[com] -= taken
	return taken, nil
}

// IDs returns every live colony ordered by entity index.
func (c *Colonies) IDs() []ColonyID {
	var ids []ColonyID
	query := c.filter.Query()
	for query.Next() {
		ids = append(ids, query.Entity())
	}
	slices.SortFunc(ids, func(a, b ColonyID) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return ids
}

// Len returns the number of live colonies.
func (c *Colonies) Len() int {
	return len(c.IDs())
}

// Each calls fn for every live colony in IDs order. fn must not found or
// abandon colonies; collect IDs and act after Each returns instead.
func (c *Colonies) Each(fn func(Colony)) {
	for _, id := range c.IDs() {
		col, err := c.Lookup(id)
		if err != nil {
			continue
		}
		fn(col)
	}
}
