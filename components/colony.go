package components

import "math"

// Mass is kilograms; MassRate is kilograms per simulated second.
type (
	Mass     = float64
	MassRate = float64
)

// Name is a colony's display name.
type Name struct {
	Value string
}

// Location is a fixed position in the plane, in abstract distance units.
type Location struct {
	X, Y float64
}

// DistanceTo returns the straight-line distance between two locations.
func (l Location) DistanceTo(o Location) float64 {
	return math.Hypot(o.X-l.X, o.Y-l.Y)
}

// Stockpile holds the mass of each commodity on hand. Never negative.
type Stockpile struct {
	Mass [NumCommodities]Mass
}

// Total returns the summed mass across all commodities.
func (s *Stockpile) Total() Mass {
	var sum Mass
	for _, m := range s.Mass {
		sum += m
	}
	return sum
}

// Demand holds the input mass requested by facilities this cycle.
// Reset to zero at the start of every production cycle.
type Demand struct {
	Requested [NumCommodities]Mass
}

// Fulfillment is the fraction of each commodity's demand the stockpile
// could cover this cycle, in [0,1].
type Fulfillment struct {
	Fraction [NumCommodities]float64
}

// Production holds the configured output rate of each facility.
type Production struct {
	Rate [NumFacilities]MassRate
}

// Idle reports whether every facility rate is zero.
func (p *Production) Idle() bool {
	for _, r := range p.Rate {
		if r != 0 {
			return false
		}
	}
	return true
}

// Rationing is an exponentially smoothed view of Fulfillment, updated on a
// slower cadence than production.
type Rationing struct {
	Smoothed [NumCommodities]float64
}

// FullRationing returns a Rationing with every commodity fully supplied.
func FullRationing() Rationing {
	var r Rationing
	for i := range r.Smoothed {
		r.Smoothed[i] = 1
	}
	return r
}
