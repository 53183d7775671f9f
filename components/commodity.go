package components

import "fmt"

// Commodity is one of the bulk goods colonies produce, consume and trade.
type Commodity uint8

const (
	Food Commodity = iota
	Ore
	Metal
	Water

	NumCommodities = 4
)

var commodityNames = [NumCommodities]string{"food", "ore", "metal", "water"}

// String returns the lowercase commodity name.
func (c Commodity) String() string {
	if int(c) < NumCommodities {
		return commodityNames[c]
	}
	return fmt.Sprintf("commodity(%d)", c)
}

// ParseCommodity looks up a commodity by its lowercase name.
func ParseCommodity(name string) (Commodity, error) {
	for i, n := range commodityNames {
		if n == name {
			return Commodity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown commodity %q", name)
}

// Commodities lists every commodity in declaration order.
func Commodities() [NumCommodities]Commodity {
	var out [NumCommodities]Commodity
	for i := range out {
		out[i] = Commodity(i)
	}
	return out
}

// Facility is a production process turning inputs into one output commodity.
type Facility uint8

const (
	Farmland Facility = iota
	Hydroponics
	Mine
	Foundry
	IceMine

	NumFacilities = 5
)

var facilityNames = [NumFacilities]string{"farmland", "hydroponics", "mine", "foundry", "ice_mine"}

func (f Facility) String() string {
	if int(f) < NumFacilities {
		return facilityNames[f]
	}
	return fmt.Sprintf("facility(%d)", f)
}

// ParseFacility looks up a facility by its config name.
func ParseFacility(name string) (Facility, error) {
	for i, n := range facilityNames {
		if n == name {
			return Facility(i), nil
		}
	}
	return 0, fmt.Errorf("unknown facility %q", name)
}

// Input is consumed at Multiplier kg per kg of output.
type Input struct {
	Commodity  Commodity
	Multiplier float64
}

// Recipe describes what a facility consumes and produces.
type Recipe struct {
	Inputs []Input
	Output Commodity
}

// Recipes is indexed by Facility.
var Recipes = [NumFacilities]Recipe{
	Farmland:    {Output: Food},
	Hydroponics: {Inputs: []Input{{Commodity: Water, Multiplier: 0.5}}, Output: Food},
	Mine:        {Output: Ore},
	Foundry:     {Inputs: []Input{{Commodity: Ore, Multiplier: 4}}, Output: Metal},
	IceMine:     {Output: Water},
}
