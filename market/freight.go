package market

import (
	"math"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
)

// Drive is the capability a freighter offers: how far it can go on one trip
// and how fast it gets there.
type Drive struct {
	Range float64 // distance units
	Speed float64 // distance units per simulated second
}

// maxTripSeconds is the longest trip a time.Duration can hold.
const maxTripSeconds = float64(math.MaxInt64) / float64(time.Second)

// tripSeconds returns the travel time in seconds, and false if the drive
// cannot cover distance at all.
func (d Drive) tripSeconds(distance float64) (float64, bool) {
	if !(distance <= d.Range) {
		return 0, false
	}
	if distance == 0 {
		return 0, true
	}
	if d.Speed <= 0 {
		return 0, false
	}
	return distance / d.Speed, true
}

// TripDuration returns how long the drive needs to cover distance, and false
// if it cannot cover it at all or the trip is too long to represent.
func (d Drive) TripDuration(distance float64) (time.Duration, bool) {
	secs, ok := d.tripSeconds(distance)
	if !ok || secs > maxTripSeconds {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// FreightTerms carries the route of a freight bid or the offer of a freight
// ask. Bids fill Distance, Duration, Origin and Destination; asks fill Drive
// and Origin (where the freighter is based).
type FreightTerms struct {
	Distance    float64
	Duration    time.Duration // latest acceptable trip time
	Origin      components.Location
	Destination components.Location
	Drive       Drive
}

// Feasible reports whether the ask's drive can fly the bid's route within
// the bid's required duration.
func Feasible(bid, ask Order[FreightTerms]) bool {
	secs, ok := ask.Terms.Drive.tripSeconds(bid.Terms.Distance)
	return ok && secs <= bid.Terms.Duration.Seconds()
}

// FreightMarket trades shipping capacity, in kilograms, between shippers and
// freighters.
type FreightMarket struct {
	book *Book[FreightTerms]
}

// NewFreightMarket creates an empty freight market in w.
func NewFreightMarket(w *ecs.World) *FreightMarket {
	return &FreightMarket{book: NewBook[FreightTerms](w, Feasible)}
}

// PostBid asks for amount kilograms to be carried along route.
func (m *FreightMarket) PostBid(price, amount float64, owner ecs.Entity, route FreightTerms) (OrderID, error) {
	route.Drive = Drive{}
	return m.book.Post(Buy, price, amount, owner, route)
}

// PostAsk offers capacity kilograms of carriage with the given drive.
func (m *FreightMarket) PostAsk(price, capacity float64, owner ecs.Entity, drive Drive, base components.Location) (OrderID, error) {
	return m.book.Post(Sell, price, capacity, owner, FreightTerms{Drive: drive, Origin: base})
}

// Withdraw removes a standing freight order.
func (m *FreightMarket) Withdraw(id OrderID) error {
	return m.book.Withdraw(id)
}

// Get returns a standing freight order.
func (m *FreightMarket) Get(id OrderID) (Order[FreightTerms], error) {
	return m.book.Get(id)
}

// BestBid returns the highest standing freight bid price.
func (m *FreightMarket) BestBid() (float64, bool) { return m.book.BestBid() }

// BestAsk returns the lowest standing freight ask price.
func (m *FreightMarket) BestAsk() (float64, bool) { return m.book.BestAsk() }

// Book exposes the underlying order book.
func (m *FreightMarket) Book() *Book[FreightTerms] { return m.book }

// Match fills every feasible crossing pair. Bids no freighter can serve
// stay posted.
func (m *FreightMarket) Match() []Fill[FreightTerms] {
	return m.book.Match()
}
