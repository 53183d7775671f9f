package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
)

// CommodityTerms carries what is traded and where the posting colony is.
type CommodityTerms struct {
	Commodity components.Commodity
	Location  components.Location
}

// Trade is a commodity fill plus the freight demand it created.
type Trade struct {
	Fill[CommodityTerms]
	Commodity components.Commodity
	Distance  float64
	Freight   OrderID // zero when buyer and seller share a location
}

// CommodityMarket is a spot market with one book per commodity. Every trade
// between distinct locations posts a freight bid for the shipment.
type CommodityMarket struct {
	books   [components.NumCommodities]*Book[CommodityTerms]
	freight *FreightMarket
	pricer  FreightPricer
	horizon time.Duration
}

// NewCommodityMarket creates empty books in w. Freight bids for trades are
// priced by pricer and must be delivered within horizon.
func NewCommodityMarket(w *ecs.World, freight *FreightMarket, pricer FreightPricer, horizon time.Duration) *CommodityMarket {
	m := &CommodityMarket{
		freight: freight,
		pricer:  pricer,
		horizon: horizon,
	}
	for i := range m.books {
		m.books[i] = NewBook[CommodityTerms](w, nil)
	}
	return m
}

// Book returns the order book for one commodity.
func (m *CommodityMarket) Book(c components.Commodity) *Book[CommodityTerms] {
	return m.books[c]
}

// PostBid posts a buy order from a colony at loc.
func (m *CommodityMarket) PostBid(c components.Commodity, price, amount float64, owner ecs.Entity, loc components.Location) (OrderID, error) {
	return m.books[c].Post(Buy, price, amount, owner, CommodityTerms{Commodity: c, Location: loc})
}

// PostAsk posts a sell order from a colony at loc.
func (m *CommodityMarket) PostAsk(c components.Commodity, price, amount float64, owner ecs.Entity, loc components.Location) (OrderID, error) {
	return m.books[c].Post(Sell, price, amount, owner, CommodityTerms{Commodity: c, Location: loc})
}

// Withdraw removes a standing order from whichever book holds it.
func (m *CommodityMarket) Withdraw(id OrderID) error {
	for _, b := range m.books {
		err := b.Withdraw(id)
		if !errors.Is(err, ErrOrderNotFound) {
			return err
		}
	}
	return ErrOrderNotFound
}

// Get returns a standing order from whichever book holds it.
func (m *CommodityMarket) Get(id OrderID) (Order[CommodityTerms], error) {
	for _, b := range m.books {
		if o, err := b.Get(id); err == nil {
			return o, nil
		}
	}
	return Order[CommodityTerms]{}, ErrOrderNotFound
}

// BestBid returns the highest standing bid for a commodity.
func (m *CommodityMarket) BestBid(c components.Commodity) (float64, bool) {
	return m.books[c].BestBid()
}

// BestAsk returns the lowest standing ask for a commodity.
func (m *CommodityMarket) BestAsk(c components.Commodity) (float64, bool) {
	return m.books[c].BestAsk()
}

// Match clears every book in commodity order and posts freight demand for
// each resulting shipment.
func (m *CommodityMarket) Match() []Trade {
	var trades []Trade
	for c, book := range m.books {
		for _, fill := range book.Match() {
			trade := Trade{
				Fill:      fill,
				Commodity: components.Commodity(c),
				Distance:  fill.Ask.Terms.Location.DistanceTo(fill.Bid.Terms.Location),
			}
			if trade.Distance > 0 && m.freight != nil {
				trade.Freight = m.postShipment(trade)
			}
			trades = append(trades, trade)
		}
	}
	return trades
}

func (m *CommodityMarket) postShipment(t Trade) OrderID {
	route := FreightTerms{
		Distance:    t.Distance,
		Duration:    m.horizon,
		Origin:      t.Ask.Terms.Location,
		Destination: t.Bid.Terms.Location,
	}
	id, err := m.freight.PostBid(m.pricer.Quote(t.Distance), t.Quantity, t.Bid.Owner, route)
	if err != nil {
		// Quantity is positive by construction, so only a broken pricer
		// gets here.
		panic(fmt.Sprintf("market: freight demand for %v trade: %v", t.Commodity, err))
	}
	return id
}
