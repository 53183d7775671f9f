// Package telemetry tracks economy health in fixed reporting windows and
// writes it out as CSV.
package telemetry

import (
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
)

// TradeRecord is one settled commodity trade, as written to trades.csv.
type TradeRecord struct {
	Day       float64 `csv:"day"`
	Commodity string  `csv:"commodity"`
	Quantity  float64 `csv:"quantity"`
	Price     float64 `csv:"price"`
	Distance  float64 `csv:"distance"`
	Seller    uint32  `csv:"seller"`
	Buyer     uint32  `csv:"buyer"`
	Freight   bool    `csv:"freight"`
}

// NewTradeRecord flattens a market trade made at now.
func NewTradeRecord(now scheduler.Time, t market.Trade) TradeRecord {
	return TradeRecord{
		Day:       now.Days(),
		Commodity: t.Commodity.String(),
		Quantity:  t.Quantity,
		Price:     t.Price,
		Distance:  t.Distance,
		Seller:    t.Ask.Owner.ID(),
		Buyer:     t.Bid.Owner.ID(),
		Freight:   !t.Freight.IsZero(),
	}
}
