package telemetry

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
	"github.com/pthm-cable/colonies/systems"
)

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	window      time.Duration
	windowStart scheduler.Time

	// Event counters for current window
	cycles         int
	rounds         int
	trades         int
	founded        int
	abandoned      int
	volume         [components.NumCommodities]float64
	undelivered    float64
	freightDemand  float64
	freightFills   int
	freightCarried float64
	freightExpired int

	records []TradeRecord
}

// NewCollector creates a collector whose first window opens at start.
func NewCollector(window time.Duration, start scheduler.Time) *Collector {
	return &Collector{window: window, windowStart: start}
}

// RecordCycle records a production cycle.
func (c *Collector) RecordCycle() {
	c.cycles++
}

// RecordFounded records newly founded colonies.
func (c *Collector) RecordFounded(n int) {
	c.founded += n
}

// RecordAbandoned records abandoned colonies.
func (c *Collector) RecordAbandoned(n int) {
	c.abandoned += n
}

// RecordRound records the outcome of a trading round held at now.
func (c *Collector) RecordRound(now scheduler.Time, r *systems.TradeRound) {
	c.rounds++
	c.trades += len(r.Trades)
	for i, m := range r.Settled {
		c.volume[i] += m
	}
	c.undelivered += r.Undelivered
	for _, t := range r.Trades {
		if !t.Freight.IsZero() {
			c.freightDemand += t.Quantity
		}
		c.records = append(c.records, NewTradeRecord(now, t))
	}
	c.freightFills += len(r.FreightFills)
	for _, f := range r.FreightFills {
		c.freightCarried += f.Quantity
	}
	c.freightExpired += r.Expired
}

// TakeTrades returns the trades recorded since the last call and clears
// them.
func (c *Collector) TakeTrades() []TradeRecord {
	out := c.records
	c.records = nil
	return out
}

// ShouldFlush returns true if the current window has run its full length.
func (c *Collector) ShouldFlush(now scheduler.Time) bool {
	return now.Sub(c.windowStart) >= c.window
}

// Sample is the economy state observed at the end of a window.
type Sample struct {
	Colonies    int
	Fulfillment []float64 // effective fulfillment per colony
	Stock       [components.NumCommodities]float64
	OpenBids    int
	OpenAsks    int
	FreightBids int
	FreightAsks int
}

// Observe samples every colony and book.
func Observe(colonies *store.Colonies, commodities *market.CommodityMarket, freight *market.FreightMarket) Sample {
	var s Sample
	colonies.Each(func(col store.Colony) {
		s.Colonies++
		worst := 1.0
		for _, f := range col.Fulfillment.Fraction {
			worst = math.Min(worst, f)
		}
		s.Fulfillment = append(s.Fulfillment, worst)
		for i, m := range col.Stockpile.Mass {
			s.Stock[i] += m
		}
	})
	for _, c := range components.Commodities() {
		bids, _ := commodities.Book(c).Depth(market.Buy)
		asks, _ := commodities.Book(c).Depth(market.Sell)
		s.OpenBids += bids
		s.OpenAsks += asks
	}
	s.FreightBids, _ = freight.Book().Depth(market.Buy)
	s.FreightAsks, _ = freight.Book().Depth(market.Sell)
	return s
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(now scheduler.Time, sample Sample) WindowStats {
	fulfill := Summarize(sample.Fulfillment)

	stats := WindowStats{
		WindowStartDay: c.windowStart.Days(),
		WindowEndDay:   now.Days(),

		Colonies:  sample.Colonies,
		Founded:   c.founded,
		Abandoned: c.abandoned,

		Cycles:      c.cycles,
		TradeRounds: c.rounds,
		Trades:      c.trades,
		FoodVolume:  c.volume[components.Food],
		OreVolume:   c.volume[components.Ore],
		MetalVolume: c.volume[components.Metal],
		WaterVolume: c.volume[components.Water],
		Undelivered: c.undelivered,

		FreightDemand:  c.freightDemand,
		FreightFills:   c.freightFills,
		FreightCarried: c.freightCarried,
		FreightExpired: c.freightExpired,

		FulfillMean: fulfill.Mean,
		FulfillP10:  fulfill.P10,
		FulfillP50:  fulfill.P50,
		FulfillP90:  fulfill.P90,

		FoodStock:  sample.Stock[components.Food],
		OreStock:   sample.Stock[components.Ore],
		MetalStock: sample.Stock[components.Metal],
		WaterStock: sample.Stock[components.Water],

		OpenBids:    sample.OpenBids,
		OpenAsks:    sample.OpenAsks,
		FreightBids: sample.FreightBids,
		FreightAsks: sample.FreightAsks,
	}
	stats.Volume = floats.Sum(c.volume[:])

	// Reset for next window
	*c = Collector{window: c.window, windowStart: now, records: c.records}

	return stats
}
