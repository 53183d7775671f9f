package telemetry

import (
	"sort"

	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
)

// Distribution summarizes a sample by its mean and three quantiles.
type Distribution struct {
	Mean, P10, P50, P90 float64
}

// Summarize computes the mean and empirical 10th, 50th and 90th
// percentiles of values. An empty sample summarizes to zeros.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean: stat.Mean(sorted, nil),
		P10:  stat.Quantile(0.10, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
}

// WindowStats holds aggregated statistics for one reporting window.
type WindowStats struct {
	WindowStartDay float64 `csv:"-"`
	WindowEndDay   float64 `csv:"day"`

	// Colonies at window end
	Colonies  int `csv:"colonies"`
	Founded   int `csv:"founded"`
	Abandoned int `csv:"abandoned"`

	// Activity during window
	Cycles      int     `csv:"cycles"`
	TradeRounds int     `csv:"trade_rounds"`
	Trades      int     `csv:"trades"`
	Volume      float64 `csv:"volume"`
	FoodVolume  float64 `csv:"food_volume"`
	OreVolume   float64 `csv:"ore_volume"`
	MetalVolume float64 `csv:"metal_volume"`
	WaterVolume float64 `csv:"water_volume"`
	Undelivered float64 `csv:"undelivered"`

	// Freight
	FreightDemand  float64 `csv:"freight_demand"` // mass of traded goods needing carriage
	FreightFills   int     `csv:"freight_fills"`
	FreightCarried float64 `csv:"freight_carried"`
	FreightExpired int     `csv:"freight_expired"`

	// Per-colony effective fulfillment, sampled at window end
	FulfillMean float64 `csv:"fulfill_mean"`
	FulfillP10  float64 `csv:"fulfill_p10"`
	FulfillP50  float64 `csv:"fulfill_p50"`
	FulfillP90  float64 `csv:"fulfill_p90"`

	// Stockpiles summed over colonies
	FoodStock  float64 `csv:"food_stock"`
	OreStock   float64 `csv:"ore_stock"`
	MetalStock float64 `csv:"metal_stock"`
	WaterStock float64 `csv:"water_stock"`

	// Book depth at window end
	OpenBids    int `csv:"open_bids"`
	OpenAsks    int `csv:"open_asks"`
	FreightBids int `csv:"freight_bids"`
	FreightAsks int `csv:"freight_asks"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s WindowStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddFloat64("day", s.WindowEndDay)
	enc.AddInt("colonies", s.Colonies)
	enc.AddInt("founded", s.Founded)
	enc.AddInt("abandoned", s.Abandoned)
	enc.AddInt("cycles", s.Cycles)
	enc.AddInt("trade_rounds", s.TradeRounds)
	enc.AddInt("trades", s.Trades)
	enc.AddFloat64("volume", s.Volume)
	enc.AddFloat64("undelivered", s.Undelivered)
	enc.AddFloat64("freight_demand", s.FreightDemand)
	enc.AddInt("freight_fills", s.FreightFills)
	enc.AddFloat64("freight_carried", s.FreightCarried)
	enc.AddInt("freight_expired", s.FreightExpired)
	enc.AddFloat64("fulfill_mean", s.FulfillMean)
	enc.AddFloat64("fulfill_p10", s.FulfillP10)
	enc.AddFloat64("fulfill_p50", s.FulfillP50)
	enc.AddFloat64("fulfill_p90", s.FulfillP90)
	enc.AddInt("open_bids", s.OpenBids)
	enc.AddInt("open_asks", s.OpenAsks)
	return nil
}

// Summary renders a one-line, human-readable digest of the window with
// numbers formatted for tag.
func (s WindowStats) Summary(tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("day %.0f: %d colonies, %d trades moving %.1f kg, %.1f kg carried, fulfillment %.0f%% (p10 %.0f%%)",
		s.WindowEndDay, s.Colonies, s.Trades, s.Volume, s.FreightCarried, s.FulfillMean*100, s.FulfillP10*100)
}
