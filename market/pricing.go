package market

// FreightPricer quotes the per-kilogram price a shipper offers for carriage
// over a distance. It is a policy; the market does not derive it.
type FreightPricer interface {
	Quote(distance float64) float64
}

// LinearFreightPricer charges a base price plus a per-distance rate.
type LinearFreightPricer struct {
	Base        float64
	PerDistance float64
}

// Quote implements FreightPricer.
func (p LinearFreightPricer) Quote(distance float64) float64 {
	return p.Base + p.PerDistance*distance
}

// BookFreightPricer quotes the freight market's best ask when there is one,
// and falls back to another policy otherwise. The quote never drops below
// the fallback.
type BookFreightPricer struct {
	Market   *FreightMarket
	Fallback FreightPricer
}

// Quote implements FreightPricer.
func (p BookFreightPricer) Quote(distance float64) float64 {
	base := p.Fallback.Quote(distance)
	if ask, ok := p.Market.BestAsk(); ok && ask > base {
		return ask
	}
	return base
}
