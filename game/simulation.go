package game

import (
	"go.uber.org/zap"

	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
)

// runProduction runs one production cycle and tallies unmet demand.
func (g *Game) runProduction(scheduler.Time) {
	g.production.RunCycle()
	g.cycles++
	g.collector.RecordCycle()

	g.colonies.Each(func(col store.Colony) {
		for c, requested := range col.Demand.Requested {
			g.unmet += requested * (1 - col.Fulfillment.Fraction[c])
		}
	})
}

// runRationing smooths fulfillment and removes dead colonies.
func (g *Game) runRationing(scheduler.Time) {
	dead := g.rationing.Update()
	g.abandoned += len(dead)
	g.collector.RecordAbandoned(len(dead))
}

// runTrade posts colony orders and clears both markets.
func (g *Game) runTrade(now scheduler.Time) {
	round := g.trading.Update(now)
	g.trades += len(round.Trades)
	g.collector.RecordRound(now, &round)

	g.log.Debug("trade round",
		zap.Stringer("at", now),
		zap.Int("bids", round.Bids),
		zap.Int("asks", round.Asks),
		zap.Int("trades", len(round.Trades)),
		zap.Float64("volume", round.Volume()),
		zap.Int("freight_fills", len(round.FreightFills)),
		zap.Int("freight_expired", round.Expired),
	)
}
