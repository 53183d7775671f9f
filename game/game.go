// Package game assembles colonies, markets and systems into one
// deterministic simulation driven by the scheduler.
package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
	"github.com/pthm-cable/colonies/systems"
	"github.com/pthm-cable/colonies/telemetry"
)

// Game holds the complete simulation state. Instances share nothing.
type Game struct {
	cfg *config.Config
	log *zap.Logger
	rng *rand.Rand

	world    *ecs.World
	colonies *store.Colonies

	// Systems
	production *systems.ProductionSystem
	rationing  *systems.RationingSystem
	trading    *systems.TradingSystem
	registry   *systems.SystemRegistry

	// Markets
	commodities *market.CommodityMarket
	freight     *market.FreightMarket

	// Time
	clock *scheduler.Clock
	sched *scheduler.Scheduler[*Game]

	// Telemetry
	collector     *telemetry.Collector
	perf          *telemetry.PerfCollector
	output        *telemetry.OutputManager
	lang          language.Tag
	statsCallback func(telemetry.WindowStats)
	lastStats     telemetry.WindowStats

	// Cumulative counters
	cycles    int
	trades    int
	abandoned int
	unmet     float64 // demanded input mass that could not be supplied
}

// New creates a simulation from gc, founds its colonies and schedules its
// systems at day zero.
func New(gc GameConfig) (*Game, error) {
	cfg := gc.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := gc.Logger
	if log == nil {
		log = zap.NewNop()
	}

	lang, err := language.Parse(cfg.Telemetry.Language)
	if err != nil {
		lang = language.English
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:           cfg,
		log:           log,
		rng:           rand.New(rand.NewSource(cfg.Run.Seed)),
		world:         world,
		colonies:      store.NewColonies(world),
		production:    systems.NewProductionSystem(world, systems.ProductionInterval),
		registry:      systems.NewSystemRegistry(),
		freight:       market.NewFreightMarket(world),
		clock:         scheduler.NewClock(0),
		lang:          lang,
		statsCallback: gc.StatsCallback,
		collector:     telemetry.NewCollector(systems.ReportInterval, 0),
		perf:          telemetry.NewPerfCollector(),
	}
	g.commodities = market.NewCommodityMarket(world, g.freight, g.freightPricer(), cfg.Derived.PlanningHorizon)
	g.trading = systems.NewTradingSystem(g.colonies, g.commodities, g.freight, g.tradingPolicy(),
		systems.ProductionInterval, cfg.Derived.PlanningHorizon, g.freighters())
	g.rationing = systems.NewRationingSystem(g.colonies, cfg.Market.RationingSmoothing)
	g.rationing.OnAbandon = g.onAbandon

	outputDir := cfg.Telemetry.OutputDir
	if gc.OutputDir != "" {
		outputDir = gc.OutputDir
	}
	g.output, err = telemetry.NewOutputManager(outputDir)
	if err != nil {
		return nil, err
	}
	if err := g.output.WriteConfig(cfg); err != nil {
		g.output.Close()
		return nil, err
	}

	g.sched = scheduler.New(g.clock, g.systemList()...)
	if cfg.Telemetry.Perf {
		g.sched.OnRun = g.recordPerf
	}

	if err := g.foundConfiguredColonies(); err != nil {
		g.output.Close()
		return nil, err
	}
	if err := g.foundGeneratedColonies(); err != nil {
		g.output.Close()
		return nil, err
	}

	return g, nil
}

// systemList binds every registered system to its update.
func (g *Game) systemList() []scheduler.System[*Game] {
	updates := map[scheduler.SystemID]func(*Game, scheduler.Time){
		systems.SysProduction: (*Game).runProduction,
		systems.SysRationing:  (*Game).runRationing,
		systems.SysTrade:      (*Game).runTrade,
		systems.SysReport:     (*Game).runReport,
	}
	var out []scheduler.System[*Game]
	for _, info := range g.registry.All() {
		out = append(out, scheduler.System[*Game]{
			ID:       info.ID,
			Name:     info.Key,
			Interval: info.Interval,
			Update:   updates[info.ID],
		})
	}
	return out
}

func (g *Game) freightPricer() market.FreightPricer {
	fc := g.cfg.Market.Freight
	linear := market.LinearFreightPricer{Base: fc.Base, PerDistance: fc.PerDistance}
	if fc.Pricer == "book" {
		return market.BookFreightPricer{Market: g.freight, Fallback: linear}
	}
	return linear
}

func (g *Game) tradingPolicy() systems.TradingPolicy {
	m := g.cfg.Market
	return systems.TradingPolicy{
		ReferencePrice: g.cfg.Derived.ReferencePrice,
		BidPremium:     m.BidPremium,
		AskDiscount:    m.AskDiscount,
		ReserveDays:    m.ReserveDays,
		MinLot:         m.MinLot,
	}
}

func (g *Game) freighters() []systems.Freighter {
	var out []systems.Freighter
	for _, f := range g.cfg.Freighters {
		out = append(out, systems.Freighter{
			Name:     f.Name,
			Base:     components.Location{X: f.X, Y: f.Y},
			Capacity: f.Capacity,
			Price:    f.Price,
			Drive:    market.Drive{Range: f.Range, Speed: f.Speed},
		})
	}
	return out
}

// Advance runs every system due up to target. A panic in a system is
// recovered here, logged and returned as an error; the game then refuses
// to advance until Reset.
func (g *Game) Advance(target scheduler.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("system failed", zap.Stringer("at", g.clock.Now()), zap.Any("panic", r))
			err = fmt.Errorf("advance to %v: system panicked: %v: %w", target, r, scheduler.ErrFailed)
		}
	}()
	return g.sched.Advance(g, target)
}

// AdvanceBy advances the simulation by d.
func (g *Game) AdvanceBy(d time.Duration) error {
	return g.Advance(g.clock.Now().Add(d))
}

// Run advances through the configured run length, then flushes output.
func (g *Game) Run() error {
	if err := g.Advance(scheduler.At(g.cfg.Derived.RunLength)); err != nil {
		return err
	}
	g.log.Info("run complete",
		zap.Stringer("at", g.clock.Now()),
		zap.Int("colonies", g.colonies.Len()),
		zap.Int("cycles", g.cycles),
		zap.Int("trades", g.trades),
		zap.Int("abandoned", g.abandoned),
		zap.String("digest", g.DigestHex()),
	)
	return nil
}

// Reset recovers from a failed advance by rescheduling every system from
// the current time.
func (g *Game) Reset() error {
	return g.sched.Reset(g.clock.Now())
}

// Close flushes and closes telemetry output.
func (g *Game) Close() error {
	return g.output.Close()
}

// Now returns the current simulated time.
func (g *Game) Now() scheduler.Time {
	return g.clock.Now()
}

// Config returns the configuration the game was built from.
func (g *Game) Config() *config.Config {
	return g.cfg
}

// Colonies returns the colony store.
func (g *Game) Colonies() *store.Colonies {
	return g.colonies
}

// Commodities returns the commodity market.
func (g *Game) Commodities() *market.CommodityMarket {
	return g.commodities
}

// Freight returns the freight market.
func (g *Game) Freight() *market.FreightMarket {
	return g.freight
}

// Pending returns the scheduler's queued tokens in run order.
func (g *Game) Pending() []scheduler.Token {
	return g.sched.Pending()
}

// LastStats returns the most recently flushed reporting window.
func (g *Game) LastStats() telemetry.WindowStats {
	return g.lastStats
}

// Totals returns cumulative counts since the game started.
func (g *Game) Totals() (cycles, trades, abandoned int) {
	return g.cycles, g.trades, g.abandoned
}

// UnmetDemand returns the total input mass facilities requested but could
// not get, summed over every production cycle.
func (g *Game) UnmetDemand() float64 {
	return g.unmet
}
