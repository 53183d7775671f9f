package game

import (
	"go.uber.org/zap"

	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/systems"
	"github.com/pthm-cable/colonies/telemetry"
)

// runReport flushes the telemetry window if it has run its length.
func (g *Game) runReport(now scheduler.Time) {
	if !g.collector.ShouldFlush(now) {
		return
	}

	stats := g.collector.Flush(now, telemetry.Observe(g.colonies, g.commodities, g.freight))
	perfStats := g.perf.Stats(systems.ReportInterval)
	g.perf.Reset()
	g.lastStats = stats

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	g.log.Info(stats.Summary(g.lang), zap.Object("stats", stats))
	if g.cfg.Telemetry.Perf {
		g.log.Debug("perf", zap.Object("perf", perfStats))
	}

	if err := g.output.WriteWindow(stats); err != nil {
		g.log.Error("failed to write economy window", zap.Error(err))
	}
	if err := g.output.WriteTrades(g.collector.TakeTrades()); err != nil {
		g.log.Error("failed to write trades", zap.Error(err))
	}
	if g.cfg.Telemetry.Perf {
		if err := g.output.WritePerf(perfStats, stats.WindowEndDay); err != nil {
			g.log.Error("failed to write perf", zap.Error(err))
		}
	}
}
