package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPerfCollector_Averages(t *testing.T) {
	pc := NewPerfCollector()
	pc.Record(PhaseProduction, 10*time.Microsecond)
	pc.Record(PhaseProduction, 30*time.Microsecond)
	pc.Record(PhaseTrade, 60*time.Microsecond)

	stats := pc.Stats(10 * 24 * time.Hour)

	if stats.Busy != 100*time.Microsecond {
		t.Errorf("busy = %v, want 100µs", stats.Busy)
	}
	if got := stats.PhaseAvg[PhaseProduction]; got != 20*time.Microsecond {
		t.Errorf("production avg = %v, want 20µs", got)
	}
	if got := stats.PhaseMax[PhaseProduction]; got != 30*time.Microsecond {
		t.Errorf("production max = %v, want 30µs", got)
	}
	if got := stats.Runs[PhaseProduction]; got != 2 {
		t.Errorf("production runs = %d, want 2", got)
	}
	if got := stats.PhasePct[PhaseTrade]; math.Abs(got-60) > 1e-9 {
		t.Errorf("trade pct = %v, want 60", got)
	}
	// 10 days in 100µs of work.
	if got := stats.SimDaysPerSec; math.Abs(got-1e5) > 1e-3 {
		t.Errorf("sim days/sec = %v, want 1e5", got)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector()

	stats := pc.Stats(time.Hour)

	// Empty collector should return zero values without panicking
	if stats.Busy != 0 || stats.SimDaysPerSec != 0 {
		t.Errorf("empty stats = %+v, want zero", stats)
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil maps")
	}
}

func TestPerfCollector_Reset(t *testing.T) {
	pc := NewPerfCollector()
	pc.Record(PhaseReport, time.Millisecond)
	pc.Reset()

	if stats := pc.Stats(time.Hour); len(stats.Runs) != 0 {
		t.Errorf("runs after reset = %v", stats.Runs)
	}
}

func TestPerfStats_ToCSV(t *testing.T) {
	pc := NewPerfCollector()
	pc.Record(PhaseRationing, 5*time.Microsecond)
	pc.Record(PhaseTrade, 15*time.Microsecond)

	row := pc.Stats(24 * time.Hour).ToCSV(30)
	if row.Day != 30 || row.BusyUS != 20 {
		t.Errorf("row = %+v", row)
	}
	if row.RationingUS != 5 || row.TradeUS != 15 || row.ProductionUS != 0 {
		t.Errorf("phase averages = %d/%d/%d", row.RationingUS, row.TradeUS, row.ProductionUS)
	}
	if math.Abs(row.TradePct-75) > 1e-9 {
		t.Errorf("trade pct = %v, want 75", row.TradePct)
	}
}
