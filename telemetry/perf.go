package telemetry

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Phase names, one per scheduled system. They match the registry keys.
const (
	PhaseProduction = "production"
	PhaseRationing  = "rationing"
	PhaseTrade      = "trade"
	PhaseReport     = "report"
)

var phases = []string{PhaseProduction, PhaseRationing, PhaseTrade, PhaseReport}

// PerfCollector accumulates wall time spent in each system over a window.
type PerfCollector struct {
	runs  map[string]int
	total map[string]time.Duration
	max   map[string]time.Duration
}

// NewPerfCollector creates an empty performance collector.
func NewPerfCollector() *PerfCollector {
	p := &PerfCollector{}
	p.Reset()
	return p
}

// Record adds one run of phase that took d.
func (p *PerfCollector) Record(phase string, d time.Duration) {
	p.runs[phase]++
	p.total[phase] += d
	if d > p.max[phase] {
		p.max[phase] = d
	}
}

// Reset clears all samples.
func (p *PerfCollector) Reset() {
	p.runs = make(map[string]int)
	p.total = make(map[string]time.Duration)
	p.max = make(map[string]time.Duration)
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Busy time.Duration // total wall time spent in systems

	Runs     map[string]int
	PhaseAvg map[string]time.Duration
	PhaseMax map[string]time.Duration

	// Share of Busy per phase, in percent
	PhasePct map[string]float64

	// Throughput
	SimDaysPerSec float64
}

// Stats computes aggregated statistics for a window that covered
// simulated time elapsed.
func (p *PerfCollector) Stats(elapsed time.Duration) PerfStats {
	s := PerfStats{
		Runs:     make(map[string]int),
		PhaseAvg: make(map[string]time.Duration),
		PhaseMax: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	for phase, total := range p.total {
		s.Busy += total
		s.Runs[phase] = p.runs[phase]
		s.PhaseAvg[phase] = total / time.Duration(p.runs[phase])
		s.PhaseMax[phase] = p.max[phase]
	}
	if s.Busy > 0 {
		for phase, total := range p.total {
			s.PhasePct[phase] = float64(total) / float64(s.Busy) * 100
		}
		s.SimDaysPerSec = (float64(elapsed) / float64(24*time.Hour)) / s.Busy.Seconds()
	}
	return s
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s PerfStats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("busy_us", s.Busy.Microseconds())
	enc.AddFloat64("sim_days_per_sec", s.SimDaysPerSec)
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			enc.AddFloat64(phase+"_pct", float64(int(pct*10))/10)
		}
	}
	return nil
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Day           float64 `csv:"day"`
	BusyUS        int64   `csv:"busy_us"`
	SimDaysPerSec float64 `csv:"sim_days_per_sec"`
	ProductionUS  int64   `csv:"production_avg_us"`
	RationingUS   int64   `csv:"rationing_avg_us"`
	TradeUS       int64   `csv:"trade_avg_us"`
	ReportUS      int64   `csv:"report_avg_us"`
	ProductionPct float64 `csv:"production_pct"`
	RationingPct  float64 `csv:"rationing_pct"`
	TradePct      float64 `csv:"trade_pct"`
	ReportPct     float64 `csv:"report_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(day float64) PerfStatsCSV {
	return PerfStatsCSV{
		Day:           day,
		BusyUS:        s.Busy.Microseconds(),
		SimDaysPerSec: s.SimDaysPerSec,
		ProductionUS:  s.PhaseAvg[PhaseProduction].Microseconds(),
		RationingUS:   s.PhaseAvg[PhaseRationing].Microseconds(),
		TradeUS:       s.PhaseAvg[PhaseTrade].Microseconds(),
		ReportUS:      s.PhaseAvg[PhaseReport].Microseconds(),
		ProductionPct: s.PhasePct[PhaseProduction],
		RationingPct:  s.PhasePct[PhaseRationing],
		TradePct:      s.PhasePct[PhaseTrade],
		ReportPct:     s.PhasePct[PhaseReport],
	}
}
