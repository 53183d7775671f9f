package game

import (
	"time"

	"github.com/pthm-cable/colonies/scheduler"
)

// recordPerf is the scheduler's per-run observer.
func (g *Game) recordPerf(tok scheduler.Token, elapsed time.Duration) {
	g.perf.Record(g.sched.Name(tok.System), elapsed)
}
