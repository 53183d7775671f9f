package game

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/colonies/components"
	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/market"
	"github.com/pthm-cable/colonies/scheduler"
	"github.com/pthm-cable/colonies/store"
	"github.com/pthm-cable/colonies/systems"
	"github.com/pthm-cable/colonies/telemetry"
)

func newGame(t *testing.T, mutate func(*config.Config)) *Game {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Recompute(); err != nil {
			t.Fatalf("config: %v", err)
		}
	}
	g, err := New(GameConfig{Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestNew_FoundsConfiguredColonies(t *testing.T) {
	g := newGame(t, nil)
	if got, want := g.Colonies().Len(), len(g.Config().Colonies); got != want {
		t.Errorf("colonies = %d, want %d", got, want)
	}
	if len(g.Pending()) != 4 {
		t.Errorf("pending tokens = %d, want one per system", len(g.Pending()))
	}
}

func TestGenerated(t *testing.T) {
	g := newGame(t, func(c *config.Config) {
		c.Colonies = nil
		c.Generation.Count = 25
	})
	if got := g.Colonies().Len(); got != 25 {
		t.Fatalf("colonies = %d, want 25", got)
	}
	g.Colonies().Each(func(col store.Colony) {
		if d := col.Location.DistanceTo(components.Location{}); d > g.Config().Generation.Radius {
			t.Errorf("%s placed %v from origin", col.Name.Value, d)
		}
		busy := 0
		for _, r := range col.Production.Rate {
			if r < 0 || r > g.Config().Generation.MaxRate {
				t.Errorf("%s rate %v out of range", col.Name.Value, r)
			}
			if r > 0 {
				busy++
			}
		}
		if busy > g.Config().Generation.Facilities {
			t.Errorf("%s runs %d facilities", col.Name.Value, busy)
		}
	})
}

func TestNew_RejectsUnvalidatedGeneration(t *testing.T) {
	cfg := config.Default()
	cfg.Colonies = nil
	cfg.Generation.Count = 1
	cfg.Generation.MaxRate = -1
	cfg.Generation.Facilities = components.NumFacilities
	// Derived values are stale on purpose: New must still not panic.

	g, err := New(GameConfig{Config: cfg, OutputDir: t.TempDir()})
	if !errors.Is(err, store.ErrNegativeRate) {
		t.Errorf("err = %v, want ErrNegativeRate", err)
	}
	if g != nil {
		t.Error("New returned a game alongside an error")
	}
}

func TestFound_RejectsNegativeSpec(t *testing.T) {
	g := newGame(t, nil)
	before := g.Colonies().Len()

	var bad config.ColonySpec
	bad.Name = "Broken"
	bad.Stock[components.Ore] = -5
	if _, err := g.Found(bad); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("negative stock err = %v, want ErrInvalid", err)
	}

	bad = config.ColonySpec{Name: "Broken"}
	bad.Production[components.Mine] = -0.1
	if _, err := g.Found(bad); !errors.Is(err, store.ErrNegativeRate) {
		t.Errorf("negative rate err = %v, want ErrNegativeRate", err)
	}

	if got := g.Colonies().Len(); got != before {
		t.Errorf("colonies = %d, want %d", got, before)
	}
}

func TestRun_TradesAndReports(t *testing.T) {
	var windows []telemetry.WindowStats
	cfg := config.Default()
	cfg.Run.Days = 90
	if err := cfg.Recompute(); err != nil {
		t.Fatal(err)
	}
	g, err := New(GameConfig{Config: cfg, StatsCallback: func(s telemetry.WindowStats) {
		windows = append(windows, s)
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	if err := g.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Now() != scheduler.At(90*scheduler.Day) {
		t.Errorf("now = %v, want day 90", g.Now())
	}
	cycles, trades, _ := g.Totals()
	if cycles != 90 {
		t.Errorf("cycles = %d, want 90", cycles)
	}
	if trades == 0 {
		t.Error("no trades in 90 days")
	}
	if len(windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(windows))
	}
	if windows[0].Cycles != 30 || windows[0].WindowEndDay != 30 {
		t.Errorf("first window = %+v", windows[0])
	}
	if g.LastStats().WindowEndDay != 90 {
		t.Errorf("last stats day = %v", g.LastStats().WindowEndDay)
	}
}

func TestStockpilesNeverNegative(t *testing.T) {
	g := newGame(t, func(c *config.Config) {
		c.Generation.Count = 40
	})
	for day := 1; day <= 120; day++ {
		if err := g.AdvanceBy(scheduler.Day); err != nil {
			t.Fatal(err)
		}
		g.Colonies().Each(func(col store.Colony) {
			for i, m := range col.Stockpile.Mass {
				if m < 0 {
					t.Fatalf("day %d: %s has %v of commodity %d", day, col.Name.Value, m, i)
				}
			}
			for i, f := range col.Fulfillment.Fraction {
				if f < 0 || f > 1 {
					t.Fatalf("day %d: %s fulfillment[%d] = %v", day, col.Name.Value, i, f)
				}
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	mutate := func(c *config.Config) { c.Generation.Count = 15 }
	a := newGame(t, mutate)
	b := newGame(t, mutate)

	if err := a.Advance(scheduler.At(100 * scheduler.Day)); err != nil {
		t.Fatal(err)
	}
	// Same target reached in uneven steps.
	for _, d := range []time.Duration{time.Hour, 6 * scheduler.Day, 0, 50 * scheduler.Day, 43*scheduler.Day + 23*time.Hour} {
		if err := b.AdvanceBy(d); err != nil {
			t.Fatal(err)
		}
	}
	if a.Now() != b.Now() {
		t.Fatalf("clocks differ: %v vs %v", a.Now(), b.Now())
	}
	if a.DigestHex() != b.DigestHex() {
		t.Error("same config and seed produced different state")
	}

	c := newGame(t, func(c *config.Config) {
		mutate(c)
		c.Run.Seed = 2
	})
	if err := c.Advance(scheduler.At(100 * scheduler.Day)); err != nil {
		t.Fatal(err)
	}
	if c.DigestHex() == a.DigestHex() {
		t.Error("different seeds produced identical state")
	}
}

func TestDigestCoversOrderTerms(t *testing.T) {
	tests := []struct {
		name string
		post func(g *Game, variant float64) error
	}{
		{"freight route", func(g *Game, v float64) error {
			_, err := g.Freight().PostBid(1, 10, ecs.Entity{}, market.FreightTerms{Distance: v, Duration: scheduler.Day})
			return err
		}},
		{"freight drive", func(g *Game, v float64) error {
			_, err := g.Freight().PostAsk(1, 10, ecs.Entity{}, market.Drive{Range: 500, Speed: v}, components.Location{})
			return err
		}},
		{"commodity location", func(g *Game, v float64) error {
			_, err := g.Commodities().PostBid(components.Water, 0.01, 10, ecs.Entity{}, components.Location{X: v})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := newGame(t, nil), newGame(t, nil)
			if err := tt.post(a, 100); err != nil {
				t.Fatal(err)
			}
			if err := tt.post(b, 200); err != nil {
				t.Fatal(err)
			}
			if a.DigestHex() == b.DigestHex() {
				t.Error("games differing only in order terms have equal digests")
			}
		})
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a := newGame(t, nil)
	b := newGame(t, nil)
	before := b.DigestHex()

	if err := a.Advance(scheduler.At(30 * scheduler.Day)); err != nil {
		t.Fatal(err)
	}
	if b.DigestHex() != before {
		t.Error("advancing one game changed another")
	}
}

func TestAdvance_Rewind(t *testing.T) {
	g := newGame(t, nil)
	if err := g.Advance(scheduler.At(10 * scheduler.Day)); err != nil {
		t.Fatal(err)
	}
	err := g.Advance(scheduler.At(5 * scheduler.Day))
	if !errors.Is(err, scheduler.ErrRewind) {
		t.Errorf("err = %v, want ErrRewind", err)
	}
	if g.Now() != scheduler.At(10*scheduler.Day) {
		t.Errorf("clock moved to %v", g.Now())
	}
}

func TestAbandonment(t *testing.T) {
	g := newGame(t, func(c *config.Config) {
		c.Colonies = append(c.Colonies, config.ColonyConfig{Name: "Husk", X: 5, Y: 5})
	})
	n := g.Colonies().Len()

	if err := g.Advance(scheduler.At(systems.RationingInterval)); err != nil {
		t.Fatal(err)
	}
	if _, _, abandoned := g.Totals(); abandoned != 1 {
		t.Errorf("abandoned = %d, want 1", abandoned)
	}
	if got := g.Colonies().Len(); got != n-1 {
		t.Errorf("colonies = %d, want %d", got, n-1)
	}
}

func TestOutputFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	cfg := config.Default()
	cfg.Run.Days = 60
	if err := cfg.Recompute(); err != nil {
		t.Fatal(err)
	}
	g, err := New(GameConfig{Config: cfg, OutputDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Run(); err != nil {
		t.Fatal(err)
	}
	if err := g.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"config.yaml", "economy.csv", "trades.csv", "perf.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "economy.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Errorf("economy.csv has %d lines, want header + 2 windows", len(lines))
	}
}

func TestAdvance_SystemPanicFailsUntilReset(t *testing.T) {
	g := newGame(t, nil)
	id := g.Colonies().IDs()[0]
	col, err := g.Colonies().Lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	good := col.Production.Rate
	col.Production.Rate[components.Mine] = -1 // corrupt state behind the store's back

	err = g.Advance(scheduler.At(2 * scheduler.Day))
	if !errors.Is(err, scheduler.ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if g.Now() != scheduler.At(scheduler.Day) {
		t.Errorf("clock = %v, want the failed update's due time", g.Now())
	}
	if err := g.Advance(scheduler.At(3 * scheduler.Day)); !errors.Is(err, scheduler.ErrFailed) {
		t.Errorf("advance after failure err = %v, want ErrFailed", err)
	}

	col.Production.Rate = good
	if err := g.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := g.Advance(scheduler.At(3 * scheduler.Day)); err != nil {
		t.Errorf("advance after reset: %v", err)
	}
}
