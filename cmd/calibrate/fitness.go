package main

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/multierr"

	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/game"
)

// FitnessEvaluator runs headless simulations and scores market policies.
type FitnessEvaluator struct {
	params     *ParamVector
	configPath string
	days       float64
	seeds      []int64

	mu          sync.Mutex
	lastTrades  float64 // mean trades per seed from the most recent Evaluate
	lastFailure error
}

// NewFitnessEvaluator creates an evaluator that reloads configPath for
// every run so runs never share config state.
func NewFitnessEvaluator(params *ParamVector, configPath string, days float64, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		configPath: configPath,
		days:       days,
		seeds:      seeds,
	}
}

// LastTrades returns the mean trade count from the most recent evaluation.
func (fe *FitnessEvaluator) LastTrades() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastTrades
}

// LastFailure returns the errors from the most recent evaluation, if any.
func (fe *FitnessEvaluator) LastFailure() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastFailure
}

// seedResult holds the outcome of one seed.
type seedResult struct {
	unmet  float64
	trades int
	err    error
}

// Evaluate returns the mean unmet input demand in kg across seeds (lower =
// better). A run that fails scores +Inf.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	// Game instances share nothing, so seeds run in parallel.
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	var total float64
	var trades int
	var errs error
	for _, r := range results {
		if r.err != nil {
			errs = multierr.Append(errs, r.err)
			continue
		}
		total += r.unmet
		trades += r.trades
	}

	fe.mu.Lock()
	fe.lastFailure = errs
	fe.lastTrades = float64(trades) / float64(len(fe.seeds))
	fe.mu.Unlock()

	if errs != nil {
		return math.Inf(1)
	}
	return total / float64(len(fe.seeds))
}

// runSimulation executes one headless run with the given parameters.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) seedResult {
	cfg, err := fe.runConfig(x, seed)
	if err != nil {
		return seedResult{err: err}
	}
	g, err := game.New(game.GameConfig{Config: cfg})
	if err != nil {
		return seedResult{err: fmt.Errorf("seed %d: %w", seed, err)}
	}
	defer g.Close()

	if err := g.Run(); err != nil {
		return seedResult{err: fmt.Errorf("seed %d: %w", seed, err)}
	}
	_, trades, _ := g.Totals()
	return seedResult{unmet: g.UnmetDemand(), trades: trades}
}

// runConfig loads a fresh config with x applied and file output disabled.
func (fe *FitnessEvaluator) runConfig(x []float64, seed int64) (*config.Config, error) {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Run.Seed = seed
	if fe.days > 0 {
		cfg.Run.Days = fe.days
	}
	cfg.Telemetry.OutputDir = ""
	cfg.Telemetry.Perf = false
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return nil, fmt.Errorf("seed %d: %w", seed, err)
	}
	return cfg, nil
}
