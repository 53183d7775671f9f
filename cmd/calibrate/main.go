// Package main searches market policy parameters with CMA-ES for the
// settings that leave the least input demand unmet.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/logging"
)

// evalRecord is one row of calibrate_log.csv.
type evalRecord struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"unmet_kg"`
	Trades             float64 `csv:"trades"`
	BidPremium         float64 `csv:"bid_premium"`
	ReserveDays        float64 `csv:"reserve_days"`
	FreightPerDistance float64 `csv:"freight_per_distance"`
}

func newEvalRecord(eval int, fitness, trades float64, raw []float64) evalRecord {
	return evalRecord{
		Eval:               eval,
		Fitness:            fitness,
		Trades:             trades,
		BidPremium:         raw[0],
		ReserveDays:        raw[1],
		FreightPerDistance: raw[2],
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "calibrate:", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	configPath := flag.String("config", "", "Base config file (empty = use defaults)")
	days := flag.Float64("days", 180, "Simulated days per run (0 = use config)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 100, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		return fmt.Errorf("--output is required")
	}
	if *seeds < 1 {
		return fmt.Errorf("--seeds must be at least 1")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(baseCfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params := NewParamVector()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, *configPath, *days, evalSeeds)

	dim := params.Dim()
	initX := params.Normalize(params.ExtractFromConfig(baseCfg))

	popSize := *population
	if popSize == 0 {
		// 4 + floor(3 ln n)
		popSize = 4 + int(3*math.Log(float64(dim)))
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			raw := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(raw)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = raw
			}

			rec := []evalRecord{newEvalRecord(evalCount, fitness, evaluator.LastTrades(), raw)}
			var werr error
			if evalCount == 1 {
				werr = gocsv.Marshal(rec, logFile)
			} else {
				werr = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if werr != nil {
				logger.Warn("writing eval log", zap.Error(werr))
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			fields := []zap.Field{
				zap.Int("eval", evalCount),
				zap.Int("max_evals", *maxEvals),
				zap.Float64("unmet_kg", fitness),
				zap.Float64("best_kg", bestFitness),
				zap.Float64s("params", raw),
				zap.Duration("elapsed", elapsed.Round(time.Second)),
				zap.Duration("eta", remaining.Round(time.Second)),
			}
			if ferr := evaluator.LastFailure(); ferr != nil {
				fields = append(fields, zap.Error(ferr))
			}
			logger.Info("evaluation", fields...)
			return fitness
		},
	}

	logger.Info("starting CMA-ES calibration",
		zap.Int("params", dim),
		zap.Int("population", popSize),
		zap.Int("max_evals", *maxEvals),
		zap.Int("seeds", *seeds),
		zap.Float64("days", *days),
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		logger.Info("optimization ended", zap.Error(err))
	}
	// Best params may come from any evaluation, not just the final one.
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluations completed")
	}

	for i, spec := range params.Specs {
		logger.Info("best parameter", zap.String("name", spec.Name), zap.String("path", spec.Path), zap.Float64("value", bestParams[i]))
	}
	logger.Info("calibration complete",
		zap.Int("evals", evalCount),
		zap.Float64("best_unmet_kg", bestFitness),
		zap.Duration("elapsed", time.Since(startTime).Round(time.Second)),
	)

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		return err
	}
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	logger.Info("best config saved", zap.String("path", configOutPath))
	return nil
}
