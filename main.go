package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/game"
	"github.com/pthm-cable/colonies/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "colonies:", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	configPath := flag.String("config", "", "Path to a .yaml or .toml config (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	days := flag.Float64("days", 0, "Simulated days to run (0 = use config)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		return err
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *days > 0 {
		cfg.Run.Days = *days
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Recompute(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	g, err := game.New(game.GameConfig{
		Config:    cfg,
		Logger:    logger,
		OutputDir: *outputDir,
	})
	if err != nil {
		return err
	}

	logger.Info("starting simulation",
		zap.Int64("seed", cfg.Run.Seed),
		zap.Float64("days", cfg.Run.Days),
		zap.Int("colonies", g.Colonies().Len()),
		zap.Int("freighters", len(cfg.Freighters)),
		zap.String("output_dir", *outputDir),
	)

	runErr := g.Run()
	if err := g.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
