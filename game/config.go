package game

import (
	"go.uber.org/zap"

	"github.com/pthm-cable/colonies/config"
	"github.com/pthm-cable/colonies/telemetry"
)

// GameConfig holds configuration for game initialization.
type GameConfig struct {
	Config    *config.Config // nil uses the embedded defaults
	Logger    *zap.Logger    // nil disables logging
	OutputDir string         // overrides telemetry.output_dir when set

	// StatsCallback, if set, receives every flushed reporting window.
	StatsCallback func(telemetry.WindowStats)
}

// DefaultConfig returns the default game configuration.
func DefaultConfig() GameConfig {
	return GameConfig{}
}
