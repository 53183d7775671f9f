// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/colonies/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Run        RunConfig         `yaml:"run" toml:"run"`
	Colonies   []ColonyConfig    `yaml:"colonies" toml:"colonies"`
	Generation GenerationConfig  `yaml:"generation" toml:"generation"`
	Market     MarketConfig      `yaml:"market" toml:"market"`
	Freighters []FreighterConfig `yaml:"freighters" toml:"freighters"`
	Telemetry  TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
	Logging    LoggingConfig     `yaml:"logging" toml:"logging"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// RunConfig controls a headless run.
type RunConfig struct {
	Seed int64   `yaml:"seed" toml:"seed"`
	Days float64 `yaml:"days" toml:"days"` // simulated days to run
}

// ColonyConfig places one colony. Stock and production are keyed by
// commodity and facility name.
type ColonyConfig struct {
	Name       string             `yaml:"name" toml:"name"`
	X          float64            `yaml:"x" toml:"x"`
	Y          float64            `yaml:"y" toml:"y"`
	Stock      map[string]float64 `yaml:"stock" toml:"stock"`           // kg
	Production map[string]float64 `yaml:"production" toml:"production"` // kg/s
}

// GenerationConfig adds randomly placed colonies on top of the configured ones.
type GenerationConfig struct {
	Count        int     `yaml:"count" toml:"count"`
	Radius       float64 `yaml:"radius" toml:"radius"`               // colonies are placed within this distance of the origin
	MaxRate      float64 `yaml:"max_rate" toml:"max_rate"`           // kg/s, upper bound per facility
	Facilities   int     `yaml:"facilities" toml:"facilities"`       // facilities per generated colony
	InitialStock float64 `yaml:"initial_stock" toml:"initial_stock"` // kg of each commodity, upper bound
}

// MarketConfig holds colony trading policy and freight pricing.
type MarketConfig struct {
	ReferencePrices     map[string]float64 `yaml:"reference_prices" toml:"reference_prices"`
	BidPremium          float64            `yaml:"bid_premium" toml:"bid_premium"`
	AskDiscount         float64            `yaml:"ask_discount" toml:"ask_discount"`
	ReserveDays         float64            `yaml:"reserve_days" toml:"reserve_days"`
	MinLot              float64            `yaml:"min_lot" toml:"min_lot"`
	RationingSmoothing  float64            `yaml:"rationing_smoothing" toml:"rationing_smoothing"`
	PlanningHorizonDays float64            `yaml:"planning_horizon_days" toml:"planning_horizon_days"`
	Freight             FreightConfig      `yaml:"freight" toml:"freight"`
}

// FreightConfig selects how shippers price freight bids.
type FreightConfig struct {
	Pricer      string  `yaml:"pricer" toml:"pricer"` // "linear" or "book"
	Base        float64 `yaml:"base" toml:"base"`
	PerDistance float64 `yaml:"per_distance" toml:"per_distance"`
}

// FreighterConfig is a standing freight offer.
type FreighterConfig struct {
	Name     string  `yaml:"name" toml:"name"`
	X        float64 `yaml:"x" toml:"x"`
	Y        float64 `yaml:"y" toml:"y"`
	Capacity float64 `yaml:"capacity" toml:"capacity"` // kg per offer
	Price    float64 `yaml:"price" toml:"price"`       // per kg
	Range    float64 `yaml:"range" toml:"range"`
	Speed    float64 `yaml:"speed" toml:"speed"` // distance units per second
}

// TelemetryConfig holds output settings.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir"`
	Language  string `yaml:"language" toml:"language"` // BCP 47 tag for report summaries
	Perf      bool   `yaml:"perf" toml:"perf"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "json" or "console"
}

// ColonySpec is a validated colony definition.
type ColonySpec struct {
	Name       string
	Location   components.Location
	Stock      [components.NumCommodities]components.Mass
	Production [components.NumFacilities]components.MassRate
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	ReferencePrice  [components.NumCommodities]float64
	PlanningHorizon time.Duration
	RunLength       time.Duration
	Colonies        []ColonySpec
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a file, merging with embedded defaults.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Decode into the same struct; only fields present in the file change.
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = decodeTOML(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeTOML overlays a TOML document. Arrays of tables replace the
// configured lists instead of merging into their elements.
func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), &struct{}{})
	if err != nil {
		return err
	}
	if md.IsDefined("colonies") {
		cfg.Colonies = nil
	}
	if md.IsDefined("freighters") {
		cfg.Freighters = nil
	}
	return toml.Unmarshal(data, cfg)
}

// Recompute re-validates the config and refreshes derived values after
// fields were changed in code.
func (c *Config) Recompute() error {
	return c.computeDerived()
}

// computeDerived validates the config and calculates derived values.
func (c *Config) computeDerived() error {
	var d DerivedConfig

	for name, price := range c.Market.ReferencePrices {
		com, err := components.ParseCommodity(name)
		if err != nil {
			return fmt.Errorf("%w: reference_prices: %v", ErrInvalid, err)
		}
		d.ReferencePrice[com] = price
	}
	for _, com := range components.Commodities() {
		if p := d.ReferencePrice[com]; !(p > 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: reference price for %v must be positive", ErrInvalid, com)
		}
	}

	m := c.Market
	switch {
	case m.BidPremium < 0, m.AskDiscount < 0, m.AskDiscount >= 1:
		return fmt.Errorf("%w: bid_premium must be >= 0 and ask_discount in [0, 1)", ErrInvalid)
	case m.ReserveDays < 0, m.MinLot < 0:
		return fmt.Errorf("%w: reserve_days and min_lot must be >= 0", ErrInvalid)
	case !(m.RationingSmoothing > 0 && m.RationingSmoothing <= 1):
		return fmt.Errorf("%w: rationing_smoothing must be in (0, 1]", ErrInvalid)
	case !(m.PlanningHorizonDays > 0):
		return fmt.Errorf("%w: planning_horizon_days must be positive", ErrInvalid)
	}
	switch m.Freight.Pricer {
	case "linear", "book":
	default:
		return fmt.Errorf("%w: freight pricer %q", ErrInvalid, m.Freight.Pricer)
	}
	d.PlanningHorizon = days(m.PlanningHorizonDays)

	if c.Run.Days < 0 {
		return fmt.Errorf("%w: run days must be >= 0", ErrInvalid)
	}
	d.RunLength = days(c.Run.Days)

	for _, col := range c.Colonies {
		spec, err := col.spec()
		if err != nil {
			return fmt.Errorf("%w: colony %q: %v", ErrInvalid, col.Name, err)
		}
		d.Colonies = append(d.Colonies, spec)
	}
	gen := c.Generation
	if gen.Count < 0 || gen.Facilities < 0 {
		return fmt.Errorf("%w: generation count and facilities must be >= 0", ErrInvalid)
	}
	if !nonNegative(gen.Radius) || !nonNegative(gen.MaxRate) || !nonNegative(gen.InitialStock) {
		return fmt.Errorf("%w: generation radius, max_rate and initial_stock must be finite and >= 0", ErrInvalid)
	}

	for _, f := range c.Freighters {
		if !(f.Capacity > 0) || f.Price < 0 || f.Range < 0 || f.Speed < 0 {
			return fmt.Errorf("%w: freighter %q needs positive capacity and non-negative price, range and speed", ErrInvalid, f.Name)
		}
	}

	c.Derived = d
	return nil
}

func (c ColonyConfig) spec() (ColonySpec, error) {
	s := ColonySpec{Name: c.Name, Location: components.Location{X: c.X, Y: c.Y}}
	for _, name := range sortedKeys(c.Stock) {
		com, err := components.ParseCommodity(name)
		if err != nil {
			return s, err
		}
		if m := c.Stock[name]; m < 0 || math.IsNaN(m) {
			return s, fmt.Errorf("negative stock of %s", name)
		}
		s.Stock[com] = c.Stock[name]
	}
	for _, name := range sortedKeys(c.Production) {
		f, err := components.ParseFacility(name)
		if err != nil {
			return s, err
		}
		if r := c.Production[name]; r < 0 || math.IsNaN(r) {
			return s, fmt.Errorf("negative %s rate", name)
		}
		s.Production[f] = c.Production[name]
	}
	return s, nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func days(d float64) time.Duration {
	return time.Duration(d * float64(24*time.Hour))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
