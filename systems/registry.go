package systems

import (
	"time"

	"github.com/pthm-cable/colonies/scheduler"
)

// System identifiers. Declaration order is the tie-break order when several
// systems are due at the same timestamp.
const (
	SysProduction scheduler.SystemID = iota
	SysRationing
	SysTrade
	SysReport
)

// Update cadences. These are fixed at compile time.
const (
	ProductionInterval = scheduler.Day
	TradeInterval      = 3 * scheduler.Day
	RationingInterval  = 7 * scheduler.Day
	ReportInterval     = 30 * scheduler.Day
)

// SystemInfo describes a simulation system for logs and telemetry.
type SystemInfo struct {
	ID          scheduler.SystemID
	Key         string        // Stable identifier used in perf output
	Name        string        // Display name
	Description string        // What this system does
	Category    string        // Grouping (e.g., "economy", "market")
	Interval    time.Duration // Fixed update cadence
}

// SystemRegistry holds metadata about all systems.
type SystemRegistry struct {
	systems []SystemInfo
	byID    map[scheduler.SystemID]SystemInfo
}

// NewSystemRegistry creates a registry with all known systems.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{
		byID: make(map[scheduler.SystemID]SystemInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known systems to the registry.
// Update this when adding new systems.
func (r *SystemRegistry) registerDefaults() {
	r.Register(SystemInfo{ID: SysProduction, Key: "production", Name: "Production", Description: "Converts facility capacity and stockpiles into output", Category: "economy", Interval: ProductionInterval})
	r.Register(SystemInfo{ID: SysRationing, Key: "rationing", Name: "Rationing", Description: "Smooths fulfillment and abandons dead colonies", Category: "economy", Interval: RationingInterval})
	r.Register(SystemInfo{ID: SysTrade, Key: "trade", Name: "Trade", Description: "Posts colony orders and matches commodity and freight markets", Category: "market", Interval: TradeInterval})
	r.Register(SystemInfo{ID: SysReport, Key: "report", Name: "Report", Description: "Flushes telemetry windows", Category: "internal", Interval: ReportInterval})
}

// Register adds a system to the registry.
func (r *SystemRegistry) Register(info SystemInfo) {
	r.systems = append(r.systems, info)
	r.byID[info.ID] = info
}

// Get returns system info by ID.
func (r *SystemRegistry) Get(id scheduler.SystemID) (SystemInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a system ID.
func (r *SystemRegistry) GetName(id scheduler.SystemID) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return "unknown"
}

// All returns all registered systems.
func (r *SystemRegistry) All() []SystemInfo {
	return r.systems
}

// ByCategory returns systems filtered by category.
func (r *SystemRegistry) ByCategory(category string) []SystemInfo {
	var result []SystemInfo
	for _, info := range r.systems {
		if info.Category == category {
			result = append(result, info)
		}
	}
	return result
}
