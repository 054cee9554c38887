package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pthm-cable/petri/systems"
)

// Parameter names recognized by the runtime bus. The bus is the only
// mutation path into a running engine; anything else needs a Reset.
const (
	ParamMaxVelocity    = "max_velocity"
	ParamCenterPressure = "center_pressure"
	ParamDeathChance    = "death_chance"
	ParamReproThreshold = "repro_threshold"
	ParamEnergyCost     = "energy_cost"
	ParamBounceFactor   = "bounce_factor"
)

// paramRange is the accepted interval for one tunable.
type paramRange struct {
	lo, hi float64
}

var paramRanges = map[string]paramRange{
	ParamMaxVelocity:    {0.1, 50},
	ParamCenterPressure: {0, 5},
	ParamDeathChance:    {0, 1},
	ParamReproThreshold: {0, 1},
	ParamEnergyCost:     {0, 5},
	ParamBounceFactor:   {0, 1},
}

// paramBus buffers runtime updates until the next step boundary.
type paramBus struct {
	mu      sync.Mutex
	pending map[string]float64
}

func (b *paramBus) init() {
	b.pending = make(map[string]float64)
}

func (b *paramBus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.pending {
		delete(b.pending, k)
	}
}

// Set stages a runtime parameter update. Unknown names are rejected with
// ErrUnknownParameter; out-of-range values are clamped and logged as a
// warning. Safe to call from any goroutine; the update is recognized by the
// driver at the next step boundary.
func (e *Engine) Set(name string, value float64) error {
	r, ok := paramRanges[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}

	if value < r.lo || value > r.hi {
		clamped := value
		if clamped < r.lo {
			clamped = r.lo
		}
		if clamped > r.hi {
			clamped = r.hi
		}
		e.log.Warn("parameter value out of range, clamped",
			slog.String("name", name),
			slog.Float64("value", value),
			slog.Float64("clamped", clamped),
		)
		value = clamped
	}

	e.bus.mu.Lock()
	e.bus.pending[name] = value
	e.bus.mu.Unlock()
	return nil
}

// applyPending folds staged updates into the run config and rebuilds the
// step parameters. Called by the driver between steps only.
func (e *Engine) applyPending() {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()

	if len(e.bus.pending) == 0 {
		return
	}

	// Map order is irrelevant here: each name targets a distinct field.
	for name, value := range e.bus.pending {
		switch name {
		case ParamMaxVelocity:
			e.cfg.Physics.MaxVelocity = value
		case ParamCenterPressure:
			e.cfg.Physics.CenterPressureStrength = value
		case ParamDeathChance:
			e.cfg.Reproduction.DeathChanceFactor = value
		case ParamReproThreshold:
			e.cfg.Reproduction.ReproductionEnergyThreshold = value
		case ParamEnergyCost:
			e.cfg.Energy.MovementEnergyCost = value
		case ParamBounceFactor:
			e.cfg.Physics.VelocityBounceFactor = value
		}
		delete(e.bus.pending, name)
	}
	e.params = systems.NewParams(&e.cfg)
}
