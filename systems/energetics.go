package systems

import (
	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/genome"
)

// radiusEnergyScale converts stored energy into body radius before the size
// factor is applied.
const radiusEnergyScale = 15.0

// ApplyMetabolism deducts the per-step energy costs: base metabolic drain,
// movement proportional to speed, and upkeep proportional to size. Energy is
// clamped to [0, Max]; a zero result means dead pending cull.
func ApplyMetabolism(e *components.Energy, vel components.Velocity, radius float32, g *genome.Genome, p *Params) {
	speed := length(vel.X, vel.Y)

	baseCost := g.Energy.LossRate / g.Energy.Efficiency
	moveCost := speed * p.MovementEnergyCost / g.Energy.Efficiency
	sizeCost := radius * p.SizeEnergyCostFactor * g.Energy.SizeFactor

	e.Value -= baseCost + moveCost + sizeCost
	if e.Value < 0 {
		e.Value = 0
	}
	if e.Value > e.Max {
		e.Value = e.Max
	}
}

// NewRadius maps current energy to body radius, bounded by the configured
// size range. Monotone in energy, so predation eligibility tracks condition.
func NewRadius(energy float32, g *genome.Genome, p *Params) float32 {
	return clampFloat(energy/radiusEnergyScale*g.Energy.SizeFactor, p.MinRadius, p.MaxRadius)
}
