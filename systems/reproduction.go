package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/genome"
)

// ShouldReproduce runs the per-entity reproduction gates: energy threshold,
// local crowding, and a Bernoulli trial whose probability decays with global
// density but never below the configured floor. The global population cap is
// enforced later, at birth commit.
func ShouldReproduce(e components.Energy, g *genome.Genome, neighborCount int, globalDensity float32, p *Params, rng *rand.Rand) bool {
	if e.Value < e.Max*p.ReproductionEnergyThreshold {
		return false
	}
	if float32(neighborCount) >= p.PopulationDensityFactor*float32(p.NearbyLimit) {
		return false
	}

	chance := g.Reproduction.Rate * (1 - globalDensity*p.PopulationDensityFactor)
	if chance < p.MinReproductionChance {
		chance = p.MinReproductionChance
	}
	return rng.Float32() < chance
}

// Offspring holds the staged state of a birth, applied at commit.
type Offspring struct {
	Pos    components.Position
	Energy components.Energy
	Radius float32
	Genome genome.Genome
}

// MakeOffspring derives a child from the parent: mutated genome, position
// jittered uniformly in a disk around the parent, zero velocity, energy as a
// fraction of the parent's current energy.
func MakeOffspring(parentPos components.Position, parentEnergy float32, parent *genome.Genome, p *Params, rng *rand.Rand) Offspring {
	child := parent.Mutate(rng)

	// Uniform sample in the spawn disk by rejection; sampling the square and
	// clamping would pile children into the corners.
	var dx, dy float32
	r := p.ChildSpawnRadius
	for {
		dx = (rng.Float32()*2 - 1) * r
		dy = (rng.Float32()*2 - 1) * r
		if dx*dx+dy*dy <= r*r {
			break
		}
	}

	energy := parentEnergy * p.ChildEnergyFactor
	if max := child.MaxEnergy(); energy > max {
		energy = max
	}
	return Offspring{
		Pos:    components.Position{X: parentPos.X + dx, Y: parentPos.Y + dy},
		Energy: components.Energy{Value: energy, Max: child.MaxEnergy()},
		Radius: NewRadius(energy, &child, p),
		Genome: child,
	}
}

// DensityDeathRoll returns true when the entity dies from overcrowding.
// Below the soft threshold there is no pressure; above it, death probability
// grows linearly with the excess.
func DensityDeathRoll(globalDensity float32, p *Params, rng *rand.Rand) bool {
	excess := globalDensity - p.PopulationDensityFactor
	if excess <= 0 {
		return false
	}
	return rng.Float32() < p.DeathChanceFactor*excess
}
