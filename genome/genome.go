// Package genome holds the heritable trait vector carried by every entity,
// with mutation, similarity, and derived appearance.
package genome

import (
	"math"
	"math/rand/v2"
)

// Style selects the movement behavior an entity expresses.
type Style uint8

const (
	StyleRandom Style = iota
	StyleFlocking
	StyleSolitary
	StylePredatory
	StyleGrazing

	numStyles = 5
)

// String returns the style name for logs and stats.
func (s Style) String() string {
	switch s {
	case StyleRandom:
		return "random"
	case StyleFlocking:
		return "flocking"
	case StyleSolitary:
		return "solitary"
	case StylePredatory:
		return "predatory"
	case StyleGrazing:
		return "grazing"
	}
	return "unknown"
}

// BaseMaxEnergy anchors the derived energy capacity: MaxEnergy = BaseMaxEnergy * Efficiency.
const BaseMaxEnergy = 100.0

// bounds is a trait's fixed clamp range.
type bounds struct {
	Lo, Hi float32
}

func (b bounds) clamp(v float32) float32 {
	if v < b.Lo {
		return b.Lo
	}
	if v > b.Hi {
		return b.Hi
	}
	return v
}

func (b bounds) span() float32 { return b.Hi - b.Lo }

// Trait clamp ranges. Initial construction draws from a narrower band inside
// each range so founders start away from the extremes.
var (
	speedBounds       = bounds{0.05, 3.0}
	senseRadiusBounds = bounds{2.0, 180.0}
	efficiencyBounds  = bounds{0.2, 4.0}
	lossRateBounds    = bounds{0.02, 3.0}
	gainRateBounds    = bounds{0.1, 5.0}
	sizeFactorBounds  = bounds{0.1, 3.5}
	reproRateBounds   = bounds{0.0001, 0.25}
	mutationBounds    = bounds{0.001, 0.25}
	saturationBounds  = bounds{0.1, 1.0}
	unitBounds        = bounds{0.0, 1.0}
	separationBounds  = bounds{2.0, 30.0}
)

// MovementTraits drive locomotion and sensing.
type MovementTraits struct {
	Speed       float32
	SenseRadius float32
}

// EnergyTraits drive metabolism and predation gain.
type EnergyTraits struct {
	Efficiency float32
	LossRate   float32
	GainRate   float32
	SizeFactor float32
}

// ReproductionTraits drive offspring rate and genome drift.
type ReproductionTraits struct {
	Rate         float32
	MutationRate float32
}

// AppearanceTraits derive the cached display color. Hue is circular over [0, 1).
type AppearanceTraits struct {
	Hue        float32
	Saturation float32
}

// BehaviorTraits select and parameterize the movement style.
type BehaviorTraits struct {
	Style              Style
	FlockingStrength   float32
	SeparationDistance float32
	AlignmentStrength  float32
	CohesionStrength   float32
	PreferenceStrength float32 // weight of gene dissimilarity in prey choice
	SocialTendency     float32
}

// Genome is the immutable heritable state of one entity. Mutation returns a
// fresh value; a live entity's genome never changes.
type Genome struct {
	Movement     MovementTraits
	Energy       EnergyTraits
	Reproduction ReproductionTraits
	Appearance   AppearanceTraits
	Behavior     BehaviorTraits

	color Color // derived from Appearance, cached on construction
}

// Color is an RGB triple with components in [0, 1].
type Color struct {
	R, G, B float32
}

func uniform(rng *rand.Rand, lo, hi float32) float32 {
	return lo + rng.Float32()*(hi-lo)
}

// NewRandom constructs a founder genome with traits drawn uniformly from
// their initial ranges.
func NewRandom(rng *rand.Rand) Genome {
	g := Genome{
		Movement: MovementTraits{
			Speed:       uniform(rng, 0.1, 2.5),
			SenseRadius: uniform(rng, 5.0, 150.0),
		},
		Energy: EnergyTraits{
			Efficiency: uniform(rng, 0.3, 3.0),
			LossRate:   uniform(rng, 0.05, 2.0),
			GainRate:   uniform(rng, 0.2, 4.5),
			SizeFactor: uniform(rng, 0.3, 2.5),
		},
		Reproduction: ReproductionTraits{
			Rate:         uniform(rng, 0.0005, 0.15),
			MutationRate: uniform(rng, 0.005, 0.15),
		},
		Appearance: AppearanceTraits{
			Hue:        rng.Float32(),
			Saturation: uniform(rng, 0.2, 1.0),
		},
		Behavior: BehaviorTraits{
			Style:              Style(rng.IntN(numStyles)),
			FlockingStrength:   rng.Float32(),
			SeparationDistance: uniform(rng, 5.0, 25.0),
			AlignmentStrength:  rng.Float32(),
			CohesionStrength:   rng.Float32(),
			PreferenceStrength: rng.Float32(),
			SocialTendency:     rng.Float32(),
		},
	}
	g.color = colorFromHSV(g.Appearance.Hue, g.Appearance.Saturation, 0.8)
	return g
}

// perturb applies symmetric uniform noise scaled by the trait range and the
// genome's own mutation rate, then clamps.
func perturb(rng *rand.Rand, v float32, b bounds, rate float32) float32 {
	delta := (rng.Float32()*2 - 1) * b.span() * rate
	return b.clamp(v + delta)
}

// Mutate returns a child genome with every trait independently perturbed.
// Hue wraps instead of clamping; the movement style switches to a uniformly
// random style with probability MutationRate/10.
func (g Genome) Mutate(rng *rand.Rand) Genome {
	rate := g.Reproduction.MutationRate
	child := g

	child.Movement.Speed = perturb(rng, g.Movement.Speed, speedBounds, rate)
	child.Movement.SenseRadius = perturb(rng, g.Movement.SenseRadius, senseRadiusBounds, rate)

	child.Energy.Efficiency = perturb(rng, g.Energy.Efficiency, efficiencyBounds, rate)
	child.Energy.LossRate = perturb(rng, g.Energy.LossRate, lossRateBounds, rate)
	child.Energy.GainRate = perturb(rng, g.Energy.GainRate, gainRateBounds, rate)
	child.Energy.SizeFactor = perturb(rng, g.Energy.SizeFactor, sizeFactorBounds, rate)

	child.Reproduction.Rate = perturb(rng, g.Reproduction.Rate, reproRateBounds, rate)
	child.Reproduction.MutationRate = perturb(rng, g.Reproduction.MutationRate, mutationBounds, rate)

	hue := g.Appearance.Hue + (rng.Float32()*2-1)*rate
	hue -= float32(math.Floor(float64(hue)))
	child.Appearance.Hue = hue
	child.Appearance.Saturation = perturb(rng, g.Appearance.Saturation, saturationBounds, rate)

	child.Behavior.FlockingStrength = perturb(rng, g.Behavior.FlockingStrength, unitBounds, rate)
	child.Behavior.SeparationDistance = perturb(rng, g.Behavior.SeparationDistance, separationBounds, rate)
	child.Behavior.AlignmentStrength = perturb(rng, g.Behavior.AlignmentStrength, unitBounds, rate)
	child.Behavior.CohesionStrength = perturb(rng, g.Behavior.CohesionStrength, unitBounds, rate)
	child.Behavior.PreferenceStrength = perturb(rng, g.Behavior.PreferenceStrength, unitBounds, rate)
	child.Behavior.SocialTendency = perturb(rng, g.Behavior.SocialTendency, unitBounds, rate)

	if rng.Float32() < rate*0.1 {
		child.Behavior.Style = Style(rng.IntN(numStyles))
	}

	child.color = colorFromHSV(child.Appearance.Hue, child.Appearance.Saturation, 0.8)
	return child
}

// Clamp forces every trait into its bounds, wrapping hue. Returns true if any
// value changed. The engine does not call it: genomes from NewRandom and
// Mutate are already in bounds.
func (g *Genome) Clamp() bool {
	changed := false
	fix := func(v *float32, b bounds) {
		if c := b.clamp(*v); c != *v {
			*v = c
			changed = true
		}
	}
	fix(&g.Movement.Speed, speedBounds)
	fix(&g.Movement.SenseRadius, senseRadiusBounds)
	fix(&g.Energy.Efficiency, efficiencyBounds)
	fix(&g.Energy.LossRate, lossRateBounds)
	fix(&g.Energy.GainRate, gainRateBounds)
	fix(&g.Energy.SizeFactor, sizeFactorBounds)
	fix(&g.Reproduction.Rate, reproRateBounds)
	fix(&g.Reproduction.MutationRate, mutationBounds)
	fix(&g.Appearance.Saturation, saturationBounds)
	fix(&g.Behavior.FlockingStrength, unitBounds)
	fix(&g.Behavior.SeparationDistance, separationBounds)
	fix(&g.Behavior.AlignmentStrength, unitBounds)
	fix(&g.Behavior.CohesionStrength, unitBounds)
	fix(&g.Behavior.PreferenceStrength, unitBounds)
	fix(&g.Behavior.SocialTendency, unitBounds)
	if g.Appearance.Hue < 0 || g.Appearance.Hue >= 1 {
		h := g.Appearance.Hue - float32(math.Floor(float64(g.Appearance.Hue)))
		g.Appearance.Hue = h
		changed = true
	}
	if g.Behavior.Style >= numStyles {
		g.Behavior.Style = StyleRandom
		changed = true
	}
	if changed {
		g.color = colorFromHSV(g.Appearance.Hue, g.Appearance.Saturation, 0.8)
	}
	return changed
}

// MaxEnergy is the derived energy capacity.
func (g *Genome) MaxEnergy() float32 {
	return BaseMaxEnergy * g.Energy.Efficiency
}

// Color returns the cached display color.
func (g *Genome) Color() Color {
	return g.color
}

// hueDistance returns the circular distance between two hues, normalized so
// the maximum possible distance maps to 1.
func hueDistance(a, b float32) float32 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 0.5 {
		d = 1 - d
	}
	return d * 2
}

// Similarity compares two genomes as a weighted normalized trait distance,
// inverted so 1 means identical and 0 maximally different.
func (g *Genome) Similarity(other *Genome) float32 {
	var diff, weight float32

	// Movement
	diff += absf(g.Movement.Speed-other.Movement.Speed) / speedBounds.span() * 0.3
	diff += absf(g.Movement.SenseRadius-other.Movement.SenseRadius) / senseRadiusBounds.span() * 0.2
	weight += 0.5

	// Energy
	diff += absf(g.Energy.Efficiency-other.Energy.Efficiency) / efficiencyBounds.span() * 0.15
	diff += absf(g.Energy.LossRate-other.Energy.LossRate) / lossRateBounds.span() * 0.15
	diff += absf(g.Energy.GainRate-other.Energy.GainRate) / gainRateBounds.span() * 0.1
	diff += absf(g.Energy.SizeFactor-other.Energy.SizeFactor) / sizeFactorBounds.span() * 0.1
	weight += 0.5

	// Appearance
	diff += hueDistance(g.Appearance.Hue, other.Appearance.Hue) * 0.3
	diff += absf(g.Appearance.Saturation-other.Appearance.Saturation) / saturationBounds.span() * 0.2
	weight += 0.5

	// Behavior
	diff += absf(g.Behavior.FlockingStrength-other.Behavior.FlockingStrength) * 0.2
	diff += absf(g.Behavior.SocialTendency-other.Behavior.SocialTendency) * 0.2
	diff += absf(g.Behavior.PreferenceStrength-other.Behavior.PreferenceStrength) * 0.1
	weight += 0.5

	if g.Behavior.Style != other.Behavior.Style {
		diff += 0.3
	}
	weight += 0.3

	sim := 1 - diff/weight
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// PredationPreference scores another genome as prey in [0, 1]. Dissimilar
// genomes are preferred, modulated by PreferenceStrength, with a small floor
// so entities can still eat close kin when nothing else is in reach.
func (g *Genome) PredationPreference(prey *Genome) float32 {
	base := 1 - g.Similarity(prey)
	return base*g.Behavior.PreferenceStrength + (1-g.Behavior.PreferenceStrength)*0.3
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// colorFromHSV converts HSV (h, s, v in [0, 1]) to RGB.
func colorFromHSV(h, s, v float32) Color {
	h *= 6
	c := v * s
	x := c * (1 - absf(float32(math.Mod(float64(h), 2))-1))
	m := v - c

	var r, g, b float32
	switch int(h) {
	case 0:
		r, g, b = c, x, 0
	case 1:
		r, g, b = x, c, 0
	case 2:
		r, g, b = 0, c, x
	case 3:
		r, g, b = 0, x, c
	case 4:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	clamp01 := func(v float32) float32 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Color{R: clamp01(r + m), G: clamp01(g + m), B: clamp01(b + m)}
}
