package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/genome"
)

// Movement tuning constants. These shape the style behaviors and are not
// exposed through config.
const (
	speedJitter        = 0.2 // per-step ±20% speed variation
	flockSimilarityMin = 0.3 // minimum genome similarity to count as flock
	predatorySpeedup   = 1.2
	grazingSlowdown    = 0.6
	centerDeadZone     = 10.0 // no center pressure inside this radius
	edgeBandWidth      = 50.0 // pressure ramps up inside this band
	edgeBoostMax       = 8.0  // up to (1 + edgeBoostMax) pressure at the wall
)

// ComputeVelocity chooses the step velocity for the entity at row self.
// Neighbors must come from the randomized spatial query; their order decides
// which candidates are considered first. The returned velocity is clamped to
// MaxVelocity by magnitude; non-finite intermediate results collapse to zero
// and the second return is false so the caller can log the reset.
func ComputeVelocity(self int32, views []EntityView, neighbors []Neighbor, p *Params, halfWorld float32, rng *rand.Rand) (components.Velocity, bool) {
	v := &views[self]
	g := v.Genome

	var vel components.Velocity
	if tx, ty, ok := findMovementTarget(v, views, neighbors, p); ok {
		moveTowards(&vel, v.Pos, tx, ty, g.Movement.Speed)
	} else {
		moveRandomly(&vel, g.Movement.Speed, rng)
	}

	switch g.Behavior.Style {
	case genome.StyleFlocking:
		applyFlocking(&vel, v, views, neighbors)
	case genome.StyleSolitary:
		applySolitary(&vel, v, views, neighbors)
	case genome.StylePredatory:
		applyPredatory(&vel, v, views, neighbors, p)
	case genome.StyleGrazing:
		applyGrazing(&vel, g, rng)
	case genome.StyleRandom:
		// keeps the base velocity: toward a target if one was found,
		// otherwise the random walk from moveRandomly
	}

	applyCenterPressure(&vel, v.Pos, p, halfWorld)

	ok := isFinite(vel.X) && isFinite(vel.Y)
	if !ok {
		vel = components.Velocity{}
	}

	speed := length(vel.X, vel.Y)
	if speed > p.MaxVelocity {
		scale := p.MaxVelocity / speed
		vel.X *= scale
		vel.Y *= scale
	}
	return vel, ok
}

// findMovementTarget scans neighbors for the best-preferred edible entity.
// Candidate order is the randomized query order; a later candidate replaces
// an earlier one only on a strictly better preference, with row index
// breaking exact ties so results do not depend on shuffle accidents.
func findMovementTarget(self *EntityView, views []EntityView, neighbors []Neighbor, p *Params) (float32, float32, bool) {
	g := self.Genome
	senseSq := g.Movement.SenseRadius * g.Movement.SenseRadius

	var bestX, bestY float32
	bestPref := float32(0)
	bestIdx := int32(-1)

	for _, n := range neighbors {
		if n.DistSq > senseSq {
			continue
		}
		other := &views[n.Index]
		if !other.Energy.Alive() {
			continue
		}
		if !CanEat(self, other, p.PredationSizeRatio) {
			continue
		}
		pref := g.PredationPreference(other.Genome)
		if pref > bestPref || (pref == bestPref && bestIdx >= 0 && n.Index < bestIdx) {
			bestX = other.Pos.X
			bestY = other.Pos.Y
			bestPref = pref
			bestIdx = n.Index
		}
	}
	return bestX, bestY, bestPref > 0
}

func moveTowards(vel *components.Velocity, pos components.Position, tx, ty, speed float32) {
	dx := tx - pos.X
	dy := ty - pos.Y
	dist := length(dx, dy)
	if dist > 0 {
		vel.X = dx / dist * speed
		vel.Y = dy / dist * speed
	}
}

func moveRandomly(vel *components.Velocity, speed float32, rng *rand.Rand) {
	variation := 1 - speedJitter + rng.Float32()*2*speedJitter
	dx, dy := RandomUnitDir(rng)
	vel.X = dx * speed * variation
	vel.Y = dy * speed * variation
}

// RandomUnitDir samples a uniformly distributed unit direction by rejection
// sampling inside the unit disk. Normalizing a random square sample instead
// would over-weight the diagonals.
func RandomUnitDir(rng *rand.Rand) (float32, float32) {
	for {
		dx := rng.Float32()*2 - 1
		dy := rng.Float32()*2 - 1
		lenSq := dx*dx + dy*dy
		if lenSq <= 1 && lenSq > 0 {
			l := length(dx, dy)
			return dx / l, dy / l
		}
	}
}

func applyFlocking(vel *components.Velocity, self *EntityView, views []EntityView, neighbors []Neighbor) {
	g := self.Genome
	style := &g.Behavior
	senseSq := g.Movement.SenseRadius * g.Movement.SenseRadius

	var centerX, centerY, flockVelX, flockVelY, sepX, sepY float32
	count := 0

	for _, n := range neighbors {
		if n.DistSq > senseSq {
			continue
		}
		other := &views[n.Index]
		if !other.Energy.Alive() {
			continue
		}
		if g.Similarity(other.Genome) < flockSimilarityMin {
			continue
		}

		centerX += other.Pos.X
		centerY += other.Pos.Y
		flockVelX += other.Vel.X
		flockVelY += other.Vel.Y

		dist := length(n.DX, n.DY)
		if dist > 0 && dist < style.SeparationDistance {
			force := (style.SeparationDistance - dist) / dist
			sepX -= n.DX * force
			sepY -= n.DY * force
		}
		count++
	}

	if count == 0 {
		return
	}
	fc := float32(count)
	strength := style.FlockingStrength

	if style.CohesionStrength > 0 {
		centerX /= fc
		centerY /= fc
		vel.X += (centerX - self.Pos.X) * style.CohesionStrength * strength * 0.1
		vel.Y += (centerY - self.Pos.Y) * style.CohesionStrength * strength * 0.1
	}
	if style.AlignmentStrength > 0 {
		vel.X += flockVelX / fc * style.AlignmentStrength * strength * 0.1
		vel.Y += flockVelY / fc * style.AlignmentStrength * strength * 0.1
	}
	vel.X += sepX * strength * 0.2
	vel.Y += sepY * strength * 0.2
}

func applySolitary(vel *components.Velocity, self *EntityView, views []EntityView, neighbors []Neighbor) {
	g := self.Genome
	sense := g.Movement.SenseRadius
	senseSq := sense * sense

	var avoidX, avoidY float32
	for _, n := range neighbors {
		if n.DistSq > senseSq || n.DistSq == 0 {
			continue
		}
		if !views[n.Index].Energy.Alive() {
			continue
		}
		dist := length(n.DX, n.DY)
		force := sense / (dist + 1)
		avoidX -= n.DX * force
		avoidY -= n.DY * force
	}

	strength := g.Behavior.SocialTendency * 0.3
	vel.X += avoidX * strength
	vel.Y += avoidY * strength
}

func applyPredatory(vel *components.Velocity, self *EntityView, views []EntityView, neighbors []Neighbor, p *Params) {
	g := self.Genome
	senseSq := g.Movement.SenseRadius * g.Movement.SenseRadius

	var preyX, preyY float32
	bestPref := float32(0)
	bestIdx := int32(-1)

	for _, n := range neighbors {
		if n.DistSq > senseSq {
			continue
		}
		other := &views[n.Index]
		if !other.Energy.Alive() {
			continue
		}
		if !CanEat(self, other, p.PredationSizeRatio) {
			continue
		}
		pref := g.PredationPreference(other.Genome)
		if pref > bestPref || (pref == bestPref && bestIdx >= 0 && n.Index < bestIdx) {
			preyX = other.Pos.X
			preyY = other.Pos.Y
			bestPref = pref
			bestIdx = n.Index
		}
	}

	if bestPref > 0 {
		dx := preyX - self.Pos.X
		dy := preyY - self.Pos.Y
		dist := length(dx, dy)
		if dist > 0 {
			speed := g.Movement.Speed * predatorySpeedup
			vel.X = dx / dist * speed
			vel.Y = dy / dist * speed
		}
	}
}

func applyGrazing(vel *components.Velocity, g *genome.Genome, rng *rand.Rand) {
	moveRandomly(vel, g.Movement.Speed*grazingSlowdown, rng)
}

// applyCenterPressure nudges velocity toward the origin, ramping up near the
// walls. This replaces the old absolute drift compensation; with randomized
// query ordering the only systematic force left is this restoring term.
func applyCenterPressure(vel *components.Velocity, pos components.Position, p *Params, halfWorld float32) {
	distCenter := length(pos.X, pos.Y)
	if distCenter <= centerDeadZone {
		return
	}

	edgeX := halfWorld - absf32(pos.X)
	edgeY := halfWorld - absf32(pos.Y)
	edge := edgeX
	if edgeY < edge {
		edge = edgeY
	}

	boost := float32(1)
	if edge < edgeBandWidth {
		f := (edgeBandWidth - edge) / edgeBandWidth
		boost = 1 + f*f*edgeBoostMax
	}

	strength := p.CenterPressureStrength * boost
	vel.X += -pos.X / distCenter * strength
	vel.Y += -pos.Y / distCenter * strength
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
