package engine

import (
	"math"

	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/systems"
)

// Step advances the simulation by one step: rebuild the spatial index, run
// the parallel sense/move/bound/intend phase, serially commit predation,
// energy, reproduction and culling, and publish a new snapshot.
// Steps always complete; every failure inside is repaired and logged.
func (e *Engine) Step() {
	e.applyPending()
	e.step++

	e.buildViews()
	e.grid.Rebuild(e.views)

	n := len(e.views)
	if n > 0 {
		e.pool.run(n, e.computeChunk)
		e.commit()
	}

	e.publishSnapshot()
}

// buildViews captures the read-only per-row state for the step and records
// previous positions for snapshot interpolation. Row indices assigned here
// are the step's entity identifiers; they die with the step.
func (e *Engine) buildViews() {
	e.views = e.views[:0]
	e.entities = e.entities[:0]
	clear(e.prevPos)

	query := e.filter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, vel, en, body, org := query.Get()

		org.Acted = false
		e.prevPos[entity] = *pos
		e.views = append(e.views, systems.EntityView{
			Pos:    *pos,
			Vel:    *vel,
			Energy: *en,
			Radius: body.Radius,
			Genome: &org.Genome,
		})
		e.entities = append(e.entities, entity)
	}

	if cap(e.intents) < len(e.views) {
		e.intents = make([]intent, len(e.views))
	}
	e.intents = e.intents[:len(e.views)]
}

// computeChunk runs the parallel phase for rows [start, end): neighbor query,
// movement, boundary resolution, and tentative prey selection. Only
// e.intents[i] is written for row i; everything else is read-only.
func (e *Engine) computeChunk(start, end int, scratch *workerScratch) {
	for i := start; i < end; i++ {
		v := &e.views[i]
		it := &e.intents[i]
		*it = intent{Prey: -1}

		if !v.Energy.Alive() {
			continue
		}

		rng := streamRNG(e.runSeed, e.step, streamRow, uint64(i))

		scratch.Neighbors = e.grid.QueryRadiusInto(
			scratch.Neighbors[:0],
			v.Pos.X, v.Pos.Y, v.Genome.Movement.SenseRadius,
			int32(i), e.views, rng,
		)
		neighbors := scratch.Neighbors
		if len(neighbors) > e.params.NearbyLimit {
			neighbors = neighbors[:e.params.NearbyLimit]
		}
		it.NeighborCount = int32(len(neighbors))

		vel, finite := systems.ComputeVelocity(int32(i), e.views, neighbors, &e.params, e.halfWorld, rng)
		it.NonFinite = !finite

		pos := components.Position{X: v.Pos.X + vel.X, Y: v.Pos.Y + vel.Y}
		if !finiteVec(pos.X, pos.Y) {
			pos = components.Position{}
			it.NonFinite = true
		}
		systems.ResolveBoundary(&pos, &vel, e.halfWorld, &e.params)

		it.Vel = vel
		it.Pos = pos
		it.Prey = systems.SelectPrey(int32(i), e.views, neighbors, &e.params)
	}
}

// commit applies intents serially. Rows are visited in a random permutation
// so that predation conflicts resolve without spatial or index bias; each
// row's own randomness still comes from its per-row stream, which keeps the
// outcome independent of worker count.
func (e *Engine) commit() {
	n := len(e.views)
	commitRNG := streamRNG(e.runSeed, e.step, streamCommit, 0)

	globalDensity := float32(0)
	if e.maxPopulation > 0 {
		globalDensity = float32(n) / float32(e.maxPopulation)
	}

	dead := make([]bool, n)
	var births []systems.Offspring

	perm := commitRNG.Perm(n)
	for _, i := range perm {
		v := &e.views[i]
		if !v.Energy.Alive() || dead[i] {
			continue
		}
		it := &e.intents[i]

		pos, vel, en, body, org := e.mapper.Get(e.entities[i])
		if it.NonFinite {
			e.log.Warn("non-finite state reset", "step", e.step, "row", i)
		}
		*pos = it.Pos
		*vel = it.Vel

		// Predation: first come, first served over the commit permutation;
		// the claim check guarantees each prey is consumed at most once.
		if p := it.Prey; p >= 0 && !dead[p] && !org.Acted && e.views[p].Energy.Alive() {
			gain := systems.ConsumeGain(v, &e.views[p])
			en.Value += gain
			if en.Value > en.Max {
				en.Value = en.Max
			}
			dead[p] = true
			org.Acted = true
			e.collector.RecordEaten()
		}

		systems.ApplyMetabolism(en, it.Vel, body.Radius, &org.Genome, &e.params)
		if !en.Alive() {
			dead[i] = true
			continue
		}

		rng := streamRNG(e.runSeed, e.step, streamRow, uint64(i)+uint64(n))
		if systems.ShouldReproduce(*en, &org.Genome, int(it.NeighborCount), globalDensity, &e.params, rng) {
			births = append(births, systems.MakeOffspring(*pos, en.Value, &org.Genome, &e.params, rng))
			en.Value -= en.Value * e.params.ReproductionEnergyCost
		}

		if systems.DensityDeathRoll(globalDensity, &e.params, rng) {
			dead[i] = true
			continue
		}

		body.Radius = systems.NewRadius(en.Value, &org.Genome, &e.params)
	}

	// Rows whose energy was already zero at the step boundary are culled now.
	for i := range dead {
		if !e.views[i].Energy.Alive() {
			dead[i] = true
		}
	}

	deaths := 0
	for _, d := range dead {
		if d {
			deaths++
		}
	}

	// Global cap: drop surplus births uniformly at random.
	capacity := e.maxPopulation - (n - deaths)
	if capacity < 0 {
		capacity = 0
	}
	if len(births) > capacity {
		commitRNG.Shuffle(len(births), func(i, j int) {
			births[i], births[j] = births[j], births[i]
		})
		for range births[capacity:] {
			e.collector.RecordDroppedBirth()
		}
		births = births[:capacity]
	}

	// Structural changes last: every read of views and genomes is done.
	for i := range dead {
		if dead[i] {
			e.world.RemoveEntity(e.entities[i])
			delete(e.prevPos, e.entities[i])
			e.collector.RecordDeath()
		}
	}
	for i := range births {
		b := &births[i]
		// Children spawn inside the interior band regardless of where the
		// parent sat.
		limit := e.halfWorld - e.params.BoundaryMargin
		b.Pos.X = clamp32(b.Pos.X, -limit, limit)
		b.Pos.Y = clamp32(b.Pos.Y, -limit, limit)

		pos := b.Pos
		vel := components.Velocity{}
		en := b.Energy
		body := components.Body{Radius: b.Radius}
		org := components.Organism{Genome: b.Genome}
		entity := e.mapper.NewEntity(&pos, &vel, &en, &body, &org)
		e.prevPos[entity] = pos
		e.collector.RecordBirth()
	}
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finiteVec(x, y float32) bool {
	return finite32(x) && finite32(y)
}

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
