// Package engine drives the simulation: it owns the entity store, runs the
// per-step pipeline (index, sense, move, bound, interact, energize, reproduce,
// cull), and publishes packed snapshots and aggregate statistics.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/config"
	"github.com/pthm-cable/petri/genome"
	"github.com/pthm-cable/petri/systems"
	"github.com/pthm-cable/petri/telemetry"
)

// Record is one packed snapshot row for the renderer: previous and current
// position, body radius, and color.
type Record struct {
	PrevX, PrevY float32
	X, Y         float32
	Radius       float32
	R, G, B      float32
}

// entityMapper bundles the five components every entity carries.
type entityMapper = ecs.Map5[
	components.Position,
	components.Velocity,
	components.Energy,
	components.Body,
	components.Organism,
]

type entityFilter = ecs.Filter5[
	components.Position,
	components.Velocity,
	components.Energy,
	components.Body,
	components.Organism,
]

// Engine is one simulation run. Step, Snapshot, Stats, and Reset are meant
// for a single driving goroutine; Set is safe from any goroutine and takes
// effect at the next step boundary.
type Engine struct {
	world  *ecs.World
	mapper *entityMapper
	filter *entityFilter

	cfg       config.Config
	params    systems.Params
	worldSize float32
	halfWorld float32
	runSeed   uint64
	step      uint64

	maxPopulation int // max_population scaled by entity_scale

	grid *systems.SpatialGrid
	pool *workerPool

	// Per-step working state, index-aligned with views.
	views    []systems.EntityView
	entities []ecs.Entity
	intents  []intent

	prevPos  map[ecs.Entity]components.Position
	snapshot []Record

	collector *telemetry.Collector
	log       *slog.Logger

	bus paramBus
}

// intent is the outcome of the parallel phase for one row, applied by the
// serial commit.
type intent struct {
	Vel           components.Velocity
	Pos           components.Position
	Prey          int32 // tentative prey row, -1 when none
	NeighborCount int32
	NonFinite     bool // velocity or position was repaired this step
}

// New constructs an engine for a square world of the given side length.
// The config is copied; later changes to the caller's value have no effect.
func New(worldSize float64, cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if worldSize <= 0 {
		return nil, fmt.Errorf("%w: world size must be positive, got %v", ErrConfigInvalid, worldSize)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	e := &Engine{
		log:       slog.Default().With("component", "engine"),
		collector: telemetry.NewCollector(),
	}
	e.bus.init()
	e.initRun(worldSize, *cfg)
	return e, nil
}

// initRun builds all run state from scratch. Shared by New and Reset.
func (e *Engine) initRun(worldSize float64, cfg config.Config) {
	e.cfg = cfg
	e.params = systems.NewParams(&e.cfg)
	e.worldSize = float32(worldSize)
	e.halfWorld = float32(worldSize) / 2
	e.step = 0

	e.runSeed = cfg.Sim.RunSeed
	if e.runSeed == 0 {
		e.runSeed = uint64(time.Now().UnixNano())
	}

	e.maxPopulation = int(float64(cfg.Population.MaxPopulation) * cfg.Population.EntityScale)

	e.world = ecs.NewWorld()
	e.mapper = ecs.NewMap5[
		components.Position,
		components.Velocity,
		components.Energy,
		components.Body,
		components.Organism,
	](e.world)
	e.filter = ecs.NewFilter5[
		components.Position,
		components.Velocity,
		components.Energy,
		components.Body,
		components.Organism,
	](e.world)

	e.grid = systems.NewSpatialGrid(e.worldSize, e.params.GridCellSize)
	e.prevPos = make(map[ecs.Entity]components.Position)

	if e.pool != nil {
		e.pool.stop()
	}
	e.pool = newWorkerPool(cfg.Sim.Workers)

	e.seedPopulation()
	e.publishSnapshot()
}

// seedPopulation spawns the founder entities uniformly in the central disk.
func (e *Engine) seedPopulation() {
	count := int(float64(e.cfg.Population.InitialEntities) * e.cfg.Population.EntityScale)
	if count > e.maxPopulation {
		count = e.maxPopulation
	}
	spawnRadius := e.halfWorld * float32(e.cfg.Population.SpawnRadiusFactor)

	rng := streamRNG(e.runSeed, 0, streamSeeding, 0)
	for i := 0; i < count; i++ {
		// Uniform over the disk: sqrt on the radial draw, or density piles
		// up at the center.
		angle := rng.Float64() * 2 * math.Pi
		dist := spawnRadius * float32(math.Sqrt(rng.Float64()))
		x := dist * float32(math.Cos(angle))
		y := dist * float32(math.Sin(angle))

		g := genome.NewRandom(rng)
		energy := 15 + rng.Float32()*60
		maxEnergy := g.MaxEnergy()
		if energy > maxEnergy {
			energy = maxEnergy
		}

		pos := components.Position{X: x, Y: y}
		vel := components.Velocity{}
		en := components.Energy{Value: energy, Max: maxEnergy}
		body := components.Body{Radius: systems.NewRadius(energy, &g, &e.params)}
		org := components.Organism{Genome: g}
		e.mapper.NewEntity(&pos, &vel, &en, &body, &org)
	}
}

// Reset discards all state, re-validates, reseeds, and rebuilds. The engine
// keeps its collector identity but zeroes its counters.
func (e *Engine) Reset(worldSize float64, cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Default()
	}
	if worldSize <= 0 {
		return fmt.Errorf("%w: world size must be positive, got %v", ErrConfigInvalid, worldSize)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	e.bus.clear()
	e.collector.Reset()
	e.initRun(worldSize, *cfg)
	return nil
}

// Close stops the worker pool. The engine must not be stepped afterwards.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.stop()
		e.pool = nil
	}
}

// Len returns the live population count.
func (e *Engine) Len() int {
	n := 0
	query := e.filter.Query()
	for query.Next() {
		n++
	}
	return n
}

// WorldSize returns the world side length.
func (e *Engine) WorldSize() float64 {
	return float64(e.worldSize)
}

// StepIndex returns the number of completed steps.
func (e *Engine) StepIndex() uint64 {
	return e.step
}

// Snapshot appends the published per-entity records to dst and returns it.
// The snapshot is stable between steps: two calls without an intervening
// Step return identical bytes.
func (e *Engine) Snapshot(dst []Record) []Record {
	return append(dst, e.snapshot...)
}

// Stats computes the aggregate statistics of the live population on demand.
func (e *Engine) Stats() telemetry.Stats {
	var speeds, sizes, energies []float64

	query := e.filter.Query()
	for query.Next() {
		_, vel, en, body, _ := query.Get()
		speeds = append(speeds, math.Hypot(float64(vel.X), float64(vel.Y)))
		sizes = append(sizes, float64(body.Radius))
		energies = append(energies, float64(en.Value))
	}

	s := telemetry.Compute(e.step, speeds, sizes, energies)
	e.collector.FillStats(&s)
	return s
}

// publishSnapshot rebuilds the packed snapshot from current store state.
func (e *Engine) publishSnapshot() {
	e.snapshot = e.snapshot[:0]

	query := e.filter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, _, _, body, org := query.Get()

		prev, ok := e.prevPos[entity]
		if !ok {
			prev = *pos
		}
		c := org.Genome.Color()
		e.snapshot = append(e.snapshot, Record{
			PrevX:  prev.X,
			PrevY:  prev.Y,
			X:      pos.X,
			Y:      pos.Y,
			Radius: body.Radius,
			R:      c.R,
			G:      c.G,
			B:      c.B,
		})
	}
}
