package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/config"
	"github.com/pthm-cable/petri/genome"
	"github.com/pthm-cable/petri/systems"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sim.RunSeed = 42
	cfg.Sim.Workers = 1
	return cfg
}

func emptyConfig() *config.Config {
	cfg := testConfig()
	cfg.Population.InitialEntities = 0
	return cfg
}

// spawnEntity adds a prescribed entity to a test engine and republishes the
// snapshot so the new row is visible before the next step.
func spawnEntity(e *Engine, x, y float32, g genome.Genome, energy, radius float32) {
	pos := components.Position{X: x, Y: y}
	vel := components.Velocity{}
	en := components.Energy{Value: energy, Max: g.MaxEnergy()}
	body := components.Body{Radius: radius}
	org := components.Organism{Genome: g}
	e.mapper.NewEntity(&pos, &vel, &en, &body, &org)
	e.publishSnapshot()
}

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed*0x9e3779b97f4a7c15))
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(0, testConfig()); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("zero world size: err = %v, want ErrConfigInvalid", err)
	}

	bad := testConfig()
	bad.Physics.MaxVelocity = -1
	if _, err := New(500, bad); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("bad config: err = %v, want ErrConfigInvalid", err)
	}
}

func TestConstructionSeedsPopulation(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 100
	cfg.Population.EntityScale = 0.5

	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if got := e.Len(); got != 50 {
		t.Errorf("Len = %d, want 50 (100 scaled by 0.5)", got)
	}
	if e.WorldSize() != 600 {
		t.Errorf("WorldSize = %v, want 600", e.WorldSize())
	}
	if e.StepIndex() != 0 {
		t.Errorf("StepIndex = %d, want 0", e.StepIndex())
	}

	// Founders sit inside the spawn disk, which is inside the band.
	limit := float32(300 - 5)
	for _, r := range e.Snapshot(nil) {
		if r.X < -limit || r.X > limit || r.Y < -limit || r.Y > limit {
			t.Fatalf("founder at (%v, %v) outside the interior band", r.X, r.Y)
		}
	}
}

func TestZeroPopulationStepIsNoOp(t *testing.T) {
	e, err := New(600, emptyConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Step()
	e.Step()

	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
	if e.StepIndex() != 2 {
		t.Errorf("StepIndex = %d, want 2", e.StepIndex())
	}
	if got := e.Snapshot(nil); len(got) != 0 {
		t.Errorf("snapshot has %d records, want 0", len(got))
	}
	s := e.Stats()
	if s.TotalEntities != 0 || s.MeanEnergy != 0 {
		t.Errorf("stats = %+v, want zeros", s)
	}
}

func TestSnapshotStableBetweenSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 200
	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Step()
	a := e.Snapshot(nil)
	b := e.Snapshot(nil)

	if len(a) != len(b) {
		t.Fatalf("snapshot lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs between calls without a step", i)
		}
	}
}

func TestSnapshotAppendsToDst(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 10
	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	prefix := []Record{{X: -1}}
	out := e.Snapshot(prefix)
	if len(out) != 1+e.Len() {
		t.Errorf("got %d records, want %d", len(out), 1+e.Len())
	}
	if out[0].X != -1 {
		t.Error("existing dst contents were clobbered")
	}
}

func TestDeterminismAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) map[uint64][]Record {
		cfg := testConfig()
		cfg.Population.InitialEntities = 300
		cfg.Population.EntityScale = 1
		cfg.Sim.Workers = workers

		e, err := New(600, cfg)
		if err != nil {
			t.Fatal(err)
		}
		defer e.Close()

		checkpoints := make(map[uint64][]Record)
		for i := 0; i < 200; i++ {
			e.Step()
			switch e.StepIndex() {
			case 50, 100, 200:
				checkpoints[e.StepIndex()] = e.Snapshot(nil)
			}
		}
		return checkpoints
	}

	base := run(1)
	for _, workers := range []int{2, 8} {
		other := run(workers)
		for _, step := range []uint64{50, 100, 200} {
			a, b := base[step], other[step]
			if len(a) != len(b) {
				t.Fatalf("workers=%d step %d: %d vs %d records", workers, step, len(a), len(b))
			}
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("workers=%d step %d: record %d differs: %+v vs %+v", workers, step, i, a[i], b[i])
				}
			}
		}
	}
}

func TestResetIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 150

	fresh, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()
	want := fresh.Snapshot(nil)

	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Step()
	e.Step()
	if err := e.Reset(600, cfg); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if e.StepIndex() != 0 {
		t.Errorf("StepIndex after reset = %d, want 0", e.StepIndex())
	}
	got := e.Snapshot(nil)
	if len(got) != len(want) {
		t.Fatalf("reset snapshot has %d records, fresh has %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("record %d differs from fresh construction", i)
		}
	}

	// Counters start over too.
	if s := e.Stats(); s.Births != 0 || s.Deaths != 0 {
		t.Errorf("counters after reset: %+v", s)
	}

	// Stepping after reset matches a fresh engine stepping.
	fresh.Step()
	e.Step()
	a, b := fresh.Snapshot(nil), e.Snapshot(nil)
	if len(a) != len(b) {
		t.Fatalf("post-step lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("post-reset step diverged at record %d", i)
		}
	}
}

func TestResetRejectsBadConfig(t *testing.T) {
	e, err := New(600, emptyConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	bad := testConfig()
	bad.Physics.GridCellSize = 0
	if err := e.Reset(600, bad); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestSingleEntityRandomWalkStaysNearOrigin(t *testing.T) {
	const trials = 50
	within := 0

	for seed := uint64(1); seed <= trials; seed++ {
		cfg := emptyConfig()
		cfg.Sim.RunSeed = seed

		e, err := New(600, cfg)
		if err != nil {
			t.Fatal(err)
		}

		g := genome.NewRandom(testRNG(seed))
		g.Movement.Speed = 1
		g.Movement.SenseRadius = 0
		g.Behavior.Style = genome.StyleRandom
		g.Energy.Efficiency = 4
		g.Energy.LossRate = 0.02
		g.Energy.SizeFactor = 0.1
		spawnEntity(e, 0, 0, g, 300, 1)

		for i := 0; i < 100; i++ {
			e.Step()
		}

		recs := e.Snapshot(nil)
		if len(recs) != 1 {
			t.Fatalf("seed %d: entity died during the walk", seed)
		}
		if math.Hypot(float64(recs[0].X), float64(recs[0].Y)) <= 20 {
			within++
		}
		e.Close()
	}

	if within < 45 {
		t.Errorf("only %d/%d walks stayed within radius 20", within, trials)
	}
}

func TestTwoEntityPredation(t *testing.T) {
	cfg := emptyConfig()
	cfg.Reproduction.MinReproductionChance = 0

	e, err := New(200, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	pred := genome.NewRandom(testRNG(100))
	pred.Movement.Speed = 1
	pred.Movement.SenseRadius = 100
	pred.Behavior.Style = genome.StylePredatory
	pred.Energy.Efficiency = 3
	pred.Energy.LossRate = 0.05
	pred.Energy.GainRate = 2
	pred.Energy.SizeFactor = 1.5
	pred.Reproduction.Rate = 0.0001
	spawnEntity(e, -10, 0, pred, 30, 3)

	prey := genome.NewRandom(testRNG(101))
	prey.Movement.Speed = 0
	prey.Movement.SenseRadius = 0
	prey.Behavior.Style = genome.StyleRandom
	prey.Energy.LossRate = 0.02
	prey.Energy.SizeFactor = 0.1
	prey.Reproduction.Rate = 0.0001
	spawnEntity(e, 10, 0, prey, 5, 1)

	if e.Len() != 2 {
		t.Fatalf("setup: Len = %d, want 2", e.Len())
	}

	resolved := false
	for i := 0; i < 30; i++ {
		e.Step()
		if e.Len() == 1 {
			resolved = true
			break
		}
	}
	if !resolved {
		t.Fatal("predation did not resolve within 30 steps")
	}

	s := e.Stats()
	if s.Eaten != 1 {
		t.Errorf("eaten = %d, want 1", s.Eaten)
	}
	if s.Deaths != 1 {
		t.Errorf("deaths = %d, want 1", s.Deaths)
	}

	// The survivor is the predator: larger, and holding the transferred
	// energy.
	recs := e.Snapshot(nil)
	if len(recs) != 1 {
		t.Fatalf("snapshot has %d records", len(recs))
	}
	if recs[0].Radius <= 1.2 {
		t.Errorf("survivor radius %v, expected the larger predator", recs[0].Radius)
	}
	if s.MeanEnergy <= 0 || s.MeanEnergy > float64(pred.MaxEnergy()) {
		t.Errorf("survivor energy %v outside (0, max]", s.MeanEnergy)
	}
}

func TestReproductionThreshold(t *testing.T) {
	cfg := emptyConfig()
	cfg.Reproduction.MinReproductionChance = 1

	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	g := genome.NewRandom(testRNG(200))
	g.Movement.Speed = 1
	g.Movement.SenseRadius = 0
	g.Behavior.Style = genome.StyleRandom
	g.Energy.Efficiency = 3 // max energy 300
	g.Energy.LossRate = 0.05
	g.Energy.SizeFactor = 0.5
	spawnEntity(e, 0, 0, g, 270, 2) // 0.9 of capacity, above the 0.8 gate

	grew := false
	for i := 0; i < 50; i++ {
		e.Step()
		if e.Len() == 2 {
			grew = true
			break
		}
	}
	if !grew {
		t.Fatal("population did not reach 2 within 50 steps")
	}
	if s := e.Stats(); s.Births != 1 {
		t.Errorf("births = %d, want 1", s.Births)
	}

	// The parent paid reproduction_energy_cost (70%) of its energy at the
	// split and the child received child_energy_factor (40%) of it, so the
	// smaller of the two energies is 0.75 of the larger.
	var energies []float64
	query := e.filter.Query()
	for query.Next() {
		_, _, en, _, _ := query.Get()
		energies = append(energies, float64(en.Value))
	}
	if len(energies) != 2 {
		t.Fatalf("got %d energies", len(energies))
	}
	lo, hi := energies[0], energies[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	if ratio := lo / hi; math.Abs(ratio-0.75) > 0.01 {
		t.Errorf("energy ratio = %v, want 0.75", ratio)
	}
}

func TestPopulationCapDropsSurplusBirths(t *testing.T) {
	cfg := emptyConfig()
	cfg.Population.InitialEntities = 10
	cfg.Population.MaxPopulation = 20
	cfg.Population.EntityScale = 1
	cfg.Population.NearbyLimit = 100 // keep the crowding gate out of the way
	cfg.Reproduction.MinReproductionChance = 1
	cfg.Reproduction.ReproductionEnergyThreshold = 0

	e, err := New(300, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for i := 0; i < 10; i++ {
		e.Step()
		if n := e.Len(); n > 20 {
			t.Fatalf("step %d: population %d exceeds cap 20", i+1, n)
		}
	}
	if s := e.Stats(); s.DroppedBirths == 0 {
		t.Error("expected surplus births to be dropped at the cap")
	}
}

func TestParameterBus(t *testing.T) {
	e, err := New(600, emptyConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.Set("no_such_knob", 1); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("unknown name: err = %v, want ErrUnknownParameter", err)
	}

	if err := e.Set(ParamMaxVelocity, 3.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Set(ParamReproThreshold, 0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// Updates stage until the next step boundary.
	if e.cfg.Physics.MaxVelocity != 2.0 {
		t.Error("update applied before the step boundary")
	}

	e.Step()
	if e.cfg.Physics.MaxVelocity != 3.5 {
		t.Errorf("max_velocity = %v, want 3.5", e.cfg.Physics.MaxVelocity)
	}
	if e.cfg.Reproduction.ReproductionEnergyThreshold != 0.5 {
		t.Errorf("repro_threshold = %v, want 0.5", e.cfg.Reproduction.ReproductionEnergyThreshold)
	}
	if e.params.MaxVelocity != 3.5 {
		t.Errorf("step params not rebuilt: %v", e.params.MaxVelocity)
	}

	// Out-of-range values clamp instead of erroring.
	if err := e.Set(ParamBounceFactor, 7); err != nil {
		t.Fatalf("Set out of range: %v", err)
	}
	e.Step()
	if e.cfg.Physics.VelocityBounceFactor != 1 {
		t.Errorf("bounce_factor = %v, want clamp to 1", e.cfg.Physics.VelocityBounceFactor)
	}
}

// seedUniformSquare fills a test engine with entities spread uniformly over
// the interior band, with reproduction effectively disabled.
func seedUniformSquare(e *Engine, count int, worldSize float32, rng *rand.Rand) {
	limit := worldSize/2 - 10
	for i := 0; i < count; i++ {
		g := genome.NewRandom(rng)
		g.Reproduction.Rate = 0.0001
		// Moderate metabolic traits so starvation does not empty the world
		// before the spatial properties can be measured.
		g.Energy.LossRate = 0.1
		g.Energy.SizeFactor = 0.5
		g.Energy.Efficiency = 1.5
		x := (rng.Float32()*2 - 1) * limit
		y := (rng.Float32()*2 - 1) * limit
		energy := 15 + rng.Float32()*60
		if energy > g.MaxEnergy() {
			energy = g.MaxEnergy()
		}
		pos := components.Position{X: x, Y: y}
		vel := components.Velocity{}
		en := components.Energy{Value: energy, Max: g.MaxEnergy()}
		body := components.Body{Radius: 2}
		org := components.Organism{Genome: g}
		e.mapper.NewEntity(&pos, &vel, &en, &body, &org)
	}
	e.publishSnapshot()
}

func TestSurvivorQuadrantSymmetry(t *testing.T) {
	cfg := emptyConfig()
	cfg.Population.MaxPopulation = 5000
	cfg.Population.EntityScale = 1
	cfg.Reproduction.MinReproductionChance = 0
	cfg.Reproduction.ReproductionEnergyThreshold = 1
	cfg.Reproduction.DeathChanceFactor = 0

	e, err := New(1000, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	seedUniformSquare(e, 2000, 1000, testRNG(300))

	for i := 0; i < 60; i++ {
		e.Step()
	}

	var quads [4]int
	recs := e.Snapshot(nil)
	for _, r := range recs {
		idx := 0
		if r.X >= 0 {
			idx |= 1
		}
		if r.Y >= 0 {
			idx |= 2
		}
		quads[idx]++
	}

	survivors := len(recs)
	if survivors < 400 {
		t.Fatalf("only %d survivors, setup too deadly for a quadrant test", survivors)
	}
	expected := float64(survivors) / 4

	chi2 := 0.0
	for q, n := range quads {
		diff := float64(n) - expected
		chi2 += diff * diff / expected
		if float64(n) > 1.3*expected {
			t.Errorf("quadrant %d holds %d survivors, expected around %.0f", q, n, expected)
		}
	}
	// Critical value for chi-square with 3 degrees of freedom at p=0.001.
	if chi2 > 16.27 {
		t.Errorf("quadrant chi-square %.2f indicates spatial bias (counts %v)", chi2, quads)
	}
}

func TestNoDirectionalDrift(t *testing.T) {
	cfg := emptyConfig()
	cfg.Population.MaxPopulation = 5000
	cfg.Population.EntityScale = 1
	cfg.Reproduction.MinReproductionChance = 0
	cfg.Reproduction.ReproductionEnergyThreshold = 1

	e, err := New(1000, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	seedUniformSquare(e, 1000, 1000, testRNG(301))

	for i := 0; i < 200; i++ {
		e.Step()

		if (i+1)%20 != 0 {
			continue
		}
		recs := e.Snapshot(nil)
		if len(recs) == 0 {
			t.Fatal("population collapsed")
		}
		var cx, cy float64
		for _, r := range recs {
			cx += float64(r.X)
			cy += float64(r.Y)
		}
		cx /= float64(len(recs))
		cy /= float64(len(recs))
		if math.Abs(cx) > 50 || math.Abs(cy) > 50 {
			t.Fatalf("step %d: centroid (%.1f, %.1f) drifted outside the 0.05*S box", i+1, cx, cy)
		}
	}
}

func TestInvariantsHoldOverRun(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 300
	cfg.Population.EntityScale = 1

	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	p := systems.NewParams(cfg)
	limit := float32(300) - p.BoundaryMargin

	for step := 0; step < 50; step++ {
		e.Step()

		if n := e.Len(); n > e.maxPopulation {
			t.Fatalf("step %d: population %d exceeds cap %d", step, n, e.maxPopulation)
		}

		query := e.filter.Query()
		for query.Next() {
			pos, vel, en, body, _ := query.Get()

			if pos.X < -limit || pos.X > limit || pos.Y < -limit || pos.Y > limit {
				t.Fatalf("step %d: position (%v, %v) outside the band", step, pos.X, pos.Y)
			}
			if en.Value < 0 || en.Value > en.Max {
				t.Fatalf("step %d: energy %v outside [0, %v]", step, en.Value, en.Max)
			}
			if body.Radius < p.MinRadius || body.Radius > p.MaxRadius {
				t.Fatalf("step %d: radius %v outside bounds", step, body.Radius)
			}
			speed := math.Hypot(float64(vel.X), float64(vel.Y))
			if speed > float64(p.MaxVelocity)*(1+1e-5) {
				t.Fatalf("step %d: speed %v exceeds max %v", step, speed, p.MaxVelocity)
			}
		}
	}
}

func TestStatsMatchPopulation(t *testing.T) {
	cfg := testConfig()
	cfg.Population.InitialEntities = 100
	e, err := New(600, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.Step()
	s := e.Stats()
	if s.TotalEntities != e.Len() {
		t.Errorf("stats total %d != Len %d", s.TotalEntities, e.Len())
	}
	if s.Step != e.StepIndex() {
		t.Errorf("stats step %d != StepIndex %d", s.Step, e.StepIndex())
	}
	if s.TotalEntities > 0 && (s.MeanSize <= 0 || s.MeanEnergy <= 0) {
		t.Errorf("means should be positive with a live population: %+v", s)
	}
}
