// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
// A Config is immutable for the duration of a run; the engine copies it on
// construction and runtime tuning goes through the engine's parameter bus.
type Config struct {
	Population   PopulationConfig   `yaml:"population"`
	Physics      PhysicsConfig      `yaml:"physics"`
	Energy       EnergyConfig       `yaml:"energy"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Sim          SimConfig          `yaml:"sim"`
}

// PopulationConfig holds population management parameters.
type PopulationConfig struct {
	EntityScale       float64 `yaml:"entity_scale"`        // Global population multiplier
	MaxPopulation     int     `yaml:"max_population"`      // Hard cap before scaling
	InitialEntities   int     `yaml:"initial_entities"`    // Seed count before scaling
	SpawnRadiusFactor float64 `yaml:"spawn_radius_factor"` // Seeding disk radius as fraction of half the world size
	NearbyLimit       int     `yaml:"nearby_limit"`        // Neighbor cap for sensing
}

// PhysicsConfig holds movement and world-geometry parameters.
type PhysicsConfig struct {
	MaxVelocity             float64 `yaml:"max_velocity"`
	MinRadius               float64 `yaml:"min_radius"`
	MaxRadius               float64 `yaml:"max_radius"`
	GridCellSize            float64 `yaml:"grid_cell_size"`
	BoundaryMargin          float64 `yaml:"boundary_margin"`
	InteractionRadiusOffset float64 `yaml:"interaction_radius_offset"`
	VelocityBounceFactor    float64 `yaml:"velocity_bounce_factor"`
	CenterPressureStrength  float64 `yaml:"center_pressure_strength"`
	PredationSizeRatio      float64 `yaml:"predation_size_ratio"` // Predator must be this many times larger
}

// EnergyConfig holds metabolic cost parameters.
type EnergyConfig struct {
	SizeEnergyCostFactor float64 `yaml:"size_energy_cost_factor"`
	MovementEnergyCost   float64 `yaml:"movement_energy_cost"`
}

// ReproductionConfig holds reproduction and culling parameters.
type ReproductionConfig struct {
	ReproductionEnergyThreshold float64 `yaml:"reproduction_energy_threshold"`
	ReproductionEnergyCost      float64 `yaml:"reproduction_energy_cost"`
	ChildEnergyFactor           float64 `yaml:"child_energy_factor"`
	ChildSpawnRadius            float64 `yaml:"child_spawn_radius"`
	PopulationDensityFactor     float64 `yaml:"population_density_factor"`
	MinReproductionChance       float64 `yaml:"min_reproduction_chance"`
	DeathChanceFactor           float64 `yaml:"death_chance_factor"`
}

// SimConfig holds run-level parameters.
type SimConfig struct {
	RunSeed uint64 `yaml:"run_seed"` // 0 = derive from OS time at construction
	Workers int    `yaml:"workers"`  // 0 = GOMAXPROCS
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg := &Config{}
	// The embedded defaults are part of the build; a parse failure here is a
	// programming error, not a runtime condition.
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: parsing embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

// Validate reports the first constraint violation, or nil.
func (c *Config) Validate() error {
	switch {
	case c.Population.EntityScale <= 0:
		return fmt.Errorf("population.entity_scale must be positive, got %v", c.Population.EntityScale)
	case c.Population.MaxPopulation < 0:
		return fmt.Errorf("population.max_population must be non-negative, got %v", c.Population.MaxPopulation)
	case c.Population.InitialEntities < 0:
		return fmt.Errorf("population.initial_entities must be non-negative, got %v", c.Population.InitialEntities)
	case c.Population.SpawnRadiusFactor <= 0 || c.Population.SpawnRadiusFactor > 0.5:
		return fmt.Errorf("population.spawn_radius_factor must be in (0, 0.5], got %v", c.Population.SpawnRadiusFactor)
	case c.Population.NearbyLimit <= 0:
		return fmt.Errorf("population.nearby_limit must be positive, got %v", c.Population.NearbyLimit)
	case c.Physics.MaxVelocity <= 0:
		return fmt.Errorf("physics.max_velocity must be positive, got %v", c.Physics.MaxVelocity)
	case c.Physics.MinRadius <= 0:
		return fmt.Errorf("physics.min_radius must be positive, got %v", c.Physics.MinRadius)
	case c.Physics.MaxRadius <= c.Physics.MinRadius:
		return fmt.Errorf("physics.max_radius (%v) must exceed min_radius (%v)", c.Physics.MaxRadius, c.Physics.MinRadius)
	case c.Physics.GridCellSize <= 0:
		return fmt.Errorf("physics.grid_cell_size must be positive, got %v", c.Physics.GridCellSize)
	case c.Physics.BoundaryMargin < 0:
		return fmt.Errorf("physics.boundary_margin must be non-negative, got %v", c.Physics.BoundaryMargin)
	case c.Physics.VelocityBounceFactor < 0 || c.Physics.VelocityBounceFactor > 1:
		return fmt.Errorf("physics.velocity_bounce_factor must be in [0, 1], got %v", c.Physics.VelocityBounceFactor)
	case c.Physics.PredationSizeRatio < 1:
		return fmt.Errorf("physics.predation_size_ratio must be >= 1, got %v", c.Physics.PredationSizeRatio)
	case c.Reproduction.ReproductionEnergyThreshold < 0 || c.Reproduction.ReproductionEnergyThreshold > 1:
		return fmt.Errorf("reproduction.reproduction_energy_threshold must be in [0, 1], got %v", c.Reproduction.ReproductionEnergyThreshold)
	case c.Reproduction.ReproductionEnergyCost < 0 || c.Reproduction.ReproductionEnergyCost > 1:
		return fmt.Errorf("reproduction.reproduction_energy_cost must be in [0, 1], got %v", c.Reproduction.ReproductionEnergyCost)
	case c.Reproduction.ChildEnergyFactor <= 0 || c.Reproduction.ChildEnergyFactor > 1:
		return fmt.Errorf("reproduction.child_energy_factor must be in (0, 1], got %v", c.Reproduction.ChildEnergyFactor)
	case c.Reproduction.ChildSpawnRadius < 0:
		return fmt.Errorf("reproduction.child_spawn_radius must be non-negative, got %v", c.Reproduction.ChildSpawnRadius)
	case c.Sim.Workers < 0:
		return fmt.Errorf("sim.workers must be non-negative, got %v", c.Sim.Workers)
	}
	return nil
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
