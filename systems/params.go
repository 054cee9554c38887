// Package systems provides the stateless per-step logic of the simulation:
// spatial indexing, movement, predation, energetics, reproduction, and
// boundary resolution.
package systems

import "github.com/pthm-cable/petri/config"

// Params is the float32 working copy of the configuration used inside the
// step. The engine rebuilds it when the parameter bus applies an update.
type Params struct {
	MaxVelocity             float32
	MinRadius               float32
	MaxRadius               float32
	GridCellSize            float32
	BoundaryMargin          float32
	InteractionRadiusOffset float32
	VelocityBounceFactor    float32
	CenterPressureStrength  float32
	PredationSizeRatio      float32

	SizeEnergyCostFactor float32
	MovementEnergyCost   float32

	ReproductionEnergyThreshold float32
	ReproductionEnergyCost      float32
	ChildEnergyFactor           float32
	ChildSpawnRadius            float32
	PopulationDensityFactor     float32
	MinReproductionChance       float32
	DeathChanceFactor           float32

	NearbyLimit int
}

// NewParams derives the working copy from a validated config.
func NewParams(cfg *config.Config) Params {
	return Params{
		MaxVelocity:             float32(cfg.Physics.MaxVelocity),
		MinRadius:               float32(cfg.Physics.MinRadius),
		MaxRadius:               float32(cfg.Physics.MaxRadius),
		GridCellSize:            float32(cfg.Physics.GridCellSize),
		BoundaryMargin:          float32(cfg.Physics.BoundaryMargin),
		InteractionRadiusOffset: float32(cfg.Physics.InteractionRadiusOffset),
		VelocityBounceFactor:    float32(cfg.Physics.VelocityBounceFactor),
		CenterPressureStrength:  float32(cfg.Physics.CenterPressureStrength),
		PredationSizeRatio:      float32(cfg.Physics.PredationSizeRatio),

		SizeEnergyCostFactor: float32(cfg.Energy.SizeEnergyCostFactor),
		MovementEnergyCost:   float32(cfg.Energy.MovementEnergyCost),

		ReproductionEnergyThreshold: float32(cfg.Reproduction.ReproductionEnergyThreshold),
		ReproductionEnergyCost:      float32(cfg.Reproduction.ReproductionEnergyCost),
		ChildEnergyFactor:           float32(cfg.Reproduction.ChildEnergyFactor),
		ChildSpawnRadius:            float32(cfg.Reproduction.ChildSpawnRadius),
		PopulationDensityFactor:     float32(cfg.Reproduction.PopulationDensityFactor),
		MinReproductionChance:       float32(cfg.Reproduction.MinReproductionChance),
		DeathChanceFactor:           float32(cfg.Reproduction.DeathChanceFactor),

		NearbyLimit: cfg.Population.NearbyLimit,
	}
}
