// Package telemetry computes aggregate statistics over the live population
// and writes periodic CSV records for offline analysis.
package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// Stats holds the derived aggregates published by the engine. Counters are
// cumulative since construction or the last reset.
type Stats struct {
	TotalEntities int     `csv:"total"`
	MeanSpeed     float64 `csv:"mean_speed"`
	MeanSize      float64 `csv:"mean_size"`
	MeanEnergy    float64 `csv:"mean_energy"`
	Step          uint64  `csv:"step"`

	Births        uint64 `csv:"births"`
	Deaths        uint64 `csv:"deaths"`
	Eaten         uint64 `csv:"eaten"`
	DroppedBirths uint64 `csv:"dropped_births"` // births lost to the population cap
}

// Compute derives aggregates from parallel per-entity value slices. Slices
// must have equal length; an empty population yields zero means.
func Compute(step uint64, speeds, sizes, energies []float64) Stats {
	s := Stats{
		TotalEntities: len(speeds),
		Step:          step,
	}
	if len(speeds) == 0 {
		return s
	}
	s.MeanSpeed = stat.Mean(speeds, nil)
	s.MeanSize = stat.Mean(sizes, nil)
	s.MeanEnergy = stat.Mean(energies, nil)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("step", s.Step),
		slog.Int("total", s.TotalEntities),
		slog.Float64("mean_speed", s.MeanSpeed),
		slog.Float64("mean_size", s.MeanSize),
		slog.Float64("mean_energy", s.MeanEnergy),
		slog.Uint64("births", s.Births),
		slog.Uint64("deaths", s.Deaths),
		slog.Uint64("eaten", s.Eaten),
		slog.Uint64("dropped_births", s.DroppedBirths),
	)
}
