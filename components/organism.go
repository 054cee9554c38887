package components

import "github.com/pthm-cable/petri/genome"

// Energy is an entity's stored energy. Value stays in [0, Max]; zero means
// dead pending cull.
type Energy struct {
	Value float32
	Max   float32
}

// Alive reports whether the entity still counts as live for this step.
func (e Energy) Alive() bool {
	return e.Value > 0
}

// Organism carries the heritable state and the per-step action flag.
type Organism struct {
	Genome genome.Genome
	// Acted is set when the entity consumed prey this step; one action per
	// step.
	Acted bool
}
