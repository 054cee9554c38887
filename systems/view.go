package systems

import (
	"github.com/pthm-cable/petri/components"
	"github.com/pthm-cable/petri/genome"
)

// EntityView is the read-only per-row state captured before the parallel
// phase. Views are stable for the whole step; all sensing and scoring reads
// go through them, never through live component storage.
type EntityView struct {
	Pos    components.Position
	Vel    components.Velocity
	Energy components.Energy
	Radius float32
	Genome *genome.Genome
}
