package telemetry

// Collector accumulates lifecycle events across steps. The engine owns one
// and folds its counts into every Stats record. Not safe for concurrent use;
// all recording happens in the serial commit phase.
type Collector struct {
	births        uint64
	deaths        uint64
	eaten         uint64
	droppedBirths uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordBirth counts a committed birth.
func (c *Collector) RecordBirth() { c.births++ }

// RecordDeath counts any death: starvation, culling, or consumption.
func (c *Collector) RecordDeath() { c.deaths++ }

// RecordEaten counts a death by consumption (also counted as a death).
func (c *Collector) RecordEaten() { c.eaten++ }

// RecordDroppedBirth counts a birth discarded at the population cap.
func (c *Collector) RecordDroppedBirth() { c.droppedBirths++ }

// Reset zeroes all counters.
func (c *Collector) Reset() { *c = Collector{} }

// FillStats copies the counters into a stats record.
func (c *Collector) FillStats(s *Stats) {
	s.Births = c.births
	s.Deaths = c.deaths
	s.Eaten = c.eaten
	s.DroppedBirths = c.droppedBirths
}
