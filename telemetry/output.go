package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/pthm-cable/petri/config"
)

// record is one CSV row: the stats of a step tagged with the run identity.
type record struct {
	RunID string `csv:"run_id"`
	Stats
}

// OutputManager writes structured run output: a stats CSV and the effective
// configuration. Every row carries the run's UUID so rows from several runs
// can share a directory.
type OutputManager struct {
	dir   string
	runID string

	statsFile     *os.File
	headerWritten bool
}

// NewOutputManager creates the output directory and opens stats.csv.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, runID: uuid.NewString()}

	f, err := os.Create(filepath.Join(dir, "stats.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}
	om.statsFile = f

	return om, nil
}

// RunID returns the identifier stamped on this run's rows.
func (om *OutputManager) RunID() string {
	if om == nil {
		return ""
	}
	return om.runID
}

// WriteConfig saves the effective configuration as YAML next to the CSV.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStats appends one stats row to stats.csv.
func (om *OutputManager) WriteStats(s Stats) error {
	if om == nil {
		return nil
	}

	rows := []record{{RunID: om.runID, Stats: s}}
	if !om.headerWritten {
		if err := gocsv.Marshal(rows, om.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, om.statsFile); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// Close flushes and closes the output files.
func (om *OutputManager) Close() error {
	if om == nil || om.statsFile == nil {
		return nil
	}
	return om.statsFile.Close()
}
