// Command petri runs the simulation engine headless: it advances a configured
// number of steps, logs periodic statistics, and optionally writes CSV
// telemetry for offline analysis.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/petri/config"
	"github.com/pthm-cable/petri/engine"
	"github.com/pthm-cable/petri/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (empty = embedded defaults)")
		worldSize  = flag.Float64("world", 1000, "world side length")
		steps      = flag.Int("steps", 1000, "number of steps to run")
		seed       = flag.Uint64("seed", 0, "run seed (0 = derive from time)")
		workers    = flag.Int("workers", 0, "worker goroutines (0 = GOMAXPROCS)")
		outDir     = flag.String("out", "", "telemetry output directory (empty = disabled)")
		logEvery   = flag.Int("log-every", 100, "steps between stats logs")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading config", "err", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Sim.RunSeed = *seed
	}
	if *workers != 0 {
		cfg.Sim.Workers = *workers
	}

	eng, err := engine.New(*worldSize, cfg)
	if err != nil {
		log.Error("constructing engine", "err", err)
		os.Exit(1)
	}
	defer eng.Close()

	out, err := telemetry.NewOutputManager(*outDir)
	if err != nil {
		log.Error("opening telemetry output", "err", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		log.Error("writing config", "err", err)
	}
	if id := out.RunID(); id != "" {
		log.Info("telemetry enabled", "run_id", id, "dir", *outDir)
	}

	log.Info("starting run",
		"world", *worldSize,
		"steps", *steps,
		"initial", eng.Len(),
	)

	for i := 0; i < *steps; i++ {
		eng.Step()

		if *logEvery > 0 && (i+1)%*logEvery == 0 {
			stats := eng.Stats()
			log.Info("progress", "stats", stats)
			if err := out.WriteStats(stats); err != nil {
				log.Error("writing stats", "err", err)
			}
		}
	}

	final := eng.Stats()
	log.Info("run complete", "stats", final)
	if err := out.WriteStats(final); err != nil {
		log.Error("writing stats", "err", err)
	}
}
