// Command sim runs a headless combat simulation for a fixed number of
// ticks: load config/level/agent descriptors, build a Driver, tick it,
// and report progress.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/combatcore/config"
	"github.com/pthm-cable/combatcore/game"
)

var (
	configPath  = flag.String("config", "", "Config YAML file (empty = embedded defaults)")
	levelPath   = flag.String("level", "", "Level descriptor YAML file (required)")
	agentsPath  = flag.String("agents", "", "Agent config table YAML file (required)")
	outputDir   = flag.String("output", "", "Telemetry output directory (empty = telemetry disabled)")
	maxTicks    = flag.Int("max-ticks", 3600, "Stop after N ticks (0 = run forever)")
	logInterval = flag.Duration("log-interval", 5*time.Second, "Progress log cadence")
)

func main() {
	flag.Parse()

	if *levelPath == "" || *agentsPath == "" {
		fmt.Fprintln(os.Stderr, "sim: -level and -agents are required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	desc, err := config.LoadLevelDescriptor(*levelPath)
	if err != nil {
		slog.Error("failed to load level descriptor", "error", err)
		os.Exit(1)
	}
	agents, err := config.LoadAgentConfigTable(*agentsPath)
	if err != nil {
		slog.Error("failed to load agent config table", "error", err)
		os.Exit(1)
	}

	driver := game.NewDriver(cfg, nil, *outputDir)
	if err := driver.LoadLevel(desc, agents); err != nil {
		slog.Error("failed to load level", "error", err)
		os.Exit(1)
	}

	slog.Info("starting headless simulation", "level", desc.Name, "max_ticks", *maxTicks)

	startTime := time.Now()
	lastReport := startTime
	var tick int64
	var totalEvents int

	for *maxTicks == 0 || int(tick) < *maxTicks {
		events := driver.Tick()
		totalEvents += len(events)
		tick++

		if time.Since(lastReport) >= *logInterval {
			elapsed := time.Since(startTime)
			slog.Info("progress",
				"tick", tick,
				"ticks_per_sec", fmt.Sprintf("%.0f", float64(tick)/elapsed.Seconds()),
				"elapsed", elapsed.Round(time.Second))
			lastReport = time.Now()
		}
	}

	elapsed := time.Since(startTime)
	slog.Info("simulation complete",
		"total_ticks", tick,
		"total_events", totalEvents,
		"elapsed", elapsed.Round(time.Millisecond),
		"avg_ticks_per_sec", fmt.Sprintf("%.0f", float64(tick)/elapsed.Seconds()))
}
