package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"eng-metrics/cmd/mockgen/engine"
	"eng-metrics/internal/busday"
	"eng-metrics/internal/ticket"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./cache", "Output directory for the snapshot")
	label := flag.String("label", "mock", "Collection label of the snapshot")
	project := flag.String("project", "MOCK", "Project key of the generated tickets")
	count := flag.Int("count", 200, "Number of tickets to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Project:      *project,
		Seed:         *seed,
		Now:          time.Now().UTC(),
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	sources := engine.Generate(cfg)
	c, err := engine.Save(*outDir, *label, sources, ticket.Options{Unit: busday.Hours, Now: func() time.Time { return cfg.Now }})
	if err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %d tickets, %d resolved. Load with: eng-metrics serve --load %s\n", c.Len(), c.Resolved().Len(), c.Label())
}
