package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Project      string
	Seed         int64
	Now          time.Time
}

// Workflow is the status sequence every generated ticket walks through.
var Workflow = []string{"Open", "In Progress", "Review", "Done"}

var issueTypes = []string{"Story", "Story", "Story", "Bug", "Task"}

// Generate produces Count tickets arriving one calendar day apart, the last
// one arriving at Now. Each ticket's total duration in days is sampled per
// scenario; tickets still inside that duration at Now are work in progress.
func Generate(cfg GeneratorConfig) []ticket.Source {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	if cfg.Project == "" {
		cfg.Project = "MOCK"
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	sources := make([]ticket.Source, 0, cfg.Count)
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("%s-%d", cfg.Project, i+1)
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		k, lambda := 2.5, 9.5
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 12.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio)
			lambda = 9.5 + (2.5 * ratio)
		}

		var totalDays float64
		if cfg.Distribution == "weibull" {
			totalDays = weibullSample(rng, k, lambda)
		} else {
			totalDays = 6.0 + rng.Float64()*5.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				totalDays += 10 + rng.Float64()*15
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				totalDays *= 2.0
			}
		}

		src := ticket.Source{
			Ticket: ticket.RawTicket{
				ID:          fmt.Sprint(10000 + i),
				Key:         key,
				Type:        issueTypes[rng.Intn(len(issueTypes))],
				Summary:     fmt.Sprintf("Generated ticket %d", i+1),
				Priority:    "Medium",
				Status:      Workflow[0],
				Created:     arrival,
				Updated:     arrival,
				ProjectKey:  cfg.Project,
				ProjectName: cfg.Project,
			},
		}

		// Status changes at 15%, 70% and 100% of the total duration.
		for j, at := range []float64{0.15, 0.70, 1.0} {
			ts := arrival.Add(time.Duration(totalDays * at * 24 * float64(time.Hour)))
			if !ts.Before(cfg.Now) {
				break
			}
			status := Workflow[j+1]
			src.History = append(src.History, ticket.HistoryEvent{Timestamp: ts, Field: "status", NewValue: status})
			src.Ticket.Status = status
			src.Ticket.Updated = ts
			if status == "Done" {
				resolved := ts
				src.Ticket.Resolution = "Fixed"
				src.Ticket.ResolutionDate = &resolved
			}
		}
		sources = append(sources, src)
	}
	return sources
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes sources as the snapshot of label under outDir, in the format
// read by "eng-metrics serve --load".
func Save(outDir, label string, sources []ticket.Source, opts ticket.Options) (*collection.Collection, error) {
	st := store.New()
	c := collection.FromSources(fmt.Sprintf("generated %d tickets", len(sources)), label, sources, opts)
	st.Put(c)
	if err := st.Save(outDir, c.Label()); err != nil {
		return nil, err
	}
	return c, nil
}
