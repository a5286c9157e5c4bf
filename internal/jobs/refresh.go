// Package jobs re-populates configured collections on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/config"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single refresh run.
const DefaultTimeout = 10 * time.Minute

type populator interface {
	PopulateFromJQL(ctx context.Context, query string, maxResults int, label string) (*collection.Collection, error)
}

// Refresher runs every configured query on a schedule. Failures are logged
// and retried at the next tick.
type Refresher struct {
	queries    []config.NamedQuery
	provider   populator
	maxResults int
	timeout    time.Duration
	c          *cron.Cron

	running sync.Mutex
}

// NewRefresher parses spec (five fields: minute hour dom month dow) and
// registers the refresh. Start must be called to begin ticking.
func NewRefresher(spec string, queries []config.NamedQuery, provider populator, maxResults int) (*Refresher, error) {
	c := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	r := &Refresher{
		queries:    queries,
		provider:   provider,
		maxResults: maxResults,
		timeout:    DefaultTimeout,
		c:          c,
	}
	if _, err := c.AddFunc(spec, r.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

func (r *Refresher) Start() { r.c.Start() }

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.c.Stop().Done()
}

func (r *Refresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.RunOnce(ctx)
}

// RunOnce refreshes every query in order and returns the number that
// succeeded. A run that overlaps a previous one is skipped.
func (r *Refresher) RunOnce(ctx context.Context) int {
	if !r.running.TryLock() {
		log.Info().Msg("Refresh already running, skipping")
		return 0
	}
	defer r.running.Unlock()

	ok := 0
	for _, q := range r.queries {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Refresh interrupted")
			break
		}
		start := time.Now()
		c, err := r.provider.PopulateFromJQL(ctx, q.JQL, r.maxResults, q.Label)
		if err != nil {
			log.Error().Err(err).Str("label", q.Label).Msg("Refresh failed")
			continue
		}
		ok++
		log.Info().
			Str("label", q.Label).
			Int("tickets", c.Len()).
			Dur("elapsed", time.Since(start)).
			Msg("Refreshed collection")
	}
	return ok
}
