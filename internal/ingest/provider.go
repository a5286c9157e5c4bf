// Package ingest fetches tickets through the Jira client, builds
// collections from them and registers the results in the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/jira"
	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// PageSize is the number of issues requested per search call.
	PageSize = 100

	projectConcurrency = 4
)

var ErrEmptyQuery = errors.New("empty JQL query")

// Provider orchestrates data ingestion.
type Provider struct {
	client   jira.Client
	store    *store.Store
	baseURL  string
	cacheDir string
	opts     ticket.Options
}

// NewProvider wires a provider. An empty cacheDir disables snapshots.
func NewProvider(client jira.Client, st *store.Store, baseURL, cacheDir string, opts ticket.Options) *Provider {
	return &Provider{
		client:   client,
		store:    st,
		baseURL:  baseURL,
		cacheDir: cacheDir,
		opts:     opts,
	}
}

// Store returns the store results are registered in.
func (p *Provider) Store() *store.Store {
	return p.store
}

// fetch pages through a search. maxResults <= 0 fetches everything.
func (p *Provider) fetch(ctx context.Context, jql string, maxResults int) ([]ticket.Source, error) {
	var sources []ticket.Source
	for {
		size := PageSize
		if maxResults > 0 && maxResults-len(sources) < size {
			size = maxResults - len(sources)
		}
		if size <= 0 {
			break
		}

		resp, err := p.client.SearchIssues(ctx, jql, len(sources), size)
		if err != nil {
			return nil, fmt.Errorf("search failed at offset %d: %w", len(sources), err)
		}
		for _, dto := range resp.Issues {
			sources = append(sources, jira.MapIssue(dto, p.baseURL))
		}

		if len(resp.Issues) < size || (resp.Total > 0 && len(sources) >= resp.Total) {
			break
		}
	}
	return sources, nil
}

// PopulateFromJQL runs query, builds a collection labelled label and
// stores it, replacing any collection with the same label.
func (p *Provider) PopulateFromJQL(ctx context.Context, query string, maxResults int, label string) (*collection.Collection, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	sources, err := p.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	c := collection.FromSources(query, label, sources, p.opts)
	p.store.Put(c)
	log.Info().Str("label", c.Label()).Int("tickets", c.Len()).Msg("Collection populated")

	p.snapshot(c.Label())
	return c, nil
}

// ProjectIssues fetches every issue of one project. A project without
// issues yields an empty collection.
func (p *Provider) ProjectIssues(ctx context.Context, key string, maxResults int) (*collection.Project, error) {
	meta, err := p.client.GetProject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", key, err)
	}

	sources, err := p.fetch(ctx, fmt.Sprintf("project = %q", meta.Key), maxResults)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", key, err)
	}

	ts := collection.FromSources("", "", sources, p.opts).Tickets()
	return collection.NewProject(meta.Key, meta.Name, ts), nil
}

// PopulateProjects fetches the given projects concurrently and stores
// those that have at least one issue. The first error cancels the rest.
func (p *Provider) PopulateProjects(ctx context.Context, keys []string, maxResults int) ([]*collection.Project, error) {
	results := make([]*collection.Project, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(projectConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			proj, err := p.ProjectIssues(gctx, key, maxResults)
			if err != nil {
				return err
			}
			results[i] = proj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*collection.Project
	for _, proj := range results {
		if proj.Len() == 0 {
			log.Info().Str("project", proj.Key).Msg("Project has no issues, skipping")
			continue
		}
		p.store.PutProject(proj)
		out = append(out, proj)
	}
	return out, nil
}

func (p *Provider) snapshot(label string) {
	if p.cacheDir == "" {
		return
	}
	if err := p.store.Save(p.cacheDir, label); err != nil {
		log.Warn().Err(err).Str("label", label).Msg("Failed to save snapshot")
	}
}
