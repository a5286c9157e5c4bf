package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eng-metrics/internal/busday"
	"eng-metrics/internal/collection"
	"eng-metrics/internal/report"
	"eng-metrics/internal/ticket"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

var ErrNoProvider = errors.New("no Jira connection configured")

type PopulateInput struct {
	JQL        string `json:"jql" jsonschema:"the JQL query to run"`
	Label      string `json:"label,omitempty" jsonschema:"label to store the collection under, defaults to JQL"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of issues to fetch, 0 fetches all"`
}

type CollectionSummary struct {
	Label    string `json:"label"`
	Query    string `json:"query"`
	Tickets  int    `json:"tickets"`
	Resolved int    `json:"resolved"`
}

type ListCollectionsInput struct{}

type ListCollectionsOutput struct {
	Collections []CollectionSummary `json:"collections"`
}

type GetCollectionInput struct {
	Label        string   `json:"label" jsonschema:"label of a stored collection"`
	Types        []string `json:"types,omitempty" jsonschema:"issue types to keep, all when empty"`
	Fields       []string `json:"fields,omitempty" jsonschema:"fields to return, key and type are always included"`
	ResolvedOnly bool     `json:"resolved_only,omitempty" jsonschema:"only return resolved tickets"`
}

type LeadTimesInput struct {
	Label            string `json:"label" jsonschema:"label of a stored collection"`
	ResolutionStatus string `json:"resolution_status,omitempty" jsonschema:"status that marks a ticket as done"`
	Override         *bool  `json:"override,omitempty" jsonschema:"use the last entry into the resolution status instead of the resolution date, default false"`
}

type CycleTimesInput struct {
	Label            string `json:"label" jsonschema:"label of a stored collection"`
	BeginStatus      string `json:"begin_status,omitempty" jsonschema:"status that marks the start of work"`
	ResolutionStatus string `json:"resolution_status,omitempty" jsonschema:"status that marks a ticket as done"`
	Override         *bool  `json:"override,omitempty" jsonschema:"use the last entry into the resolution status instead of the resolution date, default true"`
}

type TicketMetric struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

type MetricsOutput struct {
	Label    string         `json:"label"`
	Unit     string         `json:"unit"`
	Measured int            `json:"measured"`
	Tickets  []TicketMetric `json:"tickets"`
}

type ExpandInput struct {
	Label    string   `json:"label" jsonschema:"label of a stored collection"`
	Statuses []string `json:"statuses,omitempty" jsonschema:"statuses to turn into columns, all when empty"`
}

type ExpandOutput struct {
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
}

type DurationInput struct {
	From string `json:"from" jsonschema:"start timestamp, RFC 3339 with offset"`
	To   string `json:"to" jsonschema:"end timestamp, RFC 3339 with offset"`
	Unit string `json:"unit,omitempty" jsonschema:"years, days, hours, minutes, seconds or composite, default hours"`
}

type DurationOutput struct {
	Unit         string `json:"unit"`
	Value        string `json:"value"`
	BusinessDays int    `json:"business_days"`
	Description  string `json:"description"`
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "populate_from_jql",
		Description: "Fetch the tickets matching a JQL query with their status history, compute lead and cycle times in business time and store them as a labelled collection. Call 'get_collection' next to read the results.",
	}, s.handlePopulate)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "list_collections",
		Description: "List the stored collections with their query and ticket counts.",
	}, s.handleListCollections)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_collection",
		Description: "Return the tickets of a stored collection. When types or fields are given a filtered copy is returned and the stored collection is left untouched.",
	}, s.handleGetCollection)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "calculate_lead_times",
		Description: "Recompute the lead time (creation to resolution, weekends excluded) of every ticket in a collection. Tickets without a resolution report -1.",
	}, s.handleLeadTimes)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "calculate_cycle_times",
		Description: "Recompute the cycle time (last entry into the begin status to resolution, weekends excluded) of every ticket in a collection. Tickets without a resolution report -1.",
	}, s.handleCycleTimes)

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "expand_flow_logs",
		Description: "Add one column per workflow status holding the total business time each ticket spent in it.",
	}, s.handleExpand)

	durationSchema, err := jsonschema.For[DurationInput](nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to derive business_duration schema")
	}
	tool := &mcpsdk.Tool{
		Name:        "business_duration",
		Description: "Measure the working time between two timestamps, excluding Saturdays and Sundays. No holiday calendar is applied.",
	}
	if durationSchema != nil {
		tool.InputSchema = durationSchema
	}
	mcpsdk.AddTool(s.sdk, tool, s.handleDuration)
}

func (s *Server) handlePopulate(ctx context.Context, req *mcpsdk.CallToolRequest, in PopulateInput) (*mcpsdk.CallToolResult, CollectionSummary, error) {
	if s.provider == nil {
		return nil, CollectionSummary{}, ErrNoProvider
	}
	c, err := s.provider.PopulateFromJQL(ctx, in.JQL, in.MaxResults, in.Label)
	if err != nil {
		return nil, CollectionSummary{}, err
	}
	return nil, summarize(c), nil
}

func (s *Server) handleListCollections(ctx context.Context, req *mcpsdk.CallToolRequest, in ListCollectionsInput) (*mcpsdk.CallToolResult, ListCollectionsOutput, error) {
	out := ListCollectionsOutput{Collections: []CollectionSummary{}}
	for _, label := range s.store.Labels() {
		_ = s.store.View(label, func(c *collection.Collection) error {
			out.Collections = append(out.Collections, summarize(c))
			return nil
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetCollection(ctx context.Context, req *mcpsdk.CallToolRequest, in GetCollectionInput) (*mcpsdk.CallToolResult, report.Document, error) {
	var doc report.Document
	err := s.store.View(in.Label, func(c *collection.Collection) error {
		if in.ResolvedOnly {
			c = c.Resolved()
		}
		if len(in.Types) > 0 || len(in.Fields) > 0 {
			c = c.Filter(in.Types, in.Fields)
		}
		doc = report.NewDocument(c)
		return nil
	})
	return nil, doc, err
}

func (s *Server) handleLeadTimes(ctx context.Context, req *mcpsdk.CallToolRequest, in LeadTimesInput) (*mcpsdk.CallToolResult, MetricsOutput, error) {
	status := orDefault(in.ResolutionStatus, s.opts.ResolutionStatus)

	var out MetricsOutput
	err := s.store.Update(in.Label, func(c *collection.Collection) error {
		c.CalculateLeadTimes(status, boolOr(in.Override, false))
		out = s.metrics(c, func(t *ticket.Ticket) int64 { return t.LeadTime })
		return nil
	})
	return nil, out, err
}

func (s *Server) handleCycleTimes(ctx context.Context, req *mcpsdk.CallToolRequest, in CycleTimesInput) (*mcpsdk.CallToolResult, MetricsOutput, error) {
	begin := orDefault(in.BeginStatus, s.opts.BeginStatus)
	resolution := orDefault(in.ResolutionStatus, s.opts.ResolutionStatus)

	var out MetricsOutput
	err := s.store.Update(in.Label, func(c *collection.Collection) error {
		c.CalculateCycleTimes(begin, resolution, boolOr(in.Override, true))
		out = s.metrics(c, func(t *ticket.Ticket) int64 { return t.CycleTime })
		return nil
	})
	return nil, out, err
}

func (s *Server) handleExpand(ctx context.Context, req *mcpsdk.CallToolRequest, in ExpandInput) (*mcpsdk.CallToolResult, ExpandOutput, error) {
	var out ExpandOutput
	err := s.store.Update(in.Label, func(c *collection.Collection) error {
		c.ExpandFlowLogs(in.Statuses)
		out = ExpandOutput{Label: c.Label(), Columns: report.Columns(c)}
		return nil
	})
	return nil, out, err
}

func (s *Server) handleDuration(ctx context.Context, req *mcpsdk.CallToolRequest, in DurationInput) (*mcpsdk.CallToolResult, DurationOutput, error) {
	from, err := time.Parse(time.RFC3339, in.From)
	if err != nil {
		return nil, DurationOutput{}, fmt.Errorf("invalid from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, in.To)
	if err != nil {
		return nil, DurationOutput{}, fmt.Errorf("invalid to: %w", err)
	}
	unit, err := busday.ParseUnit(orDefault(in.Unit, string(busday.Hours)))
	if err != nil {
		return nil, DurationOutput{}, err
	}

	value, err := busday.Format(from, to, unit)
	if err != nil {
		return nil, DurationOutput{}, err
	}
	desc, err := busday.Describe(from, to)
	if err != nil {
		return nil, DurationOutput{}, err
	}
	return nil, DurationOutput{
		Unit:         string(unit),
		Value:        value,
		BusinessDays: busday.BusinessDays(from, to),
		Description:  desc,
	}, nil
}

func (s *Server) metrics(c *collection.Collection, value func(*ticket.Ticket) int64) MetricsOutput {
	out := MetricsOutput{Label: c.Label(), Unit: string(s.unit(c)), Tickets: []TicketMetric{}}
	for _, t := range c.Tickets() {
		v := value(t)
		if v >= 0 {
			out.Measured++
		}
		out.Tickets = append(out.Tickets, TicketMetric{Key: t.Key, Type: t.Type, Value: v})
	}
	return out
}

func (s *Server) unit(c *collection.Collection) busday.Unit {
	if ts := c.Tickets(); len(ts) > 0 {
		return ts[0].Options().Unit
	}
	if s.opts.Unit != "" {
		return s.opts.Unit
	}
	return busday.Hours
}

func summarize(c *collection.Collection) CollectionSummary {
	return CollectionSummary{
		Label:    c.Label(),
		Query:    c.Query(),
		Tickets:  c.Len(),
		Resolved: c.Resolved().Len(),
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
