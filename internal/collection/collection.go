// Package collection groups the tickets returned by one query and applies
// bulk metric operations to them.
package collection

import (
	"slices"

	"eng-metrics/internal/ticket"

	"github.com/rs/zerolog/log"
)

// DefaultLabel names collections created without an explicit label.
const DefaultLabel = "JQL"

// FilteredSuffix is appended to the label of every filtered collection.
const FilteredSuffix = "_filtered"

// Collection is an ordered set of tickets sharing a query and a label. It
// is not safe for concurrent mutation; callers sharing a collection must
// serialise access.
type Collection struct {
	query   string
	label   string
	tickets []*ticket.Ticket
}

// New creates a collection. The tickets slice is copied; the tickets
// themselves are not.
func New(query, label string, tickets []*ticket.Ticket) *Collection {
	if label == "" {
		label = DefaultLabel
	}
	ts := make([]*ticket.Ticket, 0, len(tickets))
	ts = append(ts, tickets...)
	return &Collection{query: query, label: label, tickets: ts}
}

// FromSources builds one ticket per source with the given options.
func FromSources(query, label string, sources []ticket.Source, opts ticket.Options) *Collection {
	ts := make([]*ticket.Ticket, 0, len(sources))
	for _, src := range sources {
		ts = append(ts, ticket.New(src, opts))
	}
	return New(query, label, ts)
}

func (c *Collection) Query() string { return c.query }
func (c *Collection) Label() string { return c.label }
func (c *Collection) Len() int      { return len(c.tickets) }

// Tickets returns the collection's tickets in order.
func (c *Collection) Tickets() []*ticket.Ticket {
	return slices.Clone(c.tickets)
}

// Ticket looks a ticket up by key.
func (c *Collection) Ticket(key string) (*ticket.Ticket, bool) {
	for _, t := range c.tickets {
		if t.Key == key {
			return t, true
		}
	}
	return nil, false
}

// Sources returns the raw data of every ticket, for persistence.
func (c *Collection) Sources() []ticket.Source {
	out := make([]ticket.Source, len(c.tickets))
	for i, t := range c.tickets {
		out[i] = t.Source()
	}
	return out
}

// Resolved returns a view of the tickets that carry a resolution or a
// lead time. The view shares tickets with c.
func (c *Collection) Resolved() *Collection {
	var ts []*ticket.Ticket
	for _, t := range c.tickets {
		if t.IsResolved() {
			ts = append(ts, t)
		}
	}
	return New(c.query, c.label, ts)
}

// CalculateLeadTimes recomputes the lead time of every ticket in place.
func (c *Collection) CalculateLeadTimes(resolutionStatus string, override bool) {
	for _, t := range c.tickets {
		t.CalculateLeadTime(resolutionStatus, override)
	}
	log.Debug().Str("label", c.label).Int("tickets", len(c.tickets)).Bool("override", override).Msg("Recomputed lead times")
}

// CalculateCycleTimes recomputes the cycle time of every ticket in place.
func (c *Collection) CalculateCycleTimes(beginStatus, resolutionStatus string, override bool) {
	for _, t := range c.tickets {
		t.CalculateCycleTime(beginStatus, resolutionStatus, override)
	}
	log.Debug().Str("label", c.label).Int("tickets", len(c.tickets)).Bool("override", override).Msg("Recomputed cycle times")
}

// ExpandFlowLogs adds per-status duration columns to every ticket. A nil
// or empty allow list expands every status. The widening cannot be undone
// other than by filtering into a new collection.
func (c *Collection) ExpandFlowLogs(statuses []string) {
	for _, t := range c.tickets {
		t.ExpandFlowLog(statuses)
	}
}

// Filter returns a new collection of independently rebuilt tickets. Types
// restricts the ticket types kept; fields selects the visible fields and
// defaults to the first ticket's field set.
func (c *Collection) Filter(types, fields []string) *Collection {
	if len(fields) == 0 && len(c.tickets) > 0 {
		fields = c.tickets[0].FieldNames()
	}

	ts := make([]*ticket.Ticket, 0, len(c.tickets))
	for _, t := range c.tickets {
		if len(types) > 0 && !slices.Contains(types, t.Type) {
			continue
		}
		ts = append(ts, t.FilteredCopy(fields))
	}
	return New(c.query, c.label+FilteredSuffix, ts)
}

// Project is a collection holding every ticket of one tracker project.
type Project struct {
	*Collection
	Key  string
	Name string
}

// NewProject labels the collection with the project name.
func NewProject(key, name string, tickets []*ticket.Ticket) *Project {
	label := name
	if label == "" {
		label = key
	}
	return &Project{
		Collection: New("project = "+key, label, tickets),
		Key:        key,
		Name:       name,
	}
}
