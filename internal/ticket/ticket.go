// Package ticket builds enriched ticket records from raw tracker payloads
// and computes their lead and cycle times.
package ticket

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"eng-metrics/internal/busday"
	"eng-metrics/internal/flowlog"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBeginStatus      = "In Progress"
	DefaultResolutionStatus = "Done"

	// CreatedState is the synthetic first entry of every flow log.
	CreatedState = "Created"

	// Unresolved marks a lead or cycle time that cannot be computed.
	Unresolved int64 = -1
)

// Options controls how durations are measured.
type Options struct {
	Unit             busday.Unit
	BeginStatus      string
	ResolutionStatus string
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Unit == "" || o.Unit == busday.Composite {
		o.Unit = busday.Hours
	}
	if o.BeginStatus == "" {
		o.BeginStatus = DefaultBeginStatus
	}
	if o.ResolutionStatus == "" {
		o.ResolutionStatus = DefaultResolutionStatus
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Ticket is the enriched record of one work item.
type Ticket struct {
	ID              string
	Key             string
	URL             string
	Type            string
	Summary         string
	Description     string
	Labels          []string
	Priority        string
	Status          string
	AssigneeName    string
	AssigneeEmail   string
	LastComment     string
	LastCommentDate *time.Time
	Created         time.Time
	Updated         time.Time
	Resolution      string
	ResolutionDate  *time.Time
	FixVersion      string
	Project         string
	ProjectName     string
	Parent          string
	EpicLink        string
	EpicName        string
	IssueLinks      []string

	LeadTime  int64
	CycleTime int64

	// Extra holds per-status duration columns added by ExpandFlowLog.
	Extra map[string]int64

	extraOrder []string
	visible    []string
	flow       *flowlog.FlowLog
	src        Source
	opts       Options
	rejected   []error
}

// New builds a ticket from src. The flow log is reconstructed from the
// status history and both metrics are computed with the configured
// statuses, without override.
func New(src Source, opts Options) *Ticket {
	opts = opts.withDefaults()
	src = src.Clone()
	raw := src.Ticket

	t := &Ticket{
		ID:          raw.ID,
		Key:         raw.Key,
		URL:         raw.URL,
		Type:        raw.Type,
		Summary:     raw.Summary,
		Description: raw.Description,
		Labels:      slices.Clone(raw.Labels),
		Priority:    raw.Priority,
		Status:      raw.Status,
		Created:     raw.Created,
		Updated:     raw.Updated,
		Resolution:  raw.Resolution,
		FixVersion:  raw.FixVersion,
		Project:     raw.ProjectKey,
		ProjectName: raw.ProjectName,
		Parent:      raw.ParentKey,
		EpicLink:    raw.EpicLink,
		IssueLinks:  slices.Clone(raw.IssueLinks),
		LeadTime:    Unresolved,
		CycleTime:   Unresolved,
		Extra:       make(map[string]int64),
		visible:     DefaultFields(),
		src:         src,
		opts:        opts,
	}
	if raw.ResolutionDate != nil {
		d := *raw.ResolutionDate
		t.ResolutionDate = &d
	}
	if raw.Assignee != nil {
		t.AssigneeName = raw.Assignee.Name
		t.AssigneeEmail = raw.Assignee.Email
	}
	if raw.ParentKey != "" {
		t.EpicLink = raw.ParentKey
		t.EpicName = raw.ParentSummary
	}
	if c, ok := latestComment(raw.Comments); ok {
		t.LastComment = c.Body
		at := c.Created
		t.LastCommentDate = &at
	}

	t.buildFlowLog(src.History)
	t.CalculateLeadTime(opts.ResolutionStatus, false)
	t.CalculateCycleTime(opts.BeginStatus, opts.ResolutionStatus, false)
	return t
}

func latestComment(comments []Comment) (Comment, bool) {
	if len(comments) == 0 {
		return Comment{}, false
	}
	latest := comments[0]
	for _, c := range comments[1:] {
		if !c.Created.Before(latest.Created) {
			latest = c
		}
	}
	return latest, true
}

// buildFlowLog seeds the log with the creation event and replays status
// changes in chronological order, closing each entry when the next one
// arrives. The last entry is closed against the current time. Events the
// log rejects are recorded and skipped.
func (t *Ticket) buildFlowLog(history []HistoryEvent) {
	t.flow = flowlog.New()

	events := make([]HistoryEvent, 0, len(history))
	for _, h := range history {
		if strings.EqualFold(strings.TrimSpace(h.Field), "status") {
			events = append(events, h)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	anchor := t.anchor(events)

	prevSeq := -1
	var prevAt time.Time
	enter := func(at time.Time, state string) {
		seq, err := t.flow.Append(flowlog.StatusEvent{EnteredAt: at, State: state})
		if err != nil {
			t.rejected = append(t.rejected, err)
			log.Warn().Err(err).Str("ticket", t.Key).Msg("Rejected status event")
			return
		}
		if prevSeq >= 0 {
			t.closeEntry(prevSeq, prevAt, at)
		}
		prevSeq, prevAt = seq, at
	}

	enter(anchor, CreatedState)
	for _, e := range events {
		at := e.Timestamp
		// Changes dated before creation (clock skew, imports) are moved
		// onto the creation instant so that Created stays first.
		if !at.IsZero() && !anchor.IsZero() && at.Before(anchor) {
			at = anchor
		}
		enter(at, e.NewValue)
	}
	if prevSeq >= 0 {
		t.closeEntry(prevSeq, prevAt, t.opts.Now().In(prevAt.Location()))
	}
}

// anchor is the instant the Created entry starts at: the creation date,
// else the earliest valid status change, else the last update.
func (t *Ticket) anchor(sorted []HistoryEvent) time.Time {
	if !t.Created.IsZero() {
		return t.Created
	}
	for _, e := range sorted {
		if !e.Timestamp.IsZero() {
			log.Warn().Str("ticket", t.Key).Msg("Missing creation date, anchoring flow log on first status change")
			return e.Timestamp
		}
	}
	if !t.Updated.IsZero() {
		log.Warn().Str("ticket", t.Key).Msg("Missing creation date, anchoring flow log on last update")
	}
	return t.Updated
}

func (t *Ticket) closeEntry(seq int, from, to time.Time) {
	d, err := busday.Duration(from, to, t.opts.Unit)
	if err == nil {
		err = t.flow.SetDuration(seq, d)
	}
	if err != nil {
		t.rejected = append(t.rejected, err)
		log.Warn().Err(err).Str("ticket", t.Key).Msg("Failed to close status event")
	}
}

// CalculateLeadTime measures creation to resolution. The resolution date
// is used unless override is set or it is missing, in which case the most
// recent entry into resolutionStatus is used. The result is stored in
// LeadTime and is Unresolved when no end can be found.
func (t *Ticket) CalculateLeadTime(resolutionStatus string, override bool) int64 {
	t.LeadTime = Unresolved
	if resolutionStatus == "" {
		resolutionStatus = DefaultResolutionStatus
	}

	var end time.Time
	if t.ResolutionDate != nil && !override {
		end = *t.ResolutionDate
	} else if e, ok := t.flow.LastEntered(resolutionStatus); ok {
		end = e.EnteredAt
	}
	if end.IsZero() {
		return t.LeadTime
	}

	d, err := busday.Duration(t.Created, end, t.opts.Unit)
	if err != nil {
		log.Debug().Err(err).Str("ticket", t.Key).Msg("Lead time not computable")
		return t.LeadTime
	}
	t.LeadTime = d
	return d
}

// CalculateCycleTime measures the most recent entry into beginStatus (or
// creation) to resolution. Without override only the resolution date ends
// the cycle; with override the most recent entry into resolutionStatus
// does.
func (t *Ticket) CalculateCycleTime(beginStatus, resolutionStatus string, override bool) int64 {
	t.CycleTime = Unresolved
	if beginStatus == "" {
		beginStatus = DefaultBeginStatus
	}
	if resolutionStatus == "" {
		resolutionStatus = DefaultResolutionStatus
	}

	start := t.Created
	if e, ok := t.flow.LastEntered(beginStatus); ok {
		start = e.EnteredAt
	}

	var end time.Time
	switch {
	case t.ResolutionDate != nil && !override:
		end = *t.ResolutionDate
	case override:
		if e, ok := t.flow.LastEntered(resolutionStatus); ok {
			end = e.EnteredAt
		}
	}
	if end.IsZero() {
		return t.CycleTime
	}

	d, err := busday.Duration(start, end, t.opts.Unit)
	if err != nil {
		log.Debug().Err(err).Str("ticket", t.Key).Msg("Cycle time not computable")
		return t.CycleTime
	}
	t.CycleTime = d
	return d
}

// IsResolved reports whether the ticket carries a resolution or a lead time.
func (t *Ticket) IsResolved() bool {
	return t.Resolution != "" || t.LeadTime > Unresolved
}

// ExpandFlowLog merges the per-status durations of the flow log into Extra
// and makes them visible. A non-empty allow list restricts the merged
// statuses. Statuses spelled exactly like a core field are skipped.
func (t *Ticket) ExpandFlowLog(allow []string) {
	totals := t.flow.DurationMap()
	for _, e := range t.flow.Entries() {
		state := e.State
		if len(allow) > 0 && !slices.Contains(allow, state) {
			continue
		}
		if isCoreName(state) {
			log.Debug().Str("ticket", t.Key).Str("status", state).Msg("Status shadows a core field, not expanded")
			continue
		}
		if _, seen := t.Extra[state]; !seen {
			t.extraOrder = append(t.extraOrder, state)
		}
		t.Extra[state] = totals[state]
	}
}

// FilteredCopy rebuilds the ticket from its source and keeps only the
// requested fields plus the protected ones. Requested lead and cycle times
// and flow-log columns carry the current values of t.
func (t *Ticket) FilteredCopy(fields []string) *Ticket {
	c := New(t.src, t.opts)

	want := make(map[string]bool, len(fields)+len(ProtectedFields))
	for _, f := range ProtectedFields {
		want[f] = true
	}
	var extras []string
	for _, name := range fields {
		if f, extra, ok := t.resolve(name); ok && !extra {
			want[f] = true
		} else if ok {
			extras = append(extras, f)
		}
	}

	c.visible = c.visible[:0]
	for _, f := range allFields {
		if want[f] {
			c.visible = append(c.visible, f)
		}
	}
	if want[FieldLeadTime] {
		c.LeadTime = t.LeadTime
	}
	if want[FieldCycleTime] {
		c.CycleTime = t.CycleTime
	}
	for _, name := range extras {
		if _, seen := c.Extra[name]; seen {
			continue
		}
		c.Extra[name] = t.Extra[name]
		c.extraOrder = append(c.extraOrder, name)
	}
	return c
}

// FlowLog returns a copy of the ticket's flow log.
func (t *Ticket) FlowLog() *flowlog.FlowLog {
	return t.flow.Clone()
}

// Source returns a copy of the raw data the ticket was built from.
func (t *Ticket) Source() Source {
	return t.src.Clone()
}

// Options returns the options the ticket was built with.
func (t *Ticket) Options() Options {
	return t.opts
}

// Rejected lists the history events the flow log refused.
func (t *Ticket) Rejected() []error {
	return slices.Clone(t.rejected)
}

func (t *Ticket) String() string {
	return fmt.Sprintf("%s (%s, lead=%d, cycle=%d)", t.Key, t.Type, t.LeadTime, t.CycleTime)
}
