package ticket

import (
	"slices"
	"time"
)

// Person identifies an assignee or comment author.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Comment is a single ticket comment.
type Comment struct {
	Author  string    `json:"author,omitempty"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// RawTicket is the tracker-independent snapshot of one work item as
// delivered by the fetch layer.
type RawTicket struct {
	ID             string     `json:"id"`
	Key            string     `json:"key"`
	URL            string     `json:"url,omitempty"`
	Type           string     `json:"type"`
	Summary        string     `json:"summary,omitempty"`
	Description    string     `json:"description,omitempty"`
	Labels         []string   `json:"labels,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Status         string     `json:"status,omitempty"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolutionDate *time.Time `json:"resolutionDate,omitempty"`
	FixVersion     string     `json:"fixVersion,omitempty"`
	Created        time.Time  `json:"created"`
	Updated        time.Time  `json:"updatedAt"`
	Assignee       *Person    `json:"assignee,omitempty"`
	Comments       []Comment  `json:"comments,omitempty"`
	ProjectKey     string     `json:"project,omitempty"`
	ProjectName    string     `json:"projectName,omitempty"`
	ParentKey      string     `json:"parent,omitempty"`
	ParentSummary  string     `json:"parentSummary,omitempty"`
	EpicLink       string     `json:"epicLink,omitempty"`
	IssueLinks     []string   `json:"issueLinks,omitempty"`
}

// HistoryEvent is one field change from the ticket's changelog. Only
// changes to the status field feed the flow log.
type HistoryEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Field     string    `json:"field"`
	NewValue  string    `json:"newValue"`
}

// Source pairs a raw ticket with its change history. Tickets keep their
// Source so filtered copies can be rebuilt from scratch.
type Source struct {
	Ticket  RawTicket      `json:"ticket"`
	History []HistoryEvent `json:"history,omitempty"`
}

// Clone returns a deep copy of s.
func (s Source) Clone() Source {
	c := s
	r := &c.Ticket
	r.Labels = slices.Clone(s.Ticket.Labels)
	r.Comments = slices.Clone(s.Ticket.Comments)
	r.IssueLinks = slices.Clone(s.Ticket.IssueLinks)
	if s.Ticket.ResolutionDate != nil {
		d := *s.Ticket.ResolutionDate
		r.ResolutionDate = &d
	}
	if s.Ticket.Assignee != nil {
		p := *s.Ticket.Assignee
		r.Assignee = &p
	}
	c.History = slices.Clone(s.History)
	return c
}
