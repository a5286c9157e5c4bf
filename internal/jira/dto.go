package jira

import (
	"encoding/json"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue in the Jira search response.
type IssueDTO struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Self      string        `json:"self,omitempty"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// NamedDTO covers the many Jira objects that only matter by name.
type NamedDTO struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UserDTO is an assignee or comment author.
type UserDTO struct {
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// FieldsDTO contains the specific fields we care about.
type FieldsDTO struct {
	Summary        string          `json:"summary"`
	Description    json.RawMessage `json:"description,omitempty"`
	IssueType      NamedDTO        `json:"issuetype"`
	Status         NamedDTO        `json:"status"`
	Resolution     *NamedDTO       `json:"resolution"`
	ResolutionDate string          `json:"resolutiondate"`
	Priority       *NamedDTO       `json:"priority"`
	Labels         []string        `json:"labels"`
	Assignee       *UserDTO        `json:"assignee"`
	Comment        *CommentPageDTO `json:"comment,omitempty"`
	FixVersions    []NamedDTO      `json:"fixVersions"`
	Parent         *ParentDTO      `json:"parent,omitempty"`
	IssueLinks     []IssueLinkDTO  `json:"issuelinks"`
	Project        ProjectDTO      `json:"project"`
	EpicLink       *string         `json:"customfield_10001,omitempty"`
	Created        string          `json:"created"`
	Updated        string          `json:"updated"`
}

// CommentPageDTO is the embedded comment field of an issue.
type CommentPageDTO struct {
	Comments []CommentDTO `json:"comments"`
}

// CommentDTO is a single comment.
type CommentDTO struct {
	Author  UserDTO         `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
}

// ParentDTO references the parent issue, usually an epic.
type ParentDTO struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

// IssueLinkDTO is one issue link. Exactly one of the two sides is set.
type IssueLinkDTO struct {
	Type struct {
		Name    string `json:"name"`
		Inward  string `json:"inward"`
		Outward string `json:"outward"`
	} `json:"type"`
	InwardIssue  *LinkedIssueDTO `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssueDTO `json:"outwardIssue,omitempty"`
}

// LinkedIssueDTO is the far side of an issue link.
type LinkedIssueDTO struct {
	Key string `json:"key"`
}

// ProjectDTO is a project as returned by /project/{key} or embedded in an issue.
type ProjectDTO struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	Histories []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
	From       string `json:"from"` // ID
	To         string `json:"to"`   // ID
}

const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// ParseTime parses the strict Jira time format, falling back to RFC 3339.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(jiraTimeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, rerr := time.Parse(time.RFC3339, s); rerr == nil {
		return t, nil
	}
	return time.Time{}, err
}
