package jira

import (
	"encoding/json"
	"strings"

	"eng-metrics/internal/ticket"

	"github.com/rs/zerolog/log"
)

// MapIssue normalises a Jira issue into the tracker-independent ticket
// source. Unparsable history timestamps are kept as zero times so that the
// flow log rejects that single event instead of the whole issue.
func MapIssue(item IssueDTO, baseURL string) ticket.Source {
	f := item.Fields
	raw := ticket.RawTicket{
		ID:          item.ID,
		Key:         item.Key,
		Type:        f.IssueType.Name,
		Summary:     f.Summary,
		Description: plainText(f.Description),
		Labels:      append([]string(nil), f.Labels...),
		Status:      f.Status.Name,
		ProjectKey:  f.Project.Key,
		ProjectName: f.Project.Name,
	}
	if baseURL != "" {
		raw.URL = BrowseURL(baseURL, item.Key)
	}

	if raw.ProjectKey == "" {
		if i := strings.IndexByte(item.Key, '-'); i > 0 {
			raw.ProjectKey = item.Key[:i]
		}
	}
	if f.Resolution != nil {
		raw.Resolution = f.Resolution.Name
	}
	if f.Priority != nil {
		raw.Priority = f.Priority.Name
	}
	if len(f.FixVersions) > 0 {
		raw.FixVersion = f.FixVersions[0].Name
	}
	if f.Assignee != nil {
		raw.Assignee = &ticket.Person{Name: f.Assignee.DisplayName, Email: f.Assignee.EmailAddress}
		if raw.Assignee.Name == "" {
			raw.Assignee.Name = f.Assignee.Name
		}
	}
	if f.Parent != nil {
		raw.ParentKey = f.Parent.Key
		raw.ParentSummary = f.Parent.Fields.Summary
	}
	if f.EpicLink != nil {
		raw.EpicLink = *f.EpicLink
	}
	for _, link := range f.IssueLinks {
		if link.InwardIssue != nil {
			raw.IssueLinks = append(raw.IssueLinks, link.InwardIssue.Key)
		}
	}

	if t, err := ParseTime(f.Created); err == nil {
		raw.Created = t
	} else {
		log.Warn().Err(err).Str("issue", item.Key).Msg("Unparsable creation date")
	}
	if t, err := ParseTime(f.Updated); err == nil {
		raw.Updated = t
	}
	if f.ResolutionDate != "" {
		if t, err := ParseTime(f.ResolutionDate); err == nil {
			raw.ResolutionDate = &t
		}
	}

	if f.Comment != nil {
		for _, c := range f.Comment.Comments {
			created, _ := ParseTime(c.Created)
			raw.Comments = append(raw.Comments, ticket.Comment{
				Author:  c.Author.DisplayName,
				Body:    plainText(c.Body),
				Created: created,
			})
		}
	}

	return ticket.Source{Ticket: raw, History: mapChangelog(item.Key, item.Changelog)}
}

func mapChangelog(key string, changelog *ChangelogDTO) []ticket.HistoryEvent {
	if changelog == nil {
		return nil
	}
	var events []ticket.HistoryEvent
	for _, h := range changelog.Histories {
		at, err := ParseTime(h.Created)
		if err != nil {
			log.Debug().Err(err).Str("issue", key).Msg("Unparsable changelog timestamp")
		}
		for _, itm := range h.Items {
			events = append(events, ticket.HistoryEvent{
				Timestamp: at,
				Field:     itm.Field,
				NewValue:  itm.ToString,
			})
		}
	}
	return events
}

// plainText accepts either a plain JSON string (API v2) or an Atlassian
// document (API v3) and returns its text.
func plainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var b strings.Builder
	collectText(doc, &b)
	return strings.TrimSpace(b.String())
}

func collectText(node any, b *strings.Builder) {
	switch n := node.(type) {
	case map[string]any:
		if text, ok := n["text"].(string); ok {
			b.WriteString(text)
		}
		if content, ok := n["content"].([]any); ok {
			for _, child := range content {
				collectText(child, b)
			}
		}
		if n["type"] == "paragraph" {
			b.WriteString("\n")
		}
	case []any:
		for _, child := range n {
			collectText(child, b)
		}
	}
}
