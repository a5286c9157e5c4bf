package report

import (
	"fmt"
	"io"
	"strings"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/ticket"
)

// PriorityBadge maps a Jira priority name onto a P1-P4 badge. Unknown
// priorities get no badge.
func PriorityBadge(priority string) string {
	switch priority {
	case "Blocker":
		return "P1"
	case "Highest":
		return "P2"
	case "High":
		return "P3"
	case "Normal", "Medium":
		return "P4"
	}
	return ""
}

// KnownIssues renders the known-issues report of a project. When chart is
// set a Mermaid bar chart of cycle times is appended.
func KnownIssues(p *collection.Project, chart bool) string {
	name := p.Name
	if name == "" {
		name = p.Key
	}

	var sb strings.Builder
	sb.WriteString("# Known Issues Report\n")
	sb.WriteString("Generated automatically from JIRA\n\n")
	sb.WriteString(fmt.Sprintf("## %s Known Issues\n", name))

	for _, t := range p.Tickets() {
		title := fmt.Sprintf("#### %s ([%s](%s))", t.Key, t.Summary, t.URL)
		if badge := PriorityBadge(t.Priority); badge != "" {
			title += " " + badge
		}
		sb.WriteString(title + "\n")
		sb.WriteString(fmt.Sprintf("* JIRA: [%s](%s)\n", t.URL, t.URL))
		sb.WriteString(fmt.Sprintf("* Status: %s\n", t.Status))
		if t.FixVersion != "" {
			sb.WriteString(fmt.Sprintf("* Fix: This was fixed in version %s\n", t.FixVersion))
		}
		sb.WriteString("\n")
	}

	if chart {
		if c := CycleTimeChart(p.Collection); c != "" {
			sb.WriteString("## Cycle Times\n")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// WriteMarkdown writes the known-issues report of p to w.
func WriteMarkdown(w io.Writer, p *collection.Project, chart bool) error {
	_, err := io.WriteString(w, KnownIssues(p, chart))
	return err
}

// CycleTimeChart creates a Mermaid bar chart with one bar per ticket that
// has a cycle time. It returns "" when no ticket qualifies.
func CycleTimeChart(c *collection.Collection) string {
	var labels, values []string
	var unit string
	for _, t := range c.Tickets() {
		if t.CycleTime == ticket.Unresolved {
			continue
		}
		labels = append(labels, fmt.Sprintf("%q", t.Key))
		values = append(values, fmt.Sprintf("%d", t.CycleTime))
		unit = string(t.Options().Unit)
	}
	if len(values) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Cycle Time (%s)\"\n", c.Label()))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Cycle Time (%s)\"\n", unit))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}
