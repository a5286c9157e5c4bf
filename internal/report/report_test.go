package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/ticket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d, h int) time.Time {
	return time.Date(2024, time.January, d, h, 0, 0, 0, time.UTC)
}

func sample() *collection.Collection {
	resolved := day(4, 9)
	opts := ticket.Options{Now: func() time.Time { return day(5, 9) }}
	return collection.FromSources("project = ENG", "eng", []ticket.Source{
		{
			Ticket: ticket.RawTicket{
				Key: "ENG-1", Type: "Bug", Summary: "Crash, on start", URL: "https://jira/browse/ENG-1",
				Priority: "Blocker", Status: "Done", FixVersion: "1.2", Labels: []string{"a", "b"},
				Created: day(1, 9), Resolution: "Fixed", ResolutionDate: &resolved,
			},
			History: []ticket.HistoryEvent{{Timestamp: day(2, 9), Field: "status", NewValue: "In Progress"}},
		},
		{
			Ticket: ticket.RawTicket{Key: "ENG-2", Type: "Story", Summary: "Later", Priority: "Low", Status: "Open", Created: day(2, 9)},
		},
	}, opts)
}

func TestColumns_UnionInOrder(t *testing.T) {
	c := sample()
	eng1, _ := c.Ticket("ENG-1")
	eng1.ExpandFlowLog([]string{"In Progress"})

	cols := Columns(c)
	assert.Equal(t, ticket.DefaultFields(), cols[:len(cols)-1])
	assert.Equal(t, "In Progress", cols[len(cols)-1])
}

func TestWriteCSV(t *testing.T) {
	f := sample().Filter(nil, []string{"summary", "labels", "cycleTime"})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "key,type,summary,labels,cycleTime", lines[0])
	assert.Equal(t, `ENG-1,Bug,"Crash, on start","a, b",48`, lines[1])
	assert.Equal(t, "ENG-2,Story,Later,,-1", lines[2])
}

func TestWriteJSON(t *testing.T) {
	f := sample().Filter([]string{"Bug"}, []string{"resolutionDate"})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, f))

	var got struct {
		Label   string           `json:"label"`
		Columns []string         `json:"columns"`
		Tickets []map[string]any `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "eng_filtered", got.Label)
	assert.Equal(t, []string{"key", "type", "resolutionDate"}, got.Columns)
	require.Len(t, got.Tickets, 1)
	assert.Equal(t, "2024-01-04T09:00:00Z", got.Tickets[0]["resolutionDate"])
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(-1), "-1"},
		{time.Time{}, ""},
		{day(1, 9), "2024-01-01T09:00:00Z"},
		{[]string{"a", "b"}, "a, b"},
		{3.5, "3.5"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKnownIssues(t *testing.T) {
	p := collection.NewProject("ENG", "Engineering", sample().Tickets())
	md := KnownIssues(p, true)

	assert.True(t, strings.HasPrefix(md, "# Known Issues Report\n"))
	assert.Contains(t, md, "## Engineering Known Issues\n")
	assert.Contains(t, md, "#### ENG-1 ([Crash, on start](https://jira/browse/ENG-1)) P1\n")
	assert.Contains(t, md, "* Fix: This was fixed in version 1.2\n")
	assert.Contains(t, md, "#### ENG-2 ([Later]())\n")
	assert.Contains(t, md, "```mermaid\n")
	assert.Contains(t, md, `x-axis ["ENG-1"]`)
	assert.Contains(t, md, "bar [48]")

	assert.NotContains(t, KnownIssues(p, false), "mermaid")
}

func TestPriorityBadge(t *testing.T) {
	tests := map[string]string{"Blocker": "P1", "Highest": "P2", "High": "P3", "Normal": "P4", "Low": ""}
	for in, want := range tests {
		assert.Equal(t, want, PriorityBadge(in), in)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.md")
	p := collection.NewProject("ENG", "", nil)

	require.NoError(t, WriteFile(path, func(f *os.File) error { return WriteMarkdown(f, p, false) }))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## ENG Known Issues")
}
