package commands

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"eng-metrics/internal/busday"
	"eng-metrics/internal/collection"
	"eng-metrics/internal/config"
	"eng-metrics/internal/report"
	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-05T09:00:00Z", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)},
		{"2024-01-05T09:00:00.000+0000", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)},
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
	}

	_, err := parseTimestamp("last friday")
	assert.ErrorIs(t, err, busday.ErrInvalidTimestamp)
}

func runDuration(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newDurationCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestDurationCmd(t *testing.T) {
	out, err := runDuration(t, "2024-01-05T09:00:00Z", "2024-01-08T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "24", out)

	out, err = runDuration(t, "2024-01-01", "2024-01-08", "--unit", "days")
	require.NoError(t, err)
	assert.Equal(t, "5", out)

	out, err = runDuration(t, "2024-01-05T09:00:00Z", "2024-01-08T10:30:00Z", "-u", "composite")
	require.NoError(t, err)
	assert.Equal(t, "0 years, 1 days, 1 hours, 30 minutes and 0 seconds", out)
}

func TestDurationCmd_UntilNow(t *testing.T) {
	from := time.Now().UTC().AddDate(0, 0, -14)
	out, err := runDuration(t, from.Format(time.RFC3339), "--unit", "days")
	require.NoError(t, err)

	// Two calendar weeks always hold exactly ten working days.
	days, err := strconv.ParseInt(out, 10, 64)
	require.NoError(t, err, out)
	assert.Equal(t, int64(10), days)

	out, err = runDuration(t, from.Format(time.RFC3339), "-u", "composite")
	require.NoError(t, err)
	assert.Contains(t, out, "10 days")
}

func TestDurationCmd_Errors(t *testing.T) {
	_, err := runDuration(t, "2024-01-05", "2024-01-08", "--unit", "weeks")
	assert.ErrorIs(t, err, busday.ErrUnknownUnit)

	_, err = runDuration(t, "soon", "2024-01-08")
	assert.ErrorIs(t, err, busday.ErrInvalidTimestamp)
}

func TestJQLCmd_FlagValidation(t *testing.T) {
	cmd := newJQLCmd()
	cmd.SetArgs([]string{"project = ENG", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "unknown format")

	cmd = newJQLCmd()
	cmd.SetArgs([]string{"project = ENG", "--open"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "--open requires --out")
}

// withSnapshot points the command globals at a fresh cache holding one
// ticket that reached Done in its flow log but has no resolution date.
func withSnapshot(t *testing.T) {
	t.Helper()
	cfg = &config.AppConfig{
		CacheDir:         t.TempDir(),
		BeginStatus:      "In Progress",
		ResolutionStatus: "Done",
		Unit:             busday.Hours,
	}
	at := func(d int) time.Time { return time.Date(2024, time.January, d, 9, 0, 0, 0, time.UTC) }
	c := collection.FromSources("project = ENG", "eng", []ticket.Source{{
		Ticket: ticket.RawTicket{Key: "ENG-1", Type: "Bug", Status: "Done", Created: at(1)},
		History: []ticket.HistoryEvent{
			{Timestamp: at(2), Field: "status", NewValue: "In Progress"},
			{Timestamp: at(4), Field: "status", NewValue: "Done"},
		},
	}}, cfg.TicketOptions())

	saver := store.New()
	saver.Put(c)
	require.NoError(t, saver.Save(cfg.CacheDir, "eng"))

	st = store.New()
	t.Cleanup(func() { cfg, st = nil, nil })
}

func runJQLSnapshot(t *testing.T, extra ...string) map[string]any {
	t.Helper()
	withSnapshot(t)

	cmd := newJQLCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--snapshot", "--label", "eng", "--format", "json"}, extra...))
	require.NoError(t, cmd.Execute())

	var doc report.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Tickets, 1)
	return doc.Tickets[0]
}

func TestJQLCmd_OverrideDefaults(t *testing.T) {
	// Lead time falls back to the flow log, cycle time ends on entering Done.
	row := runJQLSnapshot(t)
	assert.Equal(t, float64(72), row["leadTime"])
	assert.Equal(t, float64(48), row["cycleTime"])

	// Only the resolution date may end the cycle.
	row = runJQLSnapshot(t, "--cycle-override=false")
	assert.Equal(t, float64(ticket.Unresolved), row["cycleTime"])
	assert.Equal(t, float64(72), row["leadTime"])

	row = runJQLSnapshot(t, "--lead-override", "--field", "leadTime")
	assert.Equal(t, float64(72), row["leadTime"])
	assert.NotContains(t, row, "cycleTime")
}
