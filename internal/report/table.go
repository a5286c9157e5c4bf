// Package report renders collections for people and spreadsheets.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"eng-metrics/internal/collection"
)

// Columns returns the union of the tickets' visible fields, in first-seen
// order.
func Columns(c *collection.Collection) []string {
	cols := make([]string, 0)
	seen := make(map[string]bool)
	for _, t := range c.Tickets() {
		for _, name := range t.FieldNames() {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	return cols
}

// Rows returns one map per ticket holding only that ticket's visible fields.
func Rows(c *collection.Collection) []map[string]any {
	rows := make([]map[string]any, 0, c.Len())
	for _, t := range c.Tickets() {
		rows = append(rows, t.Fields())
	}
	return rows
}

// WriteCSV writes a header row followed by one row per ticket. Fields a
// ticket does not expose are left empty.
func WriteCSV(w io.Writer, c *collection.Collection) error {
	cols := Columns(c)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range Rows(c) {
		record := make([]string, len(cols))
		for i, col := range cols {
			record[i] = FormatValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Document is the JSON form of a collection with its provenance.
type Document struct {
	Query   string           `json:"query"`
	Label   string           `json:"label"`
	Columns []string         `json:"columns"`
	Tickets []map[string]any `json:"tickets"`
}

// NewDocument captures the visible fields of every ticket in c.
func NewDocument(c *collection.Collection) Document {
	return Document{
		Query:   c.Query(),
		Label:   c.Label(),
		Columns: Columns(c),
		Tickets: Rows(c),
	}
}

// WriteJSON writes the collection with its provenance as indented JSON.
func WriteJSON(w io.Writer, c *collection.Collection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(c))
}

// FormatValue renders a field value as a single cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case []string:
		return strings.Join(x, ", ")
	}
	return fmt.Sprint(v)
}
