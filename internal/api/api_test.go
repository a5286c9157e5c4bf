package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d, h int) time.Time {
	return time.Date(2024, time.January, d, h, 0, 0, 0, time.UTC)
}

type document struct {
	Key     string           `json:"key"`
	Name    string           `json:"name"`
	Query   string           `json:"query"`
	Label   string           `json:"label"`
	Columns []string         `json:"columns"`
	Tickets []map[string]any `json:"tickets"`
}

func setup(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	resolved := day(4, 9)
	opts := ticket.Options{Now: func() time.Time { return day(5, 9) }}
	c := collection.FromSources("project = ENG", "eng", []ticket.Source{
		{
			Ticket: ticket.RawTicket{
				Key: "ENG-1", Type: "Bug", Status: "Done", Created: day(1, 9),
				Resolution: "Fixed", ResolutionDate: &resolved,
			},
			History: []ticket.HistoryEvent{{Timestamp: day(2, 9), Field: "status", NewValue: "In Progress"}},
		},
		{Ticket: ticket.RawTicket{Key: "ENG-2", Type: "Story", Status: "Open", Created: day(2, 9)}},
	}, opts)

	st := store.New()
	st.Put(c)
	st.PutProject(collection.NewProject("ENG", "Engineering", c.Tickets()))
	return st, NewHandler(st, opts).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) document {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func byKey(doc document, key string) map[string]any {
	for _, row := range doc.Tickets {
		if row["key"] == key {
			return row
		}
	}
	return nil
}

func TestHealth(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","collections":1,"projects":1}`, rec.Body.String())
}

func TestListCollections(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/collections", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"label":"eng","query":"project = ENG","tickets":2}]`, rec.Body.String())
}

func TestGetCollection(t *testing.T) {
	_, h := setup(t)

	doc := decode(t, do(t, h, http.MethodGet, "/collections/eng", ""))
	assert.Equal(t, "eng", doc.Label)
	assert.Equal(t, ticket.DefaultFields(), doc.Columns)
	assert.Len(t, doc.Tickets, 2)
}

func TestGetCollection_Filtered(t *testing.T) {
	st, h := setup(t)

	doc := decode(t, do(t, h, http.MethodGet, "/collections/eng?type=Bug&field=cycleTime,leadTime", ""))
	assert.Equal(t, "eng_filtered", doc.Label)
	assert.Equal(t, []string{"key", "type", "leadTime", "cycleTime"}, doc.Columns)
	require.Len(t, doc.Tickets, 1)
	assert.Equal(t, float64(48), doc.Tickets[0]["cycleTime"])
	assert.Equal(t, float64(72), doc.Tickets[0]["leadTime"])

	// The stored collection is not replaced by the filtered copy.
	assert.Equal(t, []string{"eng"}, st.Labels())
}

func TestGetCollection_NotFound(t *testing.T) {
	_, h := setup(t)
	rec := do(t, h, http.MethodGet, "/collections/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "collection not found")
}

func TestDeleteCollection(t *testing.T) {
	st, h := setup(t)

	rec := do(t, h, http.MethodDelete, "/collections/eng", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, st.Labels())

	rec = do(t, h, http.MethodDelete, "/collections/eng", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/collections/eng", "").Code)
}

func TestResolved(t *testing.T) {
	_, h := setup(t)

	doc := decode(t, do(t, h, http.MethodGet, "/collections/eng/resolved", ""))
	require.Len(t, doc.Tickets, 1)
	assert.Equal(t, "ENG-1", doc.Tickets[0]["key"])
}

func TestCycleTimes(t *testing.T) {
	st, h := setup(t)

	// Cycle override defaults to true and the flow log never entered "Done".
	doc := decode(t, do(t, h, http.MethodPost, "/collections/eng/cycle-times", ""))
	assert.Equal(t, float64(ticket.Unresolved), byKey(doc, "ENG-1")["cycleTime"])

	doc = decode(t, do(t, h, http.MethodPost, "/collections/eng/cycle-times", `{"override":false}`))
	assert.Equal(t, float64(48), byKey(doc, "ENG-1")["cycleTime"])

	doc = decode(t, do(t, h, http.MethodPost, "/collections/eng/cycle-times", `{"beginStatus":"Nope","override":false}`))
	assert.Equal(t, float64(72), byKey(doc, "ENG-1")["cycleTime"])

	c, err := st.Collection("eng")
	require.NoError(t, err)
	eng1, _ := c.Ticket("ENG-1")
	assert.Equal(t, int64(72), eng1.CycleTime)
}

func TestLeadTimes(t *testing.T) {
	_, h := setup(t)

	doc := decode(t, do(t, h, http.MethodPost, "/collections/eng/lead-times", `{"override":true}`))
	// No "Done" entry in the flow log.
	assert.Equal(t, float64(ticket.Unresolved), byKey(doc, "ENG-1")["leadTime"])

	doc = decode(t, do(t, h, http.MethodPost, "/collections/eng/lead-times", `{"resolutionStatus":"In Progress","override":true}`))
	assert.Equal(t, float64(24), byKey(doc, "ENG-1")["leadTime"])
	assert.Equal(t, float64(ticket.Unresolved), byKey(doc, "ENG-2")["leadTime"])

	// Without override the resolution date wins again.
	doc = decode(t, do(t, h, http.MethodPost, "/collections/eng/lead-times", ""))
	assert.Equal(t, float64(72), byKey(doc, "ENG-1")["leadTime"])
}

func TestExpand(t *testing.T) {
	_, h := setup(t)

	doc := decode(t, do(t, h, http.MethodPost, "/collections/eng/expand", `{"statuses":["In Progress"]}`))
	assert.Equal(t, "In Progress", doc.Columns[len(doc.Columns)-1])
	assert.Equal(t, float64(72), byKey(doc, "ENG-1")["In Progress"])
	assert.NotContains(t, byKey(doc, "ENG-2"), "In Progress")
}

func TestBadBody(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodPost, "/collections/eng/expand", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/collections/missing/expand", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjects(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodGet, "/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"key":"ENG","name":"Engineering","tickets":2}]`, rec.Body.String())

	doc := decode(t, do(t, h, http.MethodGet, "/projects/ENG", ""))
	assert.Equal(t, "ENG", doc.Key)
	assert.Equal(t, "Engineering", doc.Label)
	assert.Len(t, doc.Tickets, 2)

	rec = do(t, h, http.MethodGet, "/projects/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListParam(t *testing.T) {
	q := map[string][]string{"type": {"Bug, Story", "Task", ""}}
	assert.Equal(t, []string{"Bug", "Story", "Task"}, listParam(q, "type"))
	assert.Nil(t, listParam(q, "field"))
}
