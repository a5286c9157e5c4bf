package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/report"
	"eng-metrics/internal/store"

	"github.com/go-chi/chi/v5"
)

type collectionSummary struct {
	Label   string `json:"label"`
	Query   string `json:"query"`
	Tickets int    `json:"tickets"`
}

type projectSummary struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Tickets int    `json:"tickets"`
}

type projectResponse struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	report.Document
}

// LeadTimeRequest is the optional body of POST /collections/{label}/lead-times.
type LeadTimeRequest struct {
	ResolutionStatus string `json:"resolutionStatus"`
	Override         *bool  `json:"override"`
}

// CycleTimeRequest is the optional body of POST /collections/{label}/cycle-times.
type CycleTimeRequest struct {
	BeginStatus      string `json:"beginStatus"`
	ResolutionStatus string `json:"resolutionStatus"`
	Override         *bool  `json:"override"`
}

// ExpandRequest is the optional body of POST /collections/{label}/expand.
// No statuses expands every status.
type ExpandRequest struct {
	Statuses []string `json:"statuses"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"collections": len(h.store.Labels()),
		"projects":    len(h.store.Projects()),
	})
}

func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	out := make([]collectionSummary, 0)
	for _, label := range h.store.Labels() {
		// A label deleted since Labels() is skipped.
		_ = h.store.View(label, func(c *collection.Collection) error {
			out = append(out, collectionSummary{Label: c.Label(), Query: c.Query(), Tickets: c.Len()})
			return nil
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	label := labelParam(r)
	if !h.store.Delete(label) {
		writeStoreError(w, fmt.Errorf("%w: %q", store.ErrCollectionNotFound, label))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCollection returns the stored collection, or a filtered copy of
// it when type or field parameters are present.
func (h *Handler) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	types := listParam(q, "type")
	fields := listParam(q, "field")

	var doc report.Document
	err := h.store.View(labelParam(r), func(c *collection.Collection) error {
		if len(types) > 0 || len(fields) > 0 {
			c = c.Filter(types, fields)
		}
		doc = report.NewDocument(c)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleResolved(w http.ResponseWriter, r *http.Request) {
	var doc report.Document
	err := h.store.View(labelParam(r), func(c *collection.Collection) error {
		doc = report.NewDocument(c.Resolved())
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleLeadTimes(w http.ResponseWriter, r *http.Request) {
	var req LeadTimeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status := firstNonEmpty(req.ResolutionStatus, h.opts.ResolutionStatus)

	var doc report.Document
	err := h.store.Update(labelParam(r), func(c *collection.Collection) error {
		c.CalculateLeadTimes(status, boolOr(req.Override, false))
		doc = report.NewDocument(c)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleCycleTimes(w http.ResponseWriter, r *http.Request) {
	var req CycleTimeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	begin := firstNonEmpty(req.BeginStatus, h.opts.BeginStatus)
	resolution := firstNonEmpty(req.ResolutionStatus, h.opts.ResolutionStatus)

	var doc report.Document
	err := h.store.Update(labelParam(r), func(c *collection.Collection) error {
		c.CalculateCycleTimes(begin, resolution, boolOr(req.Override, true))
		doc = report.NewDocument(c)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var doc report.Document
	err := h.store.Update(labelParam(r), func(c *collection.Collection) error {
		c.ExpandFlowLogs(req.Statuses)
		doc = report.NewDocument(c)
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	out := make([]projectSummary, 0)
	for _, p := range h.store.Projects() {
		out = append(out, projectSummary{Key: p.Key, Name: p.Name, Tickets: p.Len()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Project(chi.URLParam(r, "key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{
		Key:      p.Key,
		Name:     p.Name,
		Document: report.NewDocument(p.Collection),
	})
}

func labelParam(r *http.Request) string {
	label := chi.URLParam(r, "label")
	if unescaped, err := url.PathUnescape(label); err == nil {
		return unescaped
	}
	return label
}

// listParam accepts both repeated parameters and comma-separated values.
func listParam(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// boolOr resolves an optional request flag. Lead times default to the
// resolution date, cycle times to the flow log.
func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
