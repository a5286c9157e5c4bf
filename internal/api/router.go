// Package api exposes stored collections and projects over HTTP.
package api

import (
	"net/http"
	"time"

	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Handler serves the JSON API over a store.
type Handler struct {
	store *store.Store
	opts  ticket.Options
}

// NewHandler creates a handler. The statuses in opts are used when a
// recompute request leaves them out.
func NewHandler(st *store.Store, opts ticket.Options) *Handler {
	if opts.BeginStatus == "" {
		opts.BeginStatus = ticket.DefaultBeginStatus
	}
	if opts.ResolutionStatus == "" {
		opts.ResolutionStatus = ticket.DefaultResolutionStatus
	}
	return &Handler{store: st, opts: opts}
}

// Router builds the chi router for every route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", h.handleHealth)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", h.handleListCollections)
		r.Route("/{label}", func(r chi.Router) {
			r.Get("/", h.handleGetCollection)
			r.Delete("/", h.handleDeleteCollection)
			r.Get("/resolved", h.handleResolved)
			r.Post("/lead-times", h.handleLeadTimes)
			r.Post("/cycle-times", h.handleCycleTimes)
			r.Post("/expand", h.handleExpand)
		})
	})

	r.Get("/projects", h.handleListProjects)
	r.Get("/projects/{key}", h.handleGetProject)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
