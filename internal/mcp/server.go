// Package mcp exposes collections and the business-day calculator as
// Model Context Protocol tools.
package mcp

import (
	"context"

	"eng-metrics/internal/ingest"
	"eng-metrics/internal/store"
	"eng-metrics/internal/ticket"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serverName = "eng-metrics"

// Server holds the state shared by the tools.
type Server struct {
	store    *store.Store
	provider *ingest.Provider
	opts     ticket.Options
	sdk      *mcpsdk.Server
}

// NewServer registers every tool. A nil provider leaves populate_from_jql
// unavailable, which is how snapshots are served offline.
func NewServer(st *store.Store, provider *ingest.Provider, opts ticket.Options, version string) *Server {
	if opts.BeginStatus == "" {
		opts.BeginStatus = ticket.DefaultBeginStatus
	}
	if opts.ResolutionStatus == "" {
		opts.ResolutionStatus = ticket.DefaultResolutionStatus
	}

	s := &Server{
		store:    st,
		provider: provider,
		opts:     opts,
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// SDK returns the underlying protocol server.
func (s *Server) SDK() *mcpsdk.Server {
	return s.sdk
}

// Serve runs the server over stdin/stdout until the client disconnects or
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Str("server", serverName).Msg("Serving MCP over stdio")
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}
