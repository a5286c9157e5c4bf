package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eng-metrics/internal/api"
	"eng-metrics/internal/jobs"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		load       []string
		maxResults int
		refreshNow bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored collections over HTTP and refresh them on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			if err := loadSnapshots(load); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if len(cfg.RefreshQueries) > 0 {
				p, err := requireProvider()
				if err != nil {
					return err
				}
				refresher, err := jobs.NewRefresher(cfg.RefreshCron, cfg.RefreshQueries, p, maxResults)
				if err != nil {
					return err
				}
				if refreshNow {
					go refresher.RunOnce(ctx)
				}
				refresher.Start()
				defer refresher.Stop()
				log.Info().Str("schedule", cfg.RefreshCron).Int("queries", len(cfg.RefreshQueries)).Msg("Refresh scheduled")
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewHandler(st, cfg.TicketOptions()).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("HTTP server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address (default from HTTP_ADDR)")
	f.StringSliceVar(&load, "load", nil, "snapshot labels to load from the cache directory")
	f.IntVar(&maxResults, "max", 0, "maximum number of issues per refreshed query, 0 fetches all")
	f.BoolVar(&refreshNow, "refresh-now", false, "run the refresh once at startup")
	return cmd
}
