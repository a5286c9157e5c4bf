package commands

import (
	"os"
	"os/signal"
	"syscall"

	"eng-metrics/internal/mcp"

	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var load []string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the metrics tools to an MCP client over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadSnapshots(load); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mcp.NewServer(st, provider, cfg.TicketOptions(), Version).Serve(ctx)
		},
	}
	cmd.Flags().StringSliceVar(&load, "load", nil, "snapshot labels to load from the cache directory")
	return cmd
}
