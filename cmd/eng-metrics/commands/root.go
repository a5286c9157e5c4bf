package commands

import (
	"errors"
	"fmt"

	"eng-metrics/internal/config"
	"eng-metrics/internal/ingest"
	"eng-metrics/internal/jira"
	"eng-metrics/internal/logging"
	"eng-metrics/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	st       *store.Store
	provider *ingest.Provider
)

var errNoJira = errors.New("JIRA_URL is not configured")

var rootCmd = &cobra.Command{
	Use:   "eng-metrics",
	Short: "Workflow analytics for Jira tickets",
	Long: `eng-metrics turns the status history of Jira tickets into lead times, cycle times
and per-status durations, measured in business time with weekends excluded.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		st = store.New()
		if cfg.Jira.BaseURL != "" {
			provider = ingest.NewProvider(jira.NewClient(cfg.Jira), st, cfg.Jira.BaseURL, cfg.CacheDir, cfg.TicketOptions())
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("eng-metrics starting")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Version = Version

	rootCmd.AddCommand(newJQLCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newDurationCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
}

func requireProvider() (*ingest.Provider, error) {
	if provider == nil {
		return nil, errNoJira
	}
	return provider, nil
}

// loadSnapshots registers previously saved collections in the store.
func loadSnapshots(labels []string) error {
	for _, label := range labels {
		if _, err := st.Load(cfg.CacheDir, label, cfg.TicketOptions()); err != nil {
			return fmt.Errorf("snapshot %q: %w", label, err)
		}
	}
	return nil
}
