package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"eng-metrics/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	var (
		maxResults int
		outDir     string
		open       bool
		chart      bool
	)
	cmd := &cobra.Command{
		Use:   "project KEY [KEY...]",
		Short: "Write a known-issues report for one or more Jira projects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requireProvider()
			if err != nil {
				return err
			}
			if open && outDir == "" {
				return fmt.Errorf("--open requires --out")
			}
			if !cmd.Flags().Changed("chart") {
				chart = cfg.EnableMermaidCharts
			}

			keys := make([]string, 0, len(args))
			for _, k := range args {
				keys = append(keys, strings.ToUpper(strings.TrimSpace(k)))
			}

			projects, err := p.PopulateProjects(cmd.Context(), keys, maxResults)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				log.Warn().Strs("projects", keys).Msg("No issues found")
				return nil
			}

			for _, proj := range projects {
				if outDir == "" {
					if err := report.WriteMarkdown(cmd.OutOrStdout(), proj, chart); err != nil {
						return err
					}
					continue
				}
				path := filepath.Join(outDir, proj.Key+"-known-issues.md")
				err := report.WriteFile(path, func(f *os.File) error {
					return report.WriteMarkdown(f, proj, chart)
				})
				if err != nil {
					return err
				}
				if open {
					if err := report.Open(path); err != nil {
						log.Warn().Err(err).Str("path", path).Msg("Could not open report")
					}
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&maxResults, "max", 0, "maximum number of issues per project, 0 fetches all")
	f.StringVarP(&outDir, "out", "o", "", "directory to write one report per project into")
	f.BoolVar(&open, "open", false, "open each written report")
	f.BoolVar(&chart, "chart", false, "append a Mermaid cycle-time chart (default from ENABLE_MERMAID_CHARTS)")
	return cmd
}
