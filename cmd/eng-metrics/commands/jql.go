package commands

import (
	"fmt"
	"io"
	"os"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/report"

	"github.com/spf13/cobra"
)

type jqlOptions struct {
	label            string
	snapshot         bool
	maxResults       int
	types            []string
	fields           []string
	expand           []string
	expandAll        bool
	beginStatus      string
	resolutionStatus string
	leadOverride     bool
	cycleOverride    bool
	format           string
	out              string
	open             bool
}

func newJQLCmd() *cobra.Command {
	o := &jqlOptions{}
	cmd := &cobra.Command{
		Use:   "jql QUERY",
		Short: "Compute lead and cycle times for the tickets matching a JQL query",
		Example: `  eng-metrics jql "project = ENG AND resolved >= -30d" --type Bug --field summary,cycleTime
  eng-metrics jql "project = ENG" --expand "In Progress,Review" --format json --out eng.json --open
  eng-metrics jql --snapshot --label mock --format csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJQL(cmd, args, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.label, "label", collection.DefaultLabel, "label to store the collection under")
	f.BoolVar(&o.snapshot, "snapshot", false, "read the collection from its saved snapshot instead of Jira")
	f.IntVar(&o.maxResults, "max", 0, "maximum number of issues to fetch, 0 fetches all")
	f.StringSliceVar(&o.types, "type", nil, "issue types to keep")
	f.StringSliceVar(&o.fields, "field", nil, "fields to output, key and type are always included")
	f.StringSliceVar(&o.expand, "expand", nil, "statuses to add as duration columns")
	f.BoolVar(&o.expandAll, "expand-all", false, "add a duration column for every status")
	f.StringVar(&o.beginStatus, "begin-status", "", "status that starts the cycle (default from BEGIN_STATUS)")
	f.StringVar(&o.resolutionStatus, "resolution-status", "", "status that ends the cycle (default from RESOLUTION_STATUS)")
	f.BoolVar(&o.leadOverride, "lead-override", false, "end lead time at the last entry into the resolution status instead of the resolution date")
	f.BoolVar(&o.cycleOverride, "cycle-override", true, "end cycle time at the last entry into the resolution status instead of the resolution date")
	f.StringVar(&o.format, "format", "csv", "output format: csv or json")
	f.StringVarP(&o.out, "out", "o", "", "write to this file instead of stdout")
	f.BoolVar(&o.open, "open", false, "open the written file (requires --out)")
	return cmd
}

func runJQL(cmd *cobra.Command, args []string, o *jqlOptions) error {
	if o.format != "csv" && o.format != "json" {
		return fmt.Errorf("unknown format %q, want csv or json", o.format)
	}
	if o.open && o.out == "" {
		return fmt.Errorf("--open requires --out")
	}

	switch {
	case o.snapshot:
		if err := loadSnapshots([]string{o.label}); err != nil {
			return err
		}
	case len(args) == 1:
		p, err := requireProvider()
		if err != nil {
			return err
		}
		if _, err := p.PopulateFromJQL(cmd.Context(), args[0], o.maxResults, o.label); err != nil {
			return err
		}
	default:
		return fmt.Errorf("a JQL query or --snapshot is required")
	}

	begin := o.beginStatus
	if begin == "" {
		begin = cfg.BeginStatus
	}
	resolution := o.resolutionStatus
	if resolution == "" {
		resolution = cfg.ResolutionStatus
	}

	var result *collection.Collection
	err := st.Update(o.label, func(c *collection.Collection) error {
		c.CalculateLeadTimes(resolution, o.leadOverride)
		c.CalculateCycleTimes(begin, resolution, o.cycleOverride)
		switch {
		case o.expandAll:
			c.ExpandFlowLogs(nil)
		case len(o.expand) > 0:
			c.ExpandFlowLogs(o.expand)
		}

		result = c
		if len(o.types) > 0 || len(o.fields) > 0 {
			result = c.Filter(o.types, o.fields)
		}
		return nil
	})
	if err != nil {
		return err
	}

	write := func(w io.Writer) error {
		if o.format == "json" {
			return report.WriteJSON(w, result)
		}
		return report.WriteCSV(w, result)
	}

	if o.out == "" {
		return write(cmd.OutOrStdout())
	}
	if err := report.WriteFile(o.out, func(f *os.File) error { return write(f) }); err != nil {
		return err
	}
	if o.open {
		return report.Open(o.out)
	}
	return nil
}
