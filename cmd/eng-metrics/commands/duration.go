package commands

import (
	"fmt"
	"time"

	"eng-metrics/internal/busday"

	"github.com/spf13/cobra"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02",
}

func newDurationCmd() *cobra.Command {
	var unitName string
	cmd := &cobra.Command{
		Use:   "duration FROM [TO]",
		Short: "Measure the business time between two timestamps",
		Long: `Measure the working time between two timestamps, excluding Saturdays and Sundays.
TO defaults to now. Dates without a time are read as midnight UTC.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := busday.ParseUnit(unitName)
			if err != nil {
				return err
			}
			from, err := parseTimestamp(args[0])
			if err != nil {
				return err
			}
			if len(args) == 1 && unit != busday.Composite {
				d, err := busday.Since(from, unit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d)
				return nil
			}
			to := time.Now().In(from.Location())
			if len(args) == 2 {
				if to, err = parseTimestamp(args[1]); err != nil {
					return err
				}
			}

			out, err := busday.Format(from, to, unit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&unitName, "unit", "u", string(busday.Hours), "years, days, hours, minutes, seconds or composite")
	return cmd
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", busday.ErrInvalidTimestamp, s)
}
