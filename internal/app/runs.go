package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/output"
)

var (
	runsLimit  int
	runsFormat string
	runsDelete bool

	runsCmd = &cobra.Command{
		Use:   "runs [id]",
		Short: "List saved analysis runs or show one run's rules",
		Long: `Without arguments, list the analysis runs saved with 'basketlift analyze --save',
newest first. With a run id, show the rules recorded for that run in their
saved order.`,
		Example: `  # List the 20 most recent runs
  basketlift runs

  # Show the rules of one run as JSON
  basketlift runs 2f1c3a9e-4d5b-4c6e-8f70-1a2b3c4d5e6f --format json

  # Delete a run
  basketlift runs 2f1c3a9e-4d5b-4c6e-8f70-1a2b3c4d5e6f --delete`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRuns,
	}
)

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list (0 for all)")
	runsCmd.Flags().StringVar(&runsFormat, "format", formatTable, "output format for a run's rules: table, json, csv")
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "delete the given run")
}

func runRuns(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(runsFormat)
	if err != nil {
		return err
	}
	if runsDelete && len(args) == 0 {
		return fmt.Errorf("--delete requires a run id")
	}

	st, err := openExistingStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := st.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output.RenderRunTable(runs))
		return nil
	}

	id := args[0]
	if runsDelete {
		if err := st.DeleteRun(id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted analysis run %s\n", id)
		return nil
	}

	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	rules, err := st.GetRunRules(id)
	if err != nil {
		return err
	}
	names, err := loadNames(st)
	if err != nil {
		return err
	}
	affinity.Annotate(rules, names)

	if format == formatTable {
		fmt.Fprintf(out, "Run %s (%s, %d transactions, min support %s, min confidence %s)\n\n",
			run.ID,
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.TotalTransactions,
			formatRatio(run.MinSupport),
			formatRatio(run.MinConfidence))
	}
	return writeRules(out, rules, format)
}
