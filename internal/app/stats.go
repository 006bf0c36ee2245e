package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/output"
)

var (
	statsFormat string

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show co-occurrence statistics for stored transactions",
		Long: `Display a snapshot of the co-occurrence statistics built from every stored
transaction: the transaction count, the number of distinct items and
co-occurring pairs, and the most frequent item and pair.

Ties for most frequent are broken by first appearance in the data.`,
		Example: `  # Show statistics
  basketlift stats

  # Machine-readable snapshot
  basketlift stats --format json`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
)

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", formatTable, "output format: table or json")
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsFormat != formatTable && statsFormat != formatJSON {
		return fmt.Errorf("invalid format: %q (must be table or json)", statsFormat)
	}

	st, err := openExistingStore()
	if err != nil {
		return err
	}
	defer st.Close()

	items, err := st.ListLineItems()
	if err != nil {
		return err
	}
	baskets, err := basket.Build(items)
	if err != nil {
		return fmt.Errorf("failed to build baskets: %w", err)
	}

	stats := affinity.NewStats()
	stats.IngestBatch(baskets)
	snap := stats.Statistics()

	if statsFormat == formatJSON {
		return output.WriteJSON(cmd.OutOrStdout(), snap)
	}

	names, err := loadNames(st)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderStatistics(snap, names))
	return nil
}
