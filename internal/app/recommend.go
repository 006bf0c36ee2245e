package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/output"
)

var (
	recommendMinSupport    float64
	recommendMinConfidence float64
	recommendTop           int
	recommendFormat        string

	recommendCmd = &cobra.Command{
		Use:   "recommend <item>",
		Short: "Show what customers who buy an item also buy",
		Long: `List the products most often bought together with <item>, ranked by lift.

The item is a product id as it appears in the transaction data. Rules come
from a batch analysis of every stored transaction with the same thresholds as
'basketlift analyze'.`,
		Example: `  # Products bought with P001
  basketlift recommend P001

  # Top 3 only, with a lower support threshold
  basketlift recommend P005 --top 3 --min-support 0.005`,
		Args: cobra.ExactArgs(1),
		RunE: runRecommend,
	}
)

func init() {
	def := affinity.DefaultThresholds()
	recommendCmd.Flags().Float64Var(&recommendMinSupport, "min-support", def.MinSupport, "minimum pair support (0-1)")
	recommendCmd.Flags().Float64Var(&recommendMinConfidence, "min-confidence", def.MinConfidence, "minimum confidence in either direction (0-1)")
	recommendCmd.Flags().IntVar(&recommendTop, "top", 10, "maximum number of recommendations")
	recommendCmd.Flags().StringVar(&recommendFormat, "format", formatTable, "output format: table, json, csv")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	item := args[0]

	th, err := thresholds(cmd, recommendMinSupport, recommendMinConfidence)
	if err != nil {
		return err
	}
	top, err := topN(cmd, recommendTop)
	if err != nil {
		return err
	}
	format, err := parseFormat(recommendFormat)
	if err != nil {
		return err
	}

	st, err := openExistingStore()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := analyzeStored(st, th)
	if err != nil {
		return err
	}

	recs := affinity.Recommendations(result.rules, item, top)
	if format != formatTable {
		return writeRules(cmd.OutOrStdout(), recs, format)
	}

	if len(recs) == 0 && result.stats.ItemCount(item) == 0 {
		return fmt.Errorf("item %q does not appear in any stored transaction", item)
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderRecommendations(item, result.names[item], recs))
	return nil
}
