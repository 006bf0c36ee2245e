package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/output"
)

var (
	explainMinSupport    float64
	explainMinConfidence float64

	explainCmd = &cobra.Command{
		Use:   "explain <item-a> <item-b>",
		Short: "Show how the metrics of one product pair are computed",
		Long: `Display the counts behind the support, confidence and lift of a product pair
and whether the pair passes the current thresholds.

Pairs that never appear together are explained too, so you can see why a
rule you expected is missing from 'basketlift analyze'.`,
		Example: `  # Explain milk and bread
  basketlift explain P001 P002

  # Check a pair against a stricter support threshold
  basketlift explain P003 P004 --min-support 0.05`,
		Args: cobra.ExactArgs(2),
		RunE: runExplain,
	}
)

func init() {
	def := affinity.DefaultThresholds()
	explainCmd.Flags().Float64Var(&explainMinSupport, "min-support", def.MinSupport, "minimum pair support (0-1)")
	explainCmd.Flags().Float64Var(&explainMinConfidence, "min-confidence", def.MinConfidence, "minimum confidence in either direction (0-1)")
	RootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	a, b := args[0], args[1]
	if a == b {
		return fmt.Errorf("explain needs two different items, got %q twice", a)
	}

	th, err := thresholds(cmd, explainMinSupport, explainMinConfidence)
	if err != nil {
		return err
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

	for _, item := range []string{a, b} {
		if stats.ItemCount(item) == 0 {
			return fmt.Errorf("item %q does not appear in any stored transaction", item)
		}
	}

	names, err := loadNames(st)
	if err != nil {
		return err
	}

	renderExplanation(cmd.OutOrStdout(), stats, th, a, b, names)
	return nil
}

// pairVerdict applies the rule filter to one pair and says why it was kept
// or dropped.
func pairVerdict(s *affinity.Stats, th affinity.Thresholds, a, b string) (bool, string) {
	if s.Passes(a, b, th) {
		return true, "support and confidence reach the thresholds; both directions are reported"
	}
	if sup := s.Support(a, b); sup < th.MinSupport {
		return false, fmt.Sprintf("support %s is below the minimum %s", formatRatio(sup), formatRatio(th.MinSupport))
	}
	return false, fmt.Sprintf("confidence is below the minimum %s in both directions", formatRatio(th.MinConfidence))
}

func renderExplanation(w io.Writer, s *affinity.Stats, th affinity.Thresholds, a, b string, names map[string]string) {
	const (
		colorReset = "\033[0m"
		colorGreen = "\033[32m"
		colorRed   = "\033[31m"
		colorBold  = "\033[1m"
	)

	total := s.Total()
	na, nb, both := s.ItemCount(a), s.ItemCount(b), s.PairCount(a, b)

	fmt.Fprintf(w, "\n%sPair: %s + %s%s\n", colorBold, output.Label(a, names[a]), output.Label(b, names[b]), colorReset)
	fmt.Fprintf(w, "Transactions: %d\n", total)
	fmt.Fprintf(w, "A = %s, B = %s\n", a, b)

	pct := func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }

	fmt.Fprintln(w, "\nDetailed Breakdown:")
	fmt.Fprintln(w, "┌──────────────────────┬──────────┬──────────────────────────────────────┐")
	fmt.Fprintln(w, "│ Metric               │ Value    │ Detail                               │")
	fmt.Fprintln(w, "├──────────────────────┼──────────┼──────────────────────────────────────┤")
	row := func(metric, value, detail string) {
		fmt.Fprintf(w, "│ %-20s │ %8s │ %-36s │\n", metric, value, truncateDetail(detail, 36))
	}
	row("Baskets with A", fmt.Sprint(na), "support(A) = "+pct(s.Support(a)))
	row("Baskets with B", fmt.Sprint(nb), "support(B) = "+pct(s.Support(b)))
	row("Baskets with both", fmt.Sprint(both), "")
	fmt.Fprintln(w, "├──────────────────────┼──────────┼──────────────────────────────────────┤")
	row("Support", pct(s.Support(a, b)), fmt.Sprintf("%d of %d baskets", both, total))
	row("Confidence A → B", pct(s.Confidence(a, b)), fmt.Sprintf("%d of %d baskets with A", both, na))
	row("Confidence B → A", pct(s.Confidence(b, a)), fmt.Sprintf("%d of %d baskets with B", both, nb))
	row("Lift A → B", fmt.Sprintf("%.3f", s.Lift(a, b)), "confidence(A → B) / support(B)")
	row("Lift B → A", fmt.Sprintf("%.3f", s.Lift(b, a)), "confidence(B → A) / support(A)")
	fmt.Fprintln(w, "└──────────────────────┴──────────┴──────────────────────────────────────┘")

	kept, reason := pairVerdict(s, th, a, b)
	fmt.Fprintf(w, "\n%sThresholds:%s support ≥ %s, confidence ≥ %s\n",
		colorBold, colorReset, formatRatio(th.MinSupport), formatRatio(th.MinConfidence))
	if kept {
		fmt.Fprintf(w, "%sKept:%s %s\n", colorGreen, colorReset, reason)
	} else {
		fmt.Fprintf(w, "%sDropped:%s %s\n", colorRed, colorReset, reason)
	}

	lift := s.Lift(a, b)
	switch {
	case both == 0:
		fmt.Fprintln(w, "The items were never bought together.")
	case lift > 1:
		fmt.Fprintf(w, "Buying one makes the other %.2fx as likely as its baseline.\n", lift)
	case lift < 1:
		fmt.Fprintln(w, "The items are bought together less often than chance would predict.")
	default:
		fmt.Fprintln(w, "The items are bought independently of each other.")
	}
	fmt.Fprintln(w)
}

func truncateDetail(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
