// Package output provides terminal output utilities for basketlift.
//
// This package includes:
//   - Table rendering for association rules, statistics snapshots, and saved runs
//   - Text reports and recommendation exports (CSV, JSON)
//   - Progress bars and spinners for long-running operations
//
// Tables use plain characters and ANSI colors when stdout is a terminal and
// NO_COLOR is unset. Progress indicators are safe for concurrent use.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/store"
)

// ANSI color codes for lift bands
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// StrongLift is the lift at or above which a rule is highlighted as strong.
const StrongLift = 1.5

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// liftColor bands lift: strong positive, positive, independent, negative.
func liftColor(lift float64) string {
	switch {
	case lift >= StrongLift:
		return colorGreen
	case lift > 1:
		return colorYellow
	case lift == 1:
		return colorGray
	default:
		return colorRed
	}
}

// Label formats an item for display: "Name (ID)" when a name is known.
func Label(id, name string) string {
	if name == "" {
		return id
	}
	return name + " (" + id + ")"
}

// RenderRuleTable renders rules in the order given.
func RenderRuleTable(rules []affinity.Rule) string {
	if len(rules) == 0 {
		return "No association rules found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-4s %-28s %-28s %9s %11s %7s\n",
		"#", "If customer buys", "They also buy", "Support", "Confidence", "Lift"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for i, r := range rules {
		lift := fmt.Sprintf("%7.3f", r.Lift)
		sb.WriteString(fmt.Sprintf("%-4d %-28s %-28s %9s %11s %s\n",
			i+1,
			truncate(Label(r.ItemA, r.ItemAName), 28),
			truncate(Label(r.ItemB, r.ItemBName), 28),
			formatPercent(r.Support),
			formatPercent(r.Confidence),
			colorize(liftColor(r.Lift), lift)))
	}

	return sb.String()
}

// RenderStatistics renders a co-occurrence snapshot. names may be nil.
func RenderStatistics(snap affinity.Snapshot, names map[string]string) string {
	var sb strings.Builder

	sb.WriteString("Co-occurrence Statistics\n")
	sb.WriteString(strings.Repeat("─", 40))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%-22s %s\n", "Transactions:", humanize.Comma(int64(snap.TotalTransactions))))
	sb.WriteString(fmt.Sprintf("%-22s %s\n", "Unique items:", humanize.Comma(int64(snap.UniqueItems))))
	sb.WriteString(fmt.Sprintf("%-22s %s\n", "Unique pairs:", humanize.Comma(int64(snap.UniquePairs))))

	item := "—"
	if snap.MostFrequentItem != "" {
		item = Label(snap.MostFrequentItem, names[snap.MostFrequentItem])
	}
	sb.WriteString(fmt.Sprintf("%-22s %s\n", "Most frequent item:", item))

	pair := "—"
	if p := snap.MostFrequentPair; p != nil {
		pair = Label(p.A, names[p.A]) + " + " + Label(p.B, names[p.B])
	}
	sb.WriteString(fmt.Sprintf("%-22s %s\n", "Most frequent pair:", pair))

	return sb.String()
}

// RenderRecommendations renders "customers who buy X also buy" for item,
// from rules already filtered and ranked for it.
func RenderRecommendations(item, name string, rules []affinity.Rule) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Customers who buy %s also buy:\n", Label(item, name)))
	if len(rules) == 0 {
		sb.WriteString("  (no associations above the current thresholds)\n")
		return sb.String()
	}

	for i, r := range rules {
		sb.WriteString(fmt.Sprintf("  %2d. %-32s %s of the time, lift %s\n",
			i+1,
			truncate(Label(r.ItemB, r.ItemBName), 32),
			formatPercent(r.Confidence),
			colorize(liftColor(r.Lift), fmt.Sprintf("%.2f", r.Lift))))
	}
	return sb.String()
}

// RenderRunTable renders saved analysis runs.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No saved analysis runs.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-36s  %-16s %-12s %8s %8s %6s\n",
		"Run", "Created", "Transactions", "Min Sup", "Min Conf", "Rules"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%-36s  %-16s %12s %8s %8s %6d\n",
			r.ID,
			truncate(formatRelativeTime(r.CreatedAt), 16),
			humanize.Comma(int64(r.TotalTransactions)),
			formatPercent(r.MinSupport),
			formatPercent(r.MinConfidence),
			r.RuleCount))
	}
	return sb.String()
}

// formatPercent renders a ratio in [0,1] as a percentage.
func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
