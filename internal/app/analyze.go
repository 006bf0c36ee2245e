package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/charts"
	"github.com/blackwell-systems/basketlift/internal/logging"
	"github.com/blackwell-systems/basketlift/internal/output"
	"github.com/blackwell-systems/basketlift/internal/store"
)

// Report file names written by --report-dir.
const (
	reportFile          = "affinity_report.txt"
	recommendationsFile = "recommendations.csv"
	topAffinitiesFile   = "top_affinities.html"
	heatmapFile         = "affinity_heatmap.html"
)

var (
	analyzeMinSupport    float64
	analyzeMinConfidence float64
	analyzeTop           int
	analyzeMetric        string
	analyzeFormat        string
	analyzeAll           bool
	analyzeReport        bool
	analyzeReportDir     string
	analyzeSave          bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Compute product affinity rules from stored transactions",
		Long: `Run a batch market basket analysis over every stored transaction.

Every pair of products seen in the data is evaluated. A pair is kept when its
support reaches --min-support and at least one direction reaches
--min-confidence; both directions are then reported:

  support(A,B)    = transactions with A and B / all transactions
  confidence(A→B) = support(A,B) / support(A)
  lift(A→B)       = confidence(A→B) / support(B)

Rules are ranked by --metric and the top --top are shown. Thresholds, ranking
and report directory default to the analysis and report sections of the
config file.`,
		Example: `  # Top 10 rules by lift
  basketlift analyze

  # Stricter thresholds, ranked by confidence
  basketlift analyze --min-support 0.05 --min-confidence 0.3 --metric confidence

  # Export every rule as CSV
  basketlift analyze --all --format csv > rules.csv

  # Write the text report, CSV and HTML charts, and save the run
  basketlift analyze --report-dir reports --save`,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}
)

func init() {
	def := affinity.DefaultThresholds()
	analyzeCmd.Flags().Float64Var(&analyzeMinSupport, "min-support", def.MinSupport, "minimum pair support (0-1)")
	analyzeCmd.Flags().Float64Var(&analyzeMinConfidence, "min-confidence", def.MinConfidence, "minimum confidence in either direction (0-1)")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "number of rules to show")
	analyzeCmd.Flags().StringVar(&analyzeMetric, "metric", "lift", "ranking metric: lift, confidence, support")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", formatTable, "output format: table, json, csv")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "show every rule instead of the top N")
	analyzeCmd.Flags().BoolVar(&analyzeReport, "report", false, "write reports to report.output_dir from the config")
	analyzeCmd.Flags().StringVar(&analyzeReportDir, "report-dir", "", "write the text report, CSV and charts to this directory")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "save the rules as an analysis run")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	th, err := thresholds(cmd, analyzeMinSupport, analyzeMinConfidence)
	if err != nil {
		return err
	}
	top, err := topN(cmd, analyzeTop)
	if err != nil {
		return err
	}
	metricName := settings.Analysis.Metric
	if cmd.Flags().Changed("metric") {
		metricName = analyzeMetric
	}
	metric, err := affinity.ParseMetric(metricName)
	if err != nil {
		return err
	}
	format, err := parseFormat(analyzeFormat)
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
	if result.transactions == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No transactions stored. Run 'basketlift import <file>' or 'basketlift generate' first.")
		return nil
	}

	ranked := affinity.TopAffinities(result.rules, len(result.rules), metric)
	shown := ranked
	if !analyzeAll {
		shown = affinity.TopAffinities(ranked, top, metric)
	}

	out := cmd.OutOrStdout()
	if format == formatTable {
		fmt.Fprintf(out, "Analyzed %s transactions: %s rules (min support %s, min confidence %s)\n\n",
			humanize.Comma(int64(result.transactions)),
			humanize.Comma(int64(len(result.rules))),
			formatRatio(th.MinSupport),
			formatRatio(th.MinConfidence))
	}
	if err := writeRules(out, shown, format); err != nil {
		return err
	}

	dir := analyzeReportDir
	if dir == "" && analyzeReport {
		dir = settings.Report.OutputDir
	}
	if dir != "" {
		if err := writeReports(dir, ranked, top, metric); err != nil {
			return err
		}
		if format == formatTable {
			fmt.Fprintf(out, "\nReports written to %s\n", dir)
		}
	}

	if analyzeSave {
		run, err := st.SaveRun(store.Run{
			Source:            "analyze",
			TotalTransactions: result.transactions,
			MinSupport:        th.MinSupport,
			MinConfidence:     th.MinConfidence,
		}, ranked)
		if err != nil {
			return fmt.Errorf("failed to save analysis run: %w", err)
		}
		logging.Info().Str("run", run.ID).Int("rules", run.RuleCount).Msg("saved analysis run")
		if format == formatTable {
			fmt.Fprintf(out, "\nSaved analysis run %s\n", run.ID)
		}
	}

	return nil
}

type analysis struct {
	transactions int
	rules        []affinity.Rule
	names        map[string]string
	stats        *affinity.Stats
}

// analyzeStored runs the batch analyzer over every stored line item.
func analyzeStored(st *store.Store, th affinity.Thresholds) (*analysis, error) {
	items, err := st.ListLineItems()
	if err != nil {
		return nil, err
	}
	names, err := loadNames(st)
	if err != nil {
		return nil, err
	}

	a := affinity.NewAnalyzer(th)
	rules, err := a.Analyze(items, names)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze stored line items: %w", err)
	}

	logging.Debug().
		Int("line_items", len(items)).
		Int("transactions", a.LastStats().Total()).
		Int("rules", len(rules)).
		Msg("batch analysis complete")

	return &analysis{
		transactions: a.LastStats().Total(),
		rules:        rules,
		names:        names,
		stats:        a.LastStats(),
	}, nil
}

// writeReports writes the text report, the recommendations CSV and the two
// HTML charts into dir. rules must already be ranked.
func writeReports(dir string, rules []affinity.Rule, top int, metric affinity.Metric) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, reportFile), false, func(f *os.File) error {
		_, err := f.WriteString(output.RenderReport(rules, top))
		return err
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, recommendationsFile), false, func(f *os.File) error {
		return output.WriteRecommendationsCSV(f, rules)
	}); err != nil {
		return err
	}

	if err := charts.RenderTopAffinities(rules, top, filepath.Join(dir, topAffinitiesFile)); err != nil {
		if errors.Is(err, charts.ErrNoRules) {
			logging.Warn().Msg("no rules above the thresholds, skipping charts")
			return nil
		}
		return err
	}
	if err := charts.RenderHeatmap(rules, metric, filepath.Join(dir, heatmapFile)); err != nil {
		return err
	}

	logging.Info().Str("dir", dir).Int("rules", len(rules)).Msg("reports written")
	return nil
}

// formatRatio renders a threshold as a percentage.
func formatRatio(v float64) string {
	return fmt.Sprintf("%.4g%%", v*100)
}
