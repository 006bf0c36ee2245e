package app

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/config"
	"github.com/blackwell-systems/basketlift/internal/generator"
	"github.com/blackwell-systems/basketlift/internal/store"
	"github.com/blackwell-systems/basketlift/internal/watcher"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues and check system health",
	Long: `Runs diagnostic checks on your basketlift installation.

Checks:
  • Configuration file loads and validates
  • Database exists and is accessible
  • Transactions and product names are stored
  • Stream file is present and how far the watcher is behind
  • Pipeline test: streamed and batch statistics agree`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running basketlift diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	// Check 1: Configuration
	cfgFile := configPath
	if cfgFile == "" {
		cfgFile = config.FindFile()
	}
	if cfgFile == "" {
		fmt.Fprintln(out, "✓ Configuration: built-in defaults (no config file)")
	} else {
		fmt.Fprintln(out, "✓ Configuration loaded:", cfgFile)
	}

	// Check 2: Database exists
	resolvedDBPath, err := getDBPath()
	if err != nil {
		fmt.Fprintln(out, "✗ Database path error:", err)
		criticalIssues++
	} else if _, err := os.Stat(resolvedDBPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "✗ Database not found at:", resolvedDBPath)
		fmt.Fprintln(out, "  Action: Run 'basketlift import <file>' or 'basketlift generate'")
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ Database found:", resolvedDBPath)
	}

	// Check 3: Database accessible and populated
	if criticalIssues == 0 {
		db, err := store.New(resolvedDBPath)
		if err != nil {
			fmt.Fprintln(out, "✗ Cannot open database:", err)
			criticalIssues++
		} else {
			defer db.Close()
			fmt.Fprintln(out, "✓ Database is accessible")

			txns, err := db.CountTransactions()
			switch {
			case errors.Is(err, store.ErrNotInitialized):
				fmt.Fprintln(out, "✗ Database has no schema")
				fmt.Fprintln(out, "  Action: Run 'basketlift import <file>' or 'basketlift generate'")
				criticalIssues++
			case err != nil:
				fmt.Fprintln(out, "✗ Cannot read transactions:", err)
				criticalIssues++
			case txns == 0:
				fmt.Fprintln(out, "✗ No transactions stored")
				fmt.Fprintln(out, "  Action: Run 'basketlift import <file>' or 'basketlift generate'")
				criticalIssues++
			default:
				fmt.Fprintf(out, "✓ %s transactions stored\n", humanize.Comma(int64(txns)))
			}

			// Product names, warning only
			if err == nil {
				names, err := db.ProductNames()
				if err != nil {
					fmt.Fprintln(out, "⚠ Cannot read products:", err)
					warningIssues++
				} else if len(names) == 0 {
					fmt.Fprintln(out, "⚠ No product names stored, reports will show ids only")
					fmt.Fprintln(out, "  Action: Run 'basketlift import <file> --products <catalogue.csv>'")
					warningIssues++
				} else {
					fmt.Fprintf(out, "✓ %d product names known\n", len(names))
				}
			}
		}
	}

	// Check 4: Stream, warning only
	if settings.Stream.Path == "" {
		fmt.Fprintln(out, "⚠ No stream configured (stream.path), 'basketlift watch' needs --stream")
		warningIssues++
	} else if lag, err := streamLag(settings.Stream.Path, settings.Stream.OffsetPath); err != nil {
		fmt.Fprintln(out, "⚠ Stream not readable:", err)
		warningIssues++
	} else if lag > 0 {
		fmt.Fprintf(out, "⚠ Stream %s has %s not yet processed\n", settings.Stream.Path, humanize.Bytes(uint64(lag)))
		fmt.Fprintln(out, "  Action: Run 'basketlift watch --once'")
		warningIssues++
	} else {
		fmt.Fprintln(out, "✓ Stream up to date:", settings.Stream.Path)
	}

	// Check 5: End-to-end pipeline test
	pipelineStart := time.Now()
	if err := RunPipelineTest(); err != nil {
		fmt.Fprintf(out, "✗ Pipeline test: fail (%v)\n", time.Since(pipelineStart).Round(time.Millisecond))
		fmt.Fprintf(out, "  %v\n", err)
		criticalIssues++
	} else {
		fmt.Fprintf(out, "✓ Pipeline test: pass (%v)\n", time.Since(pipelineStart).Round(time.Millisecond))
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  • Compute rules: basketlift analyze")
		fmt.Fprintln(out, "  • Follow the stream: basketlift watch")
		return nil
	}

	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Fprintf(out, "Found %d warning(s). System is functional but not fully configured.\n", warningIssues)
	return nil
}

// streamLag returns the number of stream bytes past the stored offset.
func streamLag(path, offsetPath string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if offsetPath == "" {
		offsetPath = path + ".offset"
	}

	data, err := os.ReadFile(offsetPath)
	if os.IsNotExist(err) {
		return info.Size(), nil
	}
	if err != nil {
		return 0, err
	}
	var offset int64
	if _, err := fmt.Sscan(string(data), &offset); err != nil {
		return 0, fmt.Errorf("invalid offset file %s: %w", offsetPath, err)
	}
	if offset > info.Size() {
		return 0, nil
	}
	return info.Size() - offset, nil
}

// RunPipelineTest streams a small generated dataset through a watcher feed
// into a scratch in-memory store and checks that the incrementally
// maintained rules match a batch analysis of the same data.
func RunPipelineTest() error {
	gen := generator.DefaultConfig()
	gen.Transactions = 50
	ds, err := generator.Generate(gen)
	if err != nil {
		return fmt.Errorf("generate test data: %w", err)
	}

	dir, err := os.MkdirTemp("", "basketlift-doctor-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	streamPath := filepath.Join(dir, "pipeline.ndjson")
	if err := writeFile(streamPath, false, func(f *os.File) error {
		return generator.WriteStream(f, ds.LineItems)
	}); err != nil {
		return err
	}

	st, err := store.New(":memory:")
	if err != nil {
		return fmt.Errorf("open scratch store: %w", err)
	}
	defer st.Close()
	if err := st.CreateSchema(); err != nil {
		return fmt.Errorf("create scratch schema: %w", err)
	}

	th := affinity.DefaultThresholds()
	updater := affinity.NewUpdater(th)
	feed, err := watcher.New(st, updater, watcher.Config{Path: streamPath})
	if err != nil {
		return err
	}
	if err := feed.CatchUp(); err != nil {
		return fmt.Errorf("stream test data: %w", err)
	}

	stored, err := st.ListLineItems()
	if err != nil {
		return fmt.Errorf("read back line items: %w", err)
	}
	if len(stored) != len(ds.LineItems) {
		return fmt.Errorf("stored %d line items, expected %d", len(stored), len(ds.LineItems))
	}

	batch, err := affinity.NewAnalyzer(th).Analyze(ds.LineItems, nil)
	if err != nil {
		return fmt.Errorf("batch analysis: %w", err)
	}
	return compareRules(io.Discard, updater.CurrentRules(), batch)
}

// compareRules checks that two rule tables hold the same directional rules
// with the same metrics, ignoring order.
func compareRules(w io.Writer, got, want []affinity.Rule) error {
	if len(got) != len(want) {
		return fmt.Errorf("incremental rules: %d, batch rules: %d", len(got), len(want))
	}

	index := make(map[string]affinity.Rule, len(want))
	for _, r := range want {
		index[r.Direction()] = r
	}
	for _, r := range got {
		b, ok := index[r.Direction()]
		if !ok {
			return fmt.Errorf("rule %s missing from batch analysis", r.Direction())
		}
		if !approxEqual(r.Support, b.Support) || !approxEqual(r.Confidence, b.Confidence) || !approxEqual(r.Lift, b.Lift) {
			fmt.Fprintf(w, "incremental %+v\nbatch       %+v\n", r, b)
			return fmt.Errorf("rule %s differs between incremental and batch analysis", r.Direction())
		}
	}
	return nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
