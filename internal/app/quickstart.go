package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/config"
	"github.com/blackwell-systems/basketlift/internal/generator"
	"github.com/blackwell-systems/basketlift/internal/output"
)

// quickstartStreamFile is the sample stream written under the data directory.
const quickstartStreamFile = "transactions.ndjson"

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Set up basketlift with demo data in one step",
	Long: `Runs the complete basketlift setup workflow in a single command.

Steps performed:
  1. Load synthetic demo transactions (skipped if transactions are stored)
  2. Write a starter config file (skipped if one exists)
  3. Write a sample transaction stream for 'basketlift watch'
  4. Run a self-test to confirm streamed and batch statistics agree

This command is non-interactive and safe to run more than once.`,
	Args: cobra.NoArgs,
	RunE: runQuickstart,
}

func init() {
	RootCmd.AddCommand(quickstartCmd)
}

func runQuickstart(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Welcome to basketlift! Running end-to-end setup...")
	fmt.Fprintln(out)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// ── Step 1: Demo data ─────────────────────────────────────────────────────
	fmt.Fprintln(out, "Step 1/4: Loading demo transactions")
	txns, err := st.CountTransactions()
	if err != nil {
		return err
	}
	if txns > 0 {
		fmt.Fprintf(out, "  ✓ Database already holds %s transactions, skipping demo data\n", humanize.Comma(int64(txns)))
	} else {
		ds, err := generator.Generate(generator.DefaultConfig())
		if err != nil {
			return err
		}
		if err := st.UpsertProducts(ds.Products); err != nil {
			return fmt.Errorf("failed to store products: %w", err)
		}
		if err := storeInChunks(st.InsertLineItems, ds.LineItems); err != nil {
			return err
		}
		fmt.Fprintf(out, "  ✓ Loaded %d transactions over %d products\n", len(ds.Headers), len(ds.Products))
	}
	fmt.Fprintln(out)

	// ── Step 2: Config file ───────────────────────────────────────────────────
	fmt.Fprintln(out, "Step 2/4: Writing a starter config file")
	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	streamPath := settings.Stream.Path
	if existing := config.FindFile(); existing != "" || configPath != "" {
		if existing == "" {
			existing = configPath
		}
		fmt.Fprintf(out, "  ✓ Using existing config %s\n", existing)
	} else {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		if streamPath == "" {
			streamPath = filepath.Join(dataDir, quickstartStreamFile)
		}
		starter := *settings
		starter.Stream.Path = streamPath
		path := filepath.Join(dir, "config.yaml")
		if err := config.Save(path, &starter); err != nil {
			fmt.Fprintf(out, "  ⚠ Could not write config: %v\n", err)
		} else {
			settings = &starter
			fmt.Fprintf(out, "  ✓ Wrote %s\n", path)
		}
	}
	fmt.Fprintln(out)

	// ── Step 3: Sample stream ─────────────────────────────────────────────────
	fmt.Fprintln(out, "Step 3/4: Writing a sample transaction stream")
	if streamPath == "" {
		fmt.Fprintln(out, "  ⚠ No stream.path configured, skipping")
	} else if _, err := os.Stat(streamPath); err == nil {
		fmt.Fprintf(out, "  ✓ Stream %s already exists\n", streamPath)
	} else {
		gen := generator.DefaultConfig()
		gen.Transactions = 25
		gen.Seed++
		gen.IDPrefix = streamIDPrefix
		ds, err := generator.Generate(gen)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(streamPath), 0755); err != nil {
			return fmt.Errorf("failed to create stream directory: %w", err)
		}
		if err := writeFile(streamPath, true, func(f *os.File) error {
			return generator.WriteStream(f, ds.LineItems)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "  ✓ Wrote %d transactions to %s\n", len(ds.Headers), streamPath)
	}
	fmt.Fprintln(out)

	// ── Step 4: Self-test ─────────────────────────────────────────────────────
	fmt.Fprintln(out, "Step 4/4: Running self-test")
	spinner := output.NewSpinner("Streaming test transactions and comparing with batch analysis")
	spinner.Start()
	if err := RunPipelineTest(); err != nil {
		spinner.StopWithMessage(fmt.Sprintf("  ⚠ Self-test failed: %v", err))
		fmt.Fprintln(out, "  Run 'basketlift doctor' for diagnostics")
	} else {
		spinner.StopWithMessage("  ✓ Streamed and batch statistics agree")
	}
	fmt.Fprintln(out)

	// ── Summary ───────────────────────────────────────────────────────────────
	result, err := analyzeStored(st, affinity.Thresholds{
		MinSupport:    settings.Analysis.MinSupport,
		MinConfidence: settings.Analysis.MinConfidence,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Setup complete! Strongest affinities so far:")
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderRuleTable(affinity.TopAffinities(result.rules, 5, affinity.MetricLift)))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "What next:")
	fmt.Fprintln(out, "  • Full ranking and reports: basketlift analyze --report")
	fmt.Fprintln(out, "  • What sells with a product: basketlift recommend P001")
	if streamPath != "" {
		fmt.Fprintln(out, "  • Consume the sample stream: basketlift watch --once")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Run diagnostics: basketlift doctor")
	return nil
}
