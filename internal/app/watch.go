package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/logging"
	"github.com/blackwell-systems/basketlift/internal/output"
	"github.com/blackwell-systems/basketlift/internal/store"
	"github.com/blackwell-systems/basketlift/internal/watcher"
)

var (
	watchStream        string
	watchOffsetFile    string
	watchPollInterval  time.Duration
	watchBatchSize     int
	watchTop           int
	watchMinSupport    float64
	watchMinConfidence float64
	watchOnce          bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep affinity statistics current from a transaction stream",
		Long: `Tail a stream of transactions and update the co-occurrence statistics as
they arrive.

The stream is an NDJSON file with one transaction per line:

  {"transaction_id":"T1","items":[{"product_id":"P001"},{"product_id":"P002"}]}

On start the statistics are rebuilt from every stored line item. Each new
transaction is then stored and counted incrementally, without reprocessing
history, and the current top affinities are printed after every update.

The position in the stream is kept in an offset file next to it, so a
restarted watch continues where it stopped. Press Ctrl+C to stop.`,
		Example: `  # Watch the stream configured in stream.path
  basketlift watch

  # Watch a specific file, showing the top 5 rules
  basketlift watch --stream transactions.ndjson --top 5

  # Catch up with the stream and exit
  basketlift watch --stream transactions.ndjson --once`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	def := affinity.DefaultThresholds()
	watchCmd.Flags().StringVar(&watchStream, "stream", "", "NDJSON stream file (default: stream.path from the config)")
	watchCmd.Flags().StringVar(&watchOffsetFile, "offset-file", "", "offset tracking file (default: <stream>.offset)")
	watchCmd.Flags().DurationVar(&watchPollInterval, "poll-interval", watcher.DefaultPollInterval, "backup polling interval")
	watchCmd.Flags().IntVar(&watchBatchSize, "batch-size", watcher.DefaultBatchSize, "maximum transactions per update")
	watchCmd.Flags().IntVar(&watchTop, "top", 10, "number of rules to show after each update")
	watchCmd.Flags().Float64Var(&watchMinSupport, "min-support", def.MinSupport, "minimum pair support (0-1)")
	watchCmd.Flags().Float64Var(&watchMinConfidence, "min-confidence", def.MinConfidence, "minimum confidence in either direction (0-1)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "process the stream once and exit")
}

func runWatch(cmd *cobra.Command, args []string) error {
	th, err := thresholds(cmd, watchMinSupport, watchMinConfidence)
	if err != nil {
		return err
	}
	top, err := topN(cmd, watchTop)
	if err != nil {
		return err
	}

	cfg := watcher.Config{
		Path:         settings.Stream.Path,
		OffsetPath:   settings.Stream.OffsetPath,
		PollInterval: settings.Stream.PollInterval,
		BatchSize:    settings.Stream.BatchSize,
	}
	if watchStream != "" {
		cfg.Path = watchStream
	}
	if watchOffsetFile != "" {
		cfg.OffsetPath = watchOffsetFile
	}
	if cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = watchPollInterval
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = watchBatchSize
	}
	if cfg.Path == "" {
		return fmt.Errorf("no stream file: use --stream or set stream.path in the config")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	updater, err := initUpdater(st, th)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %s stored transactions (%d items, %d pairs)\n",
		humanize.Comma(int64(updater.Stats().Total())),
		len(updater.Stats().Items()),
		len(updater.Stats().Pairs()))

	cfg.OnUpdate = func(u watcher.Update) {
		printUpdate(out, st, updater, u, top)
	}
	feed, err := watcher.New(st, updater, cfg)
	if err != nil {
		return err
	}

	if watchOnce {
		if err := feed.CatchUp(); err != nil {
			return fmt.Errorf("failed to process stream: %w", err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", cfg.Path)
	logging.Info().Str("path", cfg.Path).Dur("poll_interval", cfg.PollInterval).Msg("watching stream")

	if err := feed.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	fmt.Fprintln(out, "Stopped.")
	return nil
}

// initUpdater rebuilds the running statistics from every stored line item.
func initUpdater(st *store.Store, th affinity.Thresholds) (*affinity.Updater, error) {
	spinner := output.NewSpinner("Rebuilding co-occurrence statistics")
	spinner.Start()
	defer spinner.Stop()

	items, err := st.ListLineItems()
	if err != nil {
		return nil, err
	}

	updater := affinity.NewUpdater(th)
	if err := updater.Initialize(items); err != nil {
		return nil, fmt.Errorf("failed to rebuild statistics: %w", err)
	}
	return updater, nil
}

// printUpdate prints the pass summary and the current top rules by lift.
func printUpdate(w io.Writer, st *store.Store, updater *affinity.Updater, u watcher.Update, top int) {
	fmt.Fprintf(w, "\n[%s] +%d transactions", time.Now().Format("15:04:05"), u.Transactions)
	if u.Skipped > 0 {
		fmt.Fprintf(w, " (%d skipped)", u.Skipped)
	}
	fmt.Fprintf(w, ", %s total\n\n", humanize.Comma(int64(u.Stats.TotalTransactions)))

	rules := updater.TopAffinities(top)
	names, err := loadNames(st)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to load product names")
	} else {
		affinity.Annotate(rules, names)
	}
	fmt.Fprint(w, output.RenderRuleTable(rules))
}
