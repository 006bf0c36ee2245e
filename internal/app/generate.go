package app

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/generator"
	"github.com/blackwell-systems/basketlift/internal/logging"
	"github.com/blackwell-systems/basketlift/internal/output"
)

// streamIDPrefix starts generated stream ids, keeping them apart from the
// TXN ids of stored data.
const streamIDPrefix = "STREAM"

var (
	generateTransactions int
	generateSeed         int64
	generateStart        string
	generateMinItems     int
	generateMaxItems     int
	generateCSV          string
	generateStream       string
	generateAppend       bool
	generateIDPrefix     string

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic grocery transactions",
		Long: `Generate a synthetic transaction history and store it in the database.

The generator uses a fixed catalogue of ten grocery products and plants a few
known affinities (juice with snacks, milk with bread and eggs, coffee with tea
and sugar), so the analysis has something to find. The same seed always
produces the same data.

By default existing line items are replaced. Use --append to add to them;
appended ids continue after the stored transactions.

With --stream the transactions are appended to an NDJSON stream file for
'basketlift watch' instead of being stored. Stream ids start with STREAM and
continue after the records already in the file.`,
		Example: `  # Generate the default 200 transactions
  basketlift generate

  # Generate 5,000 transactions and also write them as CSV
  basketlift generate --transactions 5000 --csv sales.csv

  # Append 50 transactions to the stream consumed by 'basketlift watch'
  basketlift generate --transactions 50 --seed 7 --stream transactions.ndjson`,
		Args: cobra.NoArgs,
		RunE: runGenerate,
	}
)

func init() {
	def := generator.DefaultConfig()
	generateCmd.Flags().IntVarP(&generateTransactions, "transactions", "n", def.Transactions, "number of transactions")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", def.Seed, "random seed")
	generateCmd.Flags().StringVar(&generateStart, "start", def.Start.Format("2006-01-02"), "first day of the generated period (YYYY-MM-DD)")
	generateCmd.Flags().IntVar(&generateMinItems, "min-items", def.MinItems, "minimum items per basket")
	generateCmd.Flags().IntVar(&generateMaxItems, "max-items", def.MaxItems, "maximum items per basket")
	generateCmd.Flags().StringVar(&generateCSV, "csv", "", "also write line items to this CSV file")
	generateCmd.Flags().StringVar(&generateStream, "stream", "", "append transactions to this NDJSON stream file instead of the database")
	generateCmd.Flags().BoolVar(&generateAppend, "append", false, "keep existing line items")
	generateCmd.Flags().StringVar(&generateIDPrefix, "id-prefix", "", "transaction id prefix (default TXN, or STREAM with --stream)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", generateStart)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", generateStart, err)
	}

	cfg := generator.Config{
		Transactions: generateTransactions,
		Seed:         generateSeed,
		Start:        start,
		MinItems:     generateMinItems,
		MaxItems:     generateMaxItems,
		IDPrefix:     generateIDPrefix,
	}

	var ds *generator.Dataset
	if generateStream != "" {
		ds, err = generateToStream(cfg)
	} else {
		ds, err = generateToStore(cfg)
	}
	if err != nil {
		return err
	}

	if generateCSV != "" {
		if err := writeFile(generateCSV, false, func(f *os.File) error {
			return generator.WriteCSV(f, ds.LineItems)
		}); err != nil {
			return err
		}
	}

	logging.Info().
		Int("transactions", len(ds.Headers)).
		Int("line_items", len(ds.LineItems)).
		Int64("seed", generateSeed).
		Msg("generated dataset")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated %s transactions (%s line items, %d products)\n",
		humanize.Comma(int64(len(ds.Headers))), humanize.Comma(int64(len(ds.LineItems))), len(ds.Products))
	if len(ds.Headers) > 0 {
		fmt.Fprintf(out, "  IDs:    %s to %s\n", ds.Headers[0].TransactionID, ds.Headers[len(ds.Headers)-1].TransactionID)
	}
	if generateCSV != "" {
		fmt.Fprintf(out, "  CSV:    %s\n", generateCSV)
	}
	if generateStream != "" {
		fmt.Fprintf(out, "  Stream: %s\n", generateStream)
		fmt.Fprintln(out, "\nNext: run 'basketlift watch' to consume the stream.")
		return nil
	}
	fmt.Fprintln(out, "\nNext: run 'basketlift analyze' to compute affinity rules.")
	return nil
}

// generateToStore stores a generated dataset. With --append the ids continue
// after the stored transactions, and ids that are already stored are refused
// since they would merge into the existing baskets.
func generateToStore(cfg generator.Config) (*generator.Dataset, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if generateAppend {
		n, err := st.CountTransactions()
		if err != nil {
			return nil, err
		}
		cfg.FirstNumber = n + 1
	}
	ds, err := generator.Generate(cfg)
	if err != nil {
		return nil, err
	}

	if generateAppend {
		ids := make([]string, len(ds.Headers))
		for i, h := range ds.Headers {
			ids[i] = h.TransactionID
		}
		stored, err := st.HasTransactions(ids)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if stored[id] {
				return nil, fmt.Errorf("transaction %s is already stored, use --id-prefix to generate distinct ids", id)
			}
		}
	}

	if err := st.UpsertProducts(ds.Products); err != nil {
		return nil, fmt.Errorf("failed to store products: %w", err)
	}
	if !generateAppend {
		if err := st.ClearLineItems(); err != nil {
			return nil, fmt.Errorf("failed to clear line items: %w", err)
		}
	}
	if err := storeInChunks(st.InsertLineItems, ds.LineItems); err != nil {
		return nil, err
	}
	return ds, nil
}

// generateToStream appends a generated dataset to the stream file instead of
// the database, numbering ids after the records already in the stream.
func generateToStream(cfg generator.Config) (*generator.Dataset, error) {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = streamIDPrefix
	}
	n, err := countStreamRecords(generateStream)
	if err != nil {
		return nil, err
	}
	cfg.FirstNumber = n + 1

	ds, err := generator.Generate(cfg)
	if err != nil {
		return nil, err
	}
	if err := writeFile(generateStream, true, func(f *os.File) error {
		return generator.WriteStream(f, ds.LineItems)
	}); err != nil {
		return nil, err
	}
	return ds, nil
}

// countStreamRecords returns the number of non-blank lines in a stream file.
// A missing file holds none.
func countStreamRecords(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, nil
}

// insertChunk is the number of line items stored per SQL transaction when
// loading large inputs.
const insertChunk = 5000

// storeInChunks inserts items in chunks with a progress bar. Chunks never
// split a transaction id that is contiguous in items.
func storeInChunks(insert func([]basket.LineItem) error, items []basket.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	progress := output.NewProgress(len(items), "line items")
	for start := 0; start < len(items); {
		end := min(start+insertChunk, len(items))
		for end < len(items) && items[end].TransactionID == items[end-1].TransactionID {
			end++
		}
		if err := insert(items[start:end]); err != nil {
			return fmt.Errorf("failed to store line items: %w", err)
		}
		progress.Advance(end-start, countTransactions(items[start:end]))
		start = end
	}
	progress.Finish()
	return nil
}

// countTransactions counts the runs of equal transaction ids in items.
func countTransactions(items []basket.LineItem) int {
	n := 0
	for i, li := range items {
		if i == 0 || li.TransactionID != items[i-1].TransactionID {
			n++
		}
	}
	return n
}

// writeFile creates or appends to path and runs write on it.
func writeFile(path string, appendMode bool, write func(*os.File) error) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
