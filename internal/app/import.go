package app

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/ingest"
	"github.com/blackwell-systems/basketlift/internal/logging"
	"github.com/blackwell-systems/basketlift/internal/store"
)

var (
	importFormat   string
	importProducts string
	importReplace  bool

	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import line items from a CSV, TSV, JSON or NDJSON file",
		Long: `Import point-of-sale line items into the basketlift database.

The file format is taken from the extension (.csv, .tsv, .json, .jsonl,
.ndjson) unless --format is given. Columns are matched by name using the
columns section of the config file; the defaults are:

  transaction_id, product_id, product_name, quantity, unit_price, purchased_at

Only the transaction and product id columns are required. Every row is
validated before anything is stored, so a bad file leaves the database
untouched. Product names found in the file are registered for reports.`,
		Example: `  # Import a CSV export
  basketlift import sales.csv

  # Import with a separate product catalogue
  basketlift import sales.csv --products products.csv

  # Replace all stored line items with a JSON export
  basketlift import export.json --replace

  # Import a file without an extension
  basketlift import dump.txt --format tsv`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
)

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "input format: csv, tsv, json, jsonl (default: from extension)")
	importCmd.Flags().StringVar(&importProducts, "products", "", "product catalogue CSV (product_id, product_name, category, unit_price)")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "delete existing line items first")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]

	var (
		items []basket.LineItem
		err   error
	)
	if importFormat != "" {
		format, ferr := ingest.ParseFormat(importFormat)
		if ferr != nil {
			return ferr
		}
		items, err = ingest.ReadFormat(path, format, columnMapping())
	} else {
		items, err = ingest.Read(path, columnMapping())
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Reject files the engine would reject before touching the database.
	txns, err := basket.Group(items)
	if err != nil {
		return fmt.Errorf("invalid line items in %s: %w", path, err)
	}

	var products []store.Product
	if importProducts != "" {
		products, err = ingest.ReadProducts(importProducts)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", importProducts, err)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if len(products) > 0 {
		if err := st.UpsertProducts(products); err != nil {
			return fmt.Errorf("failed to store products: %w", err)
		}
	}
	if err := registerNames(st, items); err != nil {
		return err
	}

	if importReplace {
		if err := st.ClearLineItems(); err != nil {
			return fmt.Errorf("failed to clear line items: %w", err)
		}
	}
	if err := storeInChunks(st.InsertLineItems, items); err != nil {
		return err
	}

	logging.Info().
		Str("path", path).
		Int("transactions", len(txns)).
		Int("line_items", len(items)).
		Msg("imported line items")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %s line items in %s transactions from %s\n",
		humanize.Comma(int64(len(items))), humanize.Comma(int64(len(txns))), path)
	if len(products) > 0 {
		fmt.Fprintf(out, "Loaded %d products from %s\n", len(products), importProducts)
	}
	return nil
}

// registerNames stores names carried on line items for products the store
// does not know by name yet.
func registerNames(st *store.Store, items []basket.LineItem) error {
	known, err := st.ProductNames()
	if err != nil {
		return err
	}

	var fresh []store.Product
	for _, p := range ingest.ProductsFromItems(items) {
		if known[p.ID] == "" {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := st.UpsertProducts(fresh); err != nil {
		return fmt.Errorf("failed to store product names: %w", err)
	}
	return nil
}
