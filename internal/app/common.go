package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/config"
	"github.com/blackwell-systems/basketlift/internal/ingest"
	"github.com/blackwell-systems/basketlift/internal/output"
	"github.com/blackwell-systems/basketlift/internal/store"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// openStore opens the database, creating it and its schema if needed.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// openExistingStore opens a database that must already hold data.
func openExistingStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, store.ErrNotInitialized
		}
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// loadNames returns product names from the store with the user's display
// name overrides applied.
func loadNames(st *store.Store) (map[string]string, error) {
	names, err := st.ProductNames()
	if err != nil {
		return nil, err
	}

	dir, err := config.Dir()
	if err != nil {
		return names, nil
	}
	overrides, err := config.LoadItemNames(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load item names: %w", err)
	}
	return overrides.Apply(names), nil
}

// columnMapping converts the configured column names.
func columnMapping() ingest.ColumnMapping {
	c := settings.Columns
	return ingest.ColumnMapping{
		TransactionID: c.TransactionID,
		ItemID:        c.ItemID,
		Name:          c.Name,
		Quantity:      c.Quantity,
		UnitPrice:     c.UnitPrice,
		PurchasedAt:   c.PurchasedAt,
	}
}

// thresholds resolves the rule thresholds: flags set on the command line win
// over the configuration.
func thresholds(cmd *cobra.Command, minSupport, minConfidence float64) (affinity.Thresholds, error) {
	th := affinity.Thresholds{
		MinSupport:    settings.Analysis.MinSupport,
		MinConfidence: settings.Analysis.MinConfidence,
	}
	if cmd.Flags().Changed("min-support") {
		th.MinSupport = minSupport
	}
	if cmd.Flags().Changed("min-confidence") {
		th.MinConfidence = minConfidence
	}

	if th.MinSupport < 0 || th.MinSupport > 1 {
		return th, fmt.Errorf("invalid min-support: %g (must be between 0 and 1)", th.MinSupport)
	}
	if th.MinConfidence < 0 || th.MinConfidence > 1 {
		return th, fmt.Errorf("invalid min-confidence: %g (must be between 0 and 1)", th.MinConfidence)
	}
	return th, nil
}

// topN resolves the --top flag against analysis.top_n.
func topN(cmd *cobra.Command, flagValue int) (int, error) {
	n := settings.Analysis.TopN
	if cmd.Flags().Changed("top") {
		n = flagValue
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid top: %d (must be positive)", n)
	}
	return n, nil
}

// parseFormat validates a --format value.
func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case formatTable, formatJSON, formatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be table, json, or csv)", s)
	}
}

// writeRules renders rules in the requested format.
func writeRules(w io.Writer, rules []affinity.Rule, format string) error {
	switch format {
	case formatJSON:
		if rules == nil {
			rules = []affinity.Rule{}
		}
		return output.WriteJSON(w, rules)
	case formatCSV:
		return output.WriteRecommendationsCSV(w, rules)
	default:
		_, err := fmt.Fprint(w, output.RenderRuleTable(rules))
		return err
	}
}
