package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/basket"
)

// Product operations

// UpsertProducts inserts or replaces products in a single transaction.
func (s *Store) UpsertProducts(products []Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO products (id, name, category, unit_price)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return wrap("prepare product insert", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.Exec(p.ID, p.Name, p.Category, p.UnitPrice); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	return nil
}

// ListProducts returns all products ordered by id.
func (s *Store) ListProducts() ([]Product, error) {
	rows, err := s.db.Query(`
		SELECT id, name, COALESCE(category, ''), COALESCE(unit_price, 0)
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, wrap("list products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// ProductNames returns a product id → name lookup.
func (s *Store) ProductNames() (map[string]string, error) {
	products, err := s.ListProducts()
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

// Line item operations

// InsertLineItems stores items in a single transaction. Either every item is
// written or none is.
func (s *Store) InsertLineItems(items []basket.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO line_items (transaction_id, item_id, quantity, unit_price, purchased_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return wrap("prepare line item insert", err)
	}
	defer stmt.Close()

	for _, li := range items {
		if _, err := stmt.Exec(li.TransactionID, li.ItemID, li.Quantity, li.UnitPrice, formatTime(li.PurchasedAt)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("failed to insert line item %s/%s: %w", li.TransactionID, li.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit line items: %w", err)
	}
	return nil
}

// ListLineItems returns every stored line item in insertion order.
func (s *Store) ListLineItems() ([]basket.LineItem, error) {
	items, _, err := s.ListLineItemsAfter(0)
	return items, err
}

// ListLineItemsAfter returns line items with a row id greater than afterID,
// in insertion order, along with the highest row id returned (or afterID if
// there are none).
func (s *Store) ListLineItemsAfter(afterID int64) ([]basket.LineItem, int64, error) {
	rows, err := s.db.Query(`
		SELECT id, transaction_id, item_id, quantity, COALESCE(unit_price, 0), COALESCE(purchased_at, '')
		FROM line_items
		WHERE id > ?
		ORDER BY id
	`, afterID)
	if err != nil {
		return nil, afterID, wrap("list line items", err)
	}
	defer rows.Close()

	lastID := afterID
	var items []basket.LineItem
	for rows.Next() {
		var (
			li          basket.LineItem
			purchasedAt string
		)
		if err := rows.Scan(&lastID, &li.TransactionID, &li.ItemID, &li.Quantity, &li.UnitPrice, &purchasedAt); err != nil {
			return nil, afterID, fmt.Errorf("failed to scan line item row: %w", err)
		}
		if li.PurchasedAt, err = parseTime(purchasedAt); err != nil {
			return nil, afterID, fmt.Errorf("failed to parse purchased_at for %s: %w", li.TransactionID, err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, afterID, fmt.Errorf("error iterating line items: %w", err)
	}
	return items, lastID, nil
}

// CountTransactions returns the number of distinct transactions stored.
func (s *Store) CountTransactions() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT transaction_id) FROM line_items").Scan(&n); err != nil {
		return 0, wrap("count transactions", err)
	}
	return n, nil
}

// lookupChunk keeps IN lists below SQLite's bound-parameter limit.
const lookupChunk = 500

// HasTransactions reports which of ids already have stored line items. Ids
// that are not stored are absent from the returned set.
func (s *Store) HasTransactions(ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for start := 0; start < len(ids); start += lookupChunk {
		chunk := ids[start:min(start+lookupChunk, len(ids))]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := "SELECT DISTINCT transaction_id FROM line_items WHERE transaction_id IN (?" +
			strings.Repeat(",?", len(chunk)-1) + ")"

		rows, err := s.db.Query(query, args...)
		if err != nil {
			return nil, wrap("look up transactions", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan transaction id: %w", err)
			}
			found[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating transaction ids: %w", err)
		}
	}
	return found, nil
}

// CountLineItems returns the number of stored line items.
func (s *Store) CountLineItems() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM line_items").Scan(&n); err != nil {
		return 0, wrap("count line items", err)
	}
	return n, nil
}

// ClearLineItems removes every stored line item.
func (s *Store) ClearLineItems() error {
	if _, err := s.db.Exec("DELETE FROM line_items"); err != nil {
		return wrap("clear line items", err)
	}
	return nil
}

// Analysis run operations

// SaveRun records a batch analysis and its rules in one transaction. A new
// uuid is assigned when run.ID is empty; CreatedAt defaults to now and
// RuleCount is always len(rules). The stored run is returned.
func (s *Store) SaveRun(run Run, rules []affinity.Rule) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.RuleCount = len(rules)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO analysis_runs (id, created_at, source, total_transactions, min_support, min_confidence, rule_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), run.Source, run.TotalTransactions,
		run.MinSupport, run.MinConfidence, run.RuleCount)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, wrap("insert analysis run", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO analysis_rules (run_id, position, item_a, item_b, support, confidence, lift)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("failed to prepare rule insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		if _, err := stmt.Exec(run.ID, i, r.ItemA, r.ItemB, r.Support, r.Confidence, r.Lift); err != nil {
			tx.Rollback() //nolint:errcheck
			return nil, fmt.Errorf("failed to insert rule %s: %w", r.Direction(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit analysis run: %w", err)
	}
	return &run, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, COALESCE(source, ''), total_transactions, min_support, min_confidence, rule_count
		FROM analysis_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis run %s not found", id)
	}
	if err != nil {
		return nil, wrap("get analysis run "+id, err)
	}
	return run, nil
}

// ListRuns returns saved runs, newest first. A limit of zero or less returns
// every run.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `
		SELECT id, created_at, COALESCE(source, ''), total_transactions, min_support, min_confidence, rule_count
		FROM analysis_runs
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap("list analysis runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}

// GetRunRules returns the rules saved with a run, in their original order.
func (s *Store) GetRunRules(runID string) ([]affinity.Rule, error) {
	rows, err := s.db.Query(`
		SELECT item_a, item_b, support, confidence, lift
		FROM analysis_rules
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, wrap("get rules for run "+runID, err)
	}
	defer rows.Close()

	rules := make([]affinity.Rule, 0)
	for rows.Next() {
		var r affinity.Rule
		if err := rows.Scan(&r.ItemA, &r.ItemB, &r.Support, &r.Confidence, &r.Lift); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// DeleteRun removes a run and, through the foreign key, its rules.
func (s *Store) DeleteRun(id string) error {
	result, err := s.db.Exec("DELETE FROM analysis_runs WHERE id = ?", id)
	if err != nil {
		return wrap("delete analysis run "+id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("analysis run %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
	)
	err := row.Scan(&run.ID, &createdAt, &run.Source, &run.TotalTransactions,
		&run.MinSupport, &run.MinConfidence, &run.RuleCount)
	if err != nil {
		return nil, err
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for run %s: %w", run.ID, err)
	}
	return &run, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
