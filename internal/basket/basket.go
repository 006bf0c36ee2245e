// Package basket groups purchase line items into baskets: the set of distinct
// item identifiers bought together in one transaction.
package basket

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Validation errors returned by the builders. They are wrapped with the index
// of the offending line item, so compare with errors.Is.
var (
	ErrMissingTransactionID = errors.New("line item has no transaction id")
	ErrMissingItemID        = errors.New("line item has no item id")
	ErrMixedTransactions    = errors.New("line items span more than one transaction")
)

// LineItem is a single purchased product within a transaction.
// Only TransactionID and ItemID feed the statistics; the remaining fields
// are carried through for storage and reporting.
type LineItem struct {
	TransactionID string
	ItemID        string
	Name          string
	Quantity      int
	UnitPrice     float64
	PurchasedAt   time.Time
}

// Basket is the sorted, deduplicated set of item ids in one transaction.
type Basket []string

// Transaction pairs a transaction id with its basket.
type Transaction struct {
	ID    string
	Items Basket
}

// New builds a basket from item ids, dropping duplicates and empty ids.
func New(ids ...string) Basket {
	seen := make(map[string]struct{}, len(ids))
	b := make(Basket, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		b = append(b, id)
	}
	sort.Strings(b)
	return b
}

// Contains reports whether the basket holds id.
func (b Basket) Contains(id string) bool {
	i := sort.SearchStrings(b, id)
	return i < len(b) && b[i] == id
}

// Group returns one Transaction per distinct transaction id, in the order
// each id is first seen. Every line item must carry both ids.
func Group(items []LineItem) ([]Transaction, error) {
	if len(items) == 0 {
		return []Transaction{}, nil
	}

	var order []string
	members := make(map[string][]string)

	for i, li := range items {
		if err := validate(i, li); err != nil {
			return nil, err
		}
		if _, ok := members[li.TransactionID]; !ok {
			order = append(order, li.TransactionID)
		}
		members[li.TransactionID] = append(members[li.TransactionID], li.ItemID)
	}

	txns := make([]Transaction, len(order))
	for i, id := range order {
		txns[i] = Transaction{ID: id, Items: New(members[id]...)}
	}
	return txns, nil
}

// Build returns the baskets of items, one per transaction.
func Build(items []LineItem) ([]Basket, error) {
	txns, err := Group(items)
	if err != nil {
		return nil, err
	}
	baskets := make([]Basket, len(txns))
	for i, t := range txns {
		baskets[i] = t.Items
	}
	return baskets, nil
}

// FromItems builds the basket of a single transaction. All line items must
// belong to the same transaction.
func FromItems(items []LineItem) (Basket, error) {
	var txnID string
	ids := make([]string, 0, len(items))
	for i, li := range items {
		if err := validate(i, li); err != nil {
			return nil, err
		}
		if txnID == "" {
			txnID = li.TransactionID
		} else if li.TransactionID != txnID {
			return nil, fmt.Errorf("line %d: %w (%s, %s)", i, ErrMixedTransactions, txnID, li.TransactionID)
		}
		ids = append(ids, li.ItemID)
	}
	return New(ids...), nil
}

func validate(i int, li LineItem) error {
	if li.TransactionID == "" {
		return fmt.Errorf("line %d: %w", i, ErrMissingTransactionID)
	}
	if li.ItemID == "" {
		return fmt.Errorf("line %d: %w", i, ErrMissingItemID)
	}
	return nil
}
