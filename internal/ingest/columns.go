package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

// ColumnMapping names the source columns holding each line-item field.
// TransactionID and ItemID are required; an empty optional name means the
// field is not read.
type ColumnMapping struct {
	TransactionID string
	ItemID        string
	Name          string
	Quantity      string
	UnitPrice     string
	PurchasedAt   string
}

// DefaultColumns returns the column names written by basketlift itself.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		TransactionID: "transaction_id",
		ItemID:        "product_id",
		Name:          "product_name",
		Quantity:      "quantity",
		UnitPrice:     "unit_price",
		PurchasedAt:   "purchased_at",
	}
}

// Validate reports whether the required columns are named.
func (m ColumnMapping) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return fmt.Errorf("%w: transaction id column not configured", ErrMissingColumn)
	}
	if strings.TrimSpace(m.ItemID) == "" {
		return fmt.Errorf("%w: item id column not configured", ErrMissingColumn)
	}
	return nil
}

// columns holds header positions, -1 when absent.
type columns struct {
	txn, item, name, qty, price, at int
}

// headerIndex returns a lookup of column positions in header, -1 when
// absent. Matching ignores case and surrounding whitespace.
func headerIndex(header []string) func(name string) int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	return func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := index[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
		return -1
	}
}

// resolve locates the mapped columns in header.
func (m ColumnMapping) resolve(header []string) (columns, error) {
	find := headerIndex(header)
	c := columns{
		txn:   find(m.TransactionID),
		item:  find(m.ItemID),
		name:  find(m.Name),
		qty:   find(m.Quantity),
		price: find(m.UnitPrice),
		at:    find(m.PurchasedAt),
	}
	if c.txn < 0 {
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, m.TransactionID)
	}
	if c.item < 0 {
		return c, fmt.Errorf("%w: %q", ErrMissingColumn, m.ItemID)
	}
	return c, nil
}

// lineItem builds one item from a row accessor. Quantity defaults to 1.
func (c columns) lineItem(field func(int) string, line int) (basket.LineItem, error) {
	li := basket.LineItem{
		TransactionID: strings.TrimSpace(field(c.txn)),
		ItemID:        strings.TrimSpace(field(c.item)),
		Name:          strings.TrimSpace(field(c.name)),
		Quantity:      1,
	}

	if s := strings.TrimSpace(field(c.qty)); s != "" {
		q, err := strconv.Atoi(s)
		if err != nil {
			return li, fmt.Errorf("line %d: %w: quantity %q", line, ErrMalformedRecord, s)
		}
		li.Quantity = q
	}

	if s := strings.TrimSpace(field(c.price)); s != "" {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return li, fmt.Errorf("line %d: %w: unit price %q", line, ErrMalformedRecord, s)
		}
		li.UnitPrice = p
	}

	at, err := ParseTime(field(c.at))
	if err != nil {
		return li, fmt.Errorf("line %d: %w: %v", line, ErrMalformedRecord, err)
	}
	li.PurchasedAt = at

	return li, nil
}
