package ingest

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 1 << 20

// StreamRecord is one transaction in the NDJSON stream layout, one record
// per line:
//
//	{"transaction_id":"TXN_000001","purchased_at":"2024-03-01T10:30:00Z","items":[{"product_id":"P001","quantity":2}]}
type StreamRecord struct {
	TransactionID string       `json:"transaction_id"`
	PurchasedAt   time.Time    `json:"purchased_at"`
	Items         []StreamItem `json:"items"`
}

// StreamItem is a line of a StreamRecord.
type StreamItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"product_name,omitempty"`
	Quantity  int     `json:"quantity,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

// ParseStreamRecord decodes one stream line. A record needs a transaction id
// and every item needs a product id.
func ParseStreamRecord(line []byte) (*StreamRecord, error) {
	var rec StreamRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	rec.TransactionID = strings.TrimSpace(rec.TransactionID)
	if rec.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", ErrMalformedRecord)
	}
	for i, it := range rec.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: item %d of %s has no product_id", ErrMalformedRecord, i, rec.TransactionID)
		}
	}
	return &rec, nil
}

// LineItems expands the record. Missing quantities become 1.
func (r *StreamRecord) LineItems() []basket.LineItem {
	items := make([]basket.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		items = append(items, basket.LineItem{
			TransactionID: r.TransactionID,
			ItemID:        strings.TrimSpace(it.ProductID),
			Name:          it.Name,
			Quantity:      qty,
			UnitPrice:     it.UnitPrice,
			PurchasedAt:   r.PurchasedAt,
		})
	}
	return items
}

// StreamRecords groups line items into records, keeping first-seen
// transaction order. The first item of a transaction supplies its timestamp.
func StreamRecords(items []basket.LineItem) []StreamRecord {
	index := make(map[string]int)
	records := make([]StreamRecord, 0)
	for _, li := range items {
		i, ok := index[li.TransactionID]
		if !ok {
			i = len(records)
			index[li.TransactionID] = i
			records = append(records, StreamRecord{
				TransactionID: li.TransactionID,
				PurchasedAt:   li.PurchasedAt,
			})
		}
		records[i].Items = append(records[i].Items, StreamItem{
			ProductID: li.ItemID,
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	return records
}

// EncodeStreamRecord writes rec as a single newline-terminated line.
func EncodeStreamRecord(w io.Writer, rec StreamRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rec.TransactionID, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", rec.TransactionID, err)
	}
	return nil
}
