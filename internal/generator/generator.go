// Package generator produces synthetic grocery transactions with planted
// product affinities, for demos and end-to-end tests.
package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/ingest"
	"github.com/blackwell-systems/basketlift/internal/store"
)

// FollowUpChance is the probability that a basket whose first product has
// planted affinities also gets one of its partners.
const FollowUpChance = 0.7

// ErrInvalidConfig is returned by Generate for impossible settings.
var ErrInvalidConfig = errors.New("invalid generator config")

// Catalogue is the fixed product list.
var Catalogue = []store.Product{
	{ID: "P001", Name: "Apple Juice 1L", Category: "Beverage", UnitPrice: 3.99},
	{ID: "P002", Name: "Banana Chips", Category: "Snacks", UnitPrice: 2.49},
	{ID: "P003", Name: "Oreo Biscuit", Category: "Snacks", UnitPrice: 1.99},
	{ID: "P004", Name: "Detergent Powder", Category: "Cleaning", UnitPrice: 5.99},
	{ID: "P005", Name: "Milk 1L", Category: "Dairy", UnitPrice: 2.99},
	{ID: "P006", Name: "Bread Loaf", Category: "Bakery", UnitPrice: 2.49},
	{ID: "P007", Name: "Eggs 12pk", Category: "Dairy", UnitPrice: 4.49},
	{ID: "P008", Name: "Coffee 500g", Category: "Beverage", UnitPrice: 8.99},
	{ID: "P009", Name: "Tea Bags 100pk", Category: "Beverage", UnitPrice: 3.49},
	{ID: "P010", Name: "Sugar 1kg", Category: "Grocery", UnitPrice: 2.99},
}

// Affinities maps a product to the partners it is planted with.
var Affinities = map[string][]string{
	"P001": {"P002", "P003"}, // juice with snacks
	"P005": {"P006", "P007"}, // milk with bread and eggs
	"P008": {"P009", "P010"}, // coffee with tea and sugar
	"P002": {"P003"},         // chips with biscuits
	"P006": {"P007"},         // bread with eggs
}

// Store is a point of sale.
type Store struct {
	ID   int
	Name string
	City string
}

// Stores is the fixed store list.
var Stores = []Store{
	{ID: 1, Name: "Downtown Store", City: "New York"},
	{ID: 2, Name: "Suburban Store", City: "Los Angeles"},
	{ID: 3, Name: "Mall Store", City: "Chicago"},
}

// Header summarizes one generated transaction.
type Header struct {
	TransactionID string
	StoreID       int
	CustomerID    string
	PurchasedAt   time.Time
	Total         float64
}

// Config controls generation.
type Config struct {
	Transactions int
	Seed         int64
	Start        time.Time
	MinItems     int
	MaxItems     int

	// IDPrefix starts every transaction id. Defaults to "TXN".
	IDPrefix string

	// FirstNumber numbers the first transaction id. Defaults to 1.
	FirstNumber int
}

// DefaultConfig returns 200 transactions of 2 to 8 items starting on
// 2025-01-01, seeded with 42.
func DefaultConfig() Config {
	return Config{
		Transactions: 200,
		Seed:         42,
		Start:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MinItems:     2,
		MaxItems:     8,
	}
}

// Dataset is the output of Generate.
type Dataset struct {
	Products  []store.Product
	Stores    []Store
	Headers   []Header
	LineItems []basket.LineItem
}

// Generate builds a dataset. The same Config always yields the same data.
func Generate(cfg Config) (*Dataset, error) {
	if cfg.Transactions < 0 {
		return nil, fmt.Errorf("%w: negative transaction count %d", ErrInvalidConfig, cfg.Transactions)
	}
	if cfg.MinItems < 1 || cfg.MinItems > cfg.MaxItems {
		return nil, fmt.Errorf("%w: items per basket must satisfy 1 <= min (%d) <= max (%d)",
			ErrInvalidConfig, cfg.MinItems, cfg.MaxItems)
	}
	if cfg.MaxItems > len(Catalogue) {
		cfg.MaxItems = len(Catalogue)
		if cfg.MinItems > cfg.MaxItems {
			cfg.MinItems = cfg.MaxItems
		}
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultConfig().Start
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "TXN"
	}
	if cfg.FirstNumber < 1 {
		cfg.FirstNumber = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	prices := make(map[string]float64, len(Catalogue))
	names := make(map[string]string, len(Catalogue))
	for _, p := range Catalogue {
		prices[p.ID] = p.UnitPrice
		names[p.ID] = p.Name
	}

	ds := &Dataset{
		Products:  append([]store.Product(nil), Catalogue...),
		Stores:    append([]Store(nil), Stores...),
		Headers:   make([]Header, 0, cfg.Transactions),
		LineItems: make([]basket.LineItem, 0, cfg.Transactions*cfg.MaxItems),
	}

	for i := 0; i < cfg.Transactions; i++ {
		h := Header{
			TransactionID: fmt.Sprintf("%s_%06d", cfg.IDPrefix, cfg.FirstNumber+i),
			StoreID:       Stores[rng.Intn(len(Stores))].ID,
			CustomerID:    fmt.Sprintf("CUST_%04d", rng.Intn(100)+1),
			PurchasedAt: cfg.Start.Add(
				time.Duration(rng.Intn(30))*24*time.Hour +
					time.Duration(8+rng.Intn(13))*time.Hour +
					time.Duration(rng.Intn(60))*time.Minute),
		}

		for _, id := range pickBasket(rng, cfg.MinItems, cfg.MaxItems) {
			qty := rng.Intn(3) + 1
			ds.LineItems = append(ds.LineItems, basket.LineItem{
				TransactionID: h.TransactionID,
				ItemID:        id,
				Name:          names[id],
				Quantity:      qty,
				UnitPrice:     prices[id],
				PurchasedAt:   h.PurchasedAt,
			})
			h.Total += float64(qty) * prices[id]
		}
		ds.Headers = append(ds.Headers, h)
	}

	return ds, nil
}

// pickBasket chooses between lo and hi distinct products. The first pick
// pulls in a planted partner with FollowUpChance.
func pickBasket(rng *rand.Rand, lo, hi int) []string {
	n := lo + rng.Intn(hi-lo+1)
	chosen := make([]string, 0, n)
	seen := make(map[string]bool, n)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			chosen = append(chosen, id)
		}
	}

	first := Catalogue[rng.Intn(len(Catalogue))].ID
	add(first)
	if partners, ok := Affinities[first]; ok && rng.Float64() < FollowUpChance {
		add(partners[rng.Intn(len(partners))])
	}
	for len(chosen) < n {
		add(Catalogue[rng.Intn(len(Catalogue))].ID)
	}
	return chosen
}

// WriteCSV writes line items with the default ingest column names.
func WriteCSV(w io.Writer, items []basket.LineItem) error {
	cols := ingest.DefaultColumns()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		cols.TransactionID, cols.ItemID, cols.Name, cols.Quantity, cols.UnitPrice, cols.PurchasedAt,
	}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, li := range items {
		at := ""
		if !li.PurchasedAt.IsZero() {
			at = li.PurchasedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			li.TransactionID,
			li.ItemID,
			li.Name,
			strconv.Itoa(li.Quantity),
			strconv.FormatFloat(li.UnitPrice, 'f', 2, 64),
			at,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", li.TransactionID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteStream appends one NDJSON stream record per transaction.
func WriteStream(w io.Writer, items []basket.LineItem) error {
	for _, rec := range ingest.StreamRecords(items) {
		if err := ingest.EncodeStreamRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}
