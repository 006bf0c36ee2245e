package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/store"
)

// ReadProducts loads a product catalogue CSV with the columns product_id,
// product_name and optionally category and unit_price.
func ReadProducts(path string) ([]store.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []store.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	find := headerIndex(header)
	idCol, nameCol := find("product_id"), find("product_name")
	categoryCol, priceCol := find("category"), find("unit_price")
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, "product_id")
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, "product_name")
	}

	get := func(record []string, i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	products := make([]store.Product, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		p := store.Product{
			ID:       get(record, idCol),
			Name:     get(record, nameCol),
			Category: get(record, categoryCol),
		}
		if p.ID == "" {
			return nil, fmt.Errorf("line %d: %w: empty product_id", line, ErrMalformedRecord)
		}
		if s := get(record, priceCol); s != "" {
			if p.UnitPrice, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("line %d: %w: unit price %q", line, ErrMalformedRecord, s)
			}
		}
		products = append(products, p)
	}
	return products, nil
}

// ProductsFromItems collects one product per item id from the names and
// prices carried on line items. Items without a name are skipped; the first
// occurrence wins.
func ProductsFromItems(items []basket.LineItem) []store.Product {
	seen := make(map[string]bool)
	products := make([]store.Product, 0)
	for _, li := range items {
		if li.Name == "" || seen[li.ItemID] {
			continue
		}
		seen[li.ItemID] = true
		products = append(products, store.Product{ID: li.ItemID, Name: li.Name, UnitPrice: li.UnitPrice})
	}
	return products
}
