// Package ingest reads line-item files (CSV, TSV, JSON, NDJSON) into
// basket.LineItem values using a configurable column mapping.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

var (
	// ErrFileNotFound is returned when the input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat is returned for unknown file extensions or formats.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("missing required column")

	// ErrMalformedRecord is returned when a row cannot be converted.
	ErrMalformedRecord = errors.New("malformed record")
)

// Format identifies an input file layout.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// DetectFormat infers the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatTSV, FormatJSON, FormatJSONL:
		return f, nil
	case "ndjson":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Read loads line items from path, choosing the format by extension.
func Read(path string, m ColumnMapping) ([]basket.LineItem, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return ReadFormat(path, format, m)
}

// ReadFormat loads line items from path in the given format.
func ReadFormat(path string, format Format, m ColumnMapping) ([]basket.LineItem, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		return readDelimited(f, ',', m)
	case FormatTSV:
		return readDelimited(f, '\t', m)
	case FormatJSON:
		return readJSON(f, m)
	case FormatJSONL:
		return readJSONL(f, m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func readDelimited(r io.Reader, comma rune, m ColumnMapping) ([]basket.LineItem, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = comma == ','
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []basket.LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := m.resolve(header)
	if err != nil {
		return nil, err
	}

	items := make([]basket.LineItem, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		line, _ := cr.FieldPos(0)

		if isBlank(record) {
			continue
		}

		li, err := cols.lineItem(func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return record[i]
		}, line)
		if err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, nil
}

func readJSON(r io.Reader, m ColumnMapping) ([]basket.LineItem, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		if err == io.EOF {
			return []basket.LineItem{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	items := make([]basket.LineItem, 0, len(records))
	for i, rec := range records {
		got, err := objectItems(rec, m, i+1)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	return items, nil
}

func readJSONL(r io.Reader, m ColumnMapping) ([]basket.LineItem, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	items := make([]basket.LineItem, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, ErrMalformedRecord, err)
		}

		got, err := objectItems(rec, m, line)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return items, nil
}

// objectItems converts one JSON object. Objects carrying an "items" array
// are whole transactions in stream layout; others are single line items.
func objectItems(rec map[string]any, m ColumnMapping, line int) ([]basket.LineItem, error) {
	if _, ok := rec["items"]; ok {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, ErrMalformedRecord, err)
		}
		sr, err := ParseStreamRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		return sr.LineItems(), nil
	}

	keys := make([]string, 0, len(rec))
	values := make([]string, 0, len(rec))
	for k, v := range rec {
		keys = append(keys, k)
		values = append(values, stringify(v))
	}

	cols, err := m.resolve(keys)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	li, err := cols.lineItem(func(i int) string {
		if i < 0 {
			return ""
		}
		return values[i]
	}, line)
	if err != nil {
		return nil, err
	}
	return []basket.LineItem{li}, nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 and the common date-time layouts exported by
// point-of-sale systems. An empty string yields the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
