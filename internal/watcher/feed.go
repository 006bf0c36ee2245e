package watcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/basket"
	"github.com/blackwell-systems/basketlift/internal/ingest"
	"github.com/blackwell-systems/basketlift/internal/logging"
	"github.com/blackwell-systems/basketlift/internal/store"
)

const (
	// DefaultPollInterval is the backup polling period when fsnotify events
	// are missed or unavailable.
	DefaultPollInterval = 2 * time.Second

	// DefaultBatchSize bounds the records consumed by one pass.
	DefaultBatchSize = 1000
)

// Config configures a Feed.
type Config struct {
	// Path is the NDJSON stream file. It may not exist yet.
	Path string

	// OffsetPath stores the consumed byte offset. Defaults to Path + ".offset".
	OffsetPath string

	PollInterval time.Duration
	BatchSize    int

	// OnUpdate is called after every pass that consumed at least one line.
	OnUpdate func(Update)
}

// Update reports the outcome of one pass.
type Update struct {
	Transactions int               // records ingested this pass
	Skipped      int               // malformed, empty or already stored records
	Offset       int64             // byte offset after the pass
	Stats        affinity.Snapshot // updater statistics after the pass
}

// Feed tails a stream file into a store and an Updater. A Feed is the only
// writer of its Updater while it runs.
type Feed struct {
	store   *store.Store
	updater *affinity.Updater
	cfg     Config
	log     zerolog.Logger
	mu      sync.Mutex
}

// New creates a Feed.
func New(st *store.Store, up *affinity.Updater, cfg Config) (*Feed, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if up == nil {
		return nil, fmt.Errorf("updater cannot be nil")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("stream path cannot be empty")
	}
	if cfg.OffsetPath == "" {
		cfg.OffsetPath = cfg.Path + ".offset"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	return &Feed{
		store:   st,
		updater: up,
		cfg:     cfg,
		log:     logging.With().Str("component", "watcher").Str("path", cfg.Path).Logger(),
	}, nil
}

// Run processes the stream until ctx is cancelled, then does a final pass.
// Write events on the stream file trigger a pass immediately; the poll
// ticker covers missed events and platforms without fsnotify support.
func (f *Feed) Run(ctx context.Context) error {
	f.drain()

	var events chan fsnotify.Event
	var errs chan error

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		f.log.Warn().Err(err).Msg("file notifications unavailable, polling only")
	} else {
		defer fw.Close()
		// Watch the directory so that the file may be created or replaced later.
		if err := fw.Add(filepath.Dir(f.cfg.Path)); err != nil {
			f.log.Warn().Err(err).Msg("cannot watch stream directory, polling only")
		} else {
			events, errs = fw.Events, fw.Errors
		}
	}

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	target := filepath.Clean(f.cfg.Path)
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return nil
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				f.drain()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			f.log.Warn().Err(err).Msg("file watcher error")
		case <-ticker.C:
			f.drain()
		}
	}
}

// drain catches up and logs a failed pass; Run keeps going after errors.
func (f *Feed) drain() {
	if err := f.CatchUp(); err != nil {
		f.log.Error().Err(err).Msg("stream processing failed")
	}
}

// CatchUp runs passes until every complete line in the stream has been
// consumed.
func (f *Feed) CatchUp() error {
	for {
		more, err := f.process()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// ProcessOnce runs a single pass: at most BatchSize new records are read,
// stored and ingested, then the offset is advanced. A missing stream file is
// a no-op.
func (f *Feed) ProcessOnce() error {
	_, err := f.process()
	return err
}

// process reports whether the pass stopped at the batch limit.
func (f *Feed) process() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.cfg.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open stream: %w", err)
	}
	defer file.Close()

	offset, err := readOffset(f.cfg.OffsetPath)
	if err != nil {
		return false, fmt.Errorf("read offset: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat stream: %w", err)
	}
	if offset > info.Size() {
		// Truncated or replaced since the last pass.
		f.log.Warn().Int64("offset", offset).Int64("size", info.Size()).Msg("stream shrank, restarting from the beginning")
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return false, fmt.Errorf("seek stream: %w", err)
	}

	records, skipped, consumed, more, err := f.read(bufio.NewReader(file))
	if err != nil {
		return false, err
	}
	newOffset := offset + consumed
	if consumed == 0 {
		return false, nil
	}

	records, dupes, err := f.dropStored(records)
	if err != nil {
		return false, err
	}
	skipped += dupes

	if len(records) > 0 {
		if err := f.persist(records); err != nil {
			return false, err
		}
	}

	ingested := 0
	for _, rec := range records {
		if err := f.updater.AddTransaction(rec.LineItems()); err != nil {
			f.log.Warn().Err(err).Str("transaction", rec.TransactionID).Msg("skipping transaction")
			skipped++
			continue
		}
		ingested++
	}

	// Only advance the offset after the line items are committed.
	if err := writeOffsetAtomic(f.cfg.OffsetPath, newOffset); err != nil {
		return false, fmt.Errorf("write offset: %w", err)
	}

	update := Update{
		Transactions: ingested,
		Skipped:      skipped,
		Offset:       newOffset,
		Stats:        f.updater.Statistics(),
	}
	f.log.Info().
		Int("transactions", update.Transactions).
		Int("skipped", update.Skipped).
		Int64("offset", update.Offset).
		Msg("stream pass complete")

	if f.cfg.OnUpdate != nil {
		f.cfg.OnUpdate(update)
	}
	return more, nil
}

// read consumes complete lines up to the batch limit. A trailing line
// without a newline is still being written and is left for the next pass.
func (f *Feed) read(r *bufio.Reader) (records []*ingest.StreamRecord, skipped int, consumed int64, more bool, err error) {
	for len(records)+skipped < f.cfg.BatchSize {
		line, readErr := r.ReadBytes('\n')
		if errors.Is(readErr, io.EOF) {
			return records, skipped, consumed, false, nil
		}
		if readErr != nil {
			return nil, 0, 0, false, fmt.Errorf("read stream: %w", readErr)
		}
		consumed += int64(len(line))

		raw := bytes.TrimSpace(line)
		if len(raw) == 0 {
			continue
		}

		rec, parseErr := ingest.ParseStreamRecord(raw)
		if parseErr != nil {
			f.log.Warn().Err(parseErr).Int64("offset", consumed).Msg("skipping malformed record")
			skipped++
			continue
		}
		if len(rec.Items) == 0 {
			f.log.Debug().Str("transaction", rec.TransactionID).Msg("skipping empty transaction")
			skipped++
			continue
		}
		records = append(records, rec)
	}

	_, peekErr := r.Peek(1)
	return records, skipped, consumed, peekErr == nil, nil
}

// dropStored removes records whose transaction id is already stored or
// repeats an earlier record of the pass. The store and the Updater both count
// one basket per transaction id, so a repeated id is never ingested twice.
func (f *Feed) dropStored(records []*ingest.StreamRecord) ([]*ingest.StreamRecord, int, error) {
	if len(records) == 0 {
		return records, 0, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.TransactionID
	}
	stored, err := f.store.HasTransactions(ids)
	if err != nil {
		return nil, 0, fmt.Errorf("look up stored transactions: %w", err)
	}

	kept := records[:0]
	dropped := 0
	for _, rec := range records {
		if stored[rec.TransactionID] {
			f.log.Warn().Str("transaction", rec.TransactionID).Msg("skipping transaction already stored")
			dropped++
			continue
		}
		stored[rec.TransactionID] = true
		kept = append(kept, rec)
	}
	return kept, dropped, nil
}

// persist stores the records' line items in one SQL transaction and
// registers names for products the store does not know yet.
func (f *Feed) persist(records []*ingest.StreamRecord) error {
	var items []basket.LineItem
	for _, rec := range records {
		items = append(items, rec.LineItems()...)
	}

	known, err := f.store.ProductNames()
	if err != nil {
		return fmt.Errorf("load product names: %w", err)
	}
	var fresh []store.Product
	for _, p := range ingest.ProductsFromItems(items) {
		if known[p.ID] == "" {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 0 {
		if err := f.store.UpsertProducts(fresh); err != nil {
			return fmt.Errorf("store products: %w", err)
		}
	}

	if err := f.store.InsertLineItems(items); err != nil {
		return fmt.Errorf("store line items: %w", err)
	}
	return nil
}
