package affinity

import (
	"github.com/blackwell-systems/basketlift/internal/basket"
)

// Updater maintains affinity statistics incrementally. It owns one Stats for
// its whole lifetime; new transactions only add to the counts, and rules are
// recomputed from the cumulative counts on every query. History is never
// replayed, so a query costs O(distinct pairs) regardless of how many
// transactions have been seen.
//
// Like Stats, an Updater is single-writer.
type Updater struct {
	stats      *Stats
	thresholds Thresholds
}

// NewUpdater creates an Updater with an empty store.
func NewUpdater(th Thresholds) *Updater {
	return &Updater{
		stats:      NewStats(),
		thresholds: th,
	}
}

// Initialize bulk-loads an initial dataset.
func (u *Updater) Initialize(items []basket.LineItem) error {
	return u.AddBatch(items)
}

// AddTransaction ingests the line items of a single transaction.
func (u *Updater) AddTransaction(items []basket.LineItem) error {
	b, err := basket.FromItems(items)
	if err != nil {
		return err
	}
	u.stats.Ingest(b)
	return nil
}

// AddBatch groups line items by transaction and ingests each basket.
// Counts accumulate across calls.
func (u *Updater) AddBatch(items []basket.LineItem) error {
	baskets, err := basket.Build(items)
	if err != nil {
		return err
	}
	u.stats.IngestBatch(baskets)
	return nil
}

// AddBaskets ingests pre-built baskets.
func (u *Updater) AddBaskets(baskets ...basket.Basket) {
	u.stats.IngestBatch(baskets)
}

// CurrentRules returns the rule table for the counts ingested so far.
func (u *Updater) CurrentRules() []Rule {
	return u.stats.Rules(u.thresholds.MinSupport, u.thresholds.MinConfidence)
}

// TopAffinities returns the n current rules with the highest lift.
func (u *Updater) TopAffinities(n int) []Rule {
	return TopAffinities(u.CurrentRules(), n, MetricLift)
}

// Statistics summarises the cumulative counts.
func (u *Updater) Statistics() Snapshot {
	return u.stats.Statistics()
}

// Stats exposes the underlying store for metric queries.
func (u *Updater) Stats() *Stats {
	return u.stats
}

// Thresholds returns the cut-offs fixed at construction.
func (u *Updater) Thresholds() Thresholds {
	return u.thresholds
}
