package affinity

import (
	"sort"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

// Analyzer runs one-shot market basket analysis over a complete dataset.
// Each run builds its own transient Stats.
type Analyzer struct {
	thresholds Thresholds
	last       *Stats
}

// NewAnalyzer creates an Analyzer with the given thresholds.
func NewAnalyzer(th Thresholds) *Analyzer {
	return &Analyzer{thresholds: th}
}

// Thresholds returns the analyzer's configured cut-offs.
func (a *Analyzer) Thresholds() Thresholds {
	return a.thresholds
}

// Analyze builds baskets from line items and returns the rule table. When
// names is non-nil the rules are annotated with display names; unmapped
// items keep an empty name. The only errors come from basket validation.
func (a *Analyzer) Analyze(items []basket.LineItem, names map[string]string) ([]Rule, error) {
	baskets, err := basket.Build(items)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeBaskets(baskets, names), nil
}

// AnalyzeBaskets is Analyze over pre-built baskets.
//
// Candidate pairs are the full cross product of every item seen anywhere in
// the dataset, not only the pairs that co-occur; the support threshold then
// removes the ones that never (or rarely) appear together.
func (a *Analyzer) AnalyzeBaskets(baskets []basket.Basket, names map[string]string) []Rule {
	st := NewStats()
	st.IngestBatch(baskets)
	a.last = st

	rules := st.evaluate(candidatePairs(st.Items()), a.thresholds.MinSupport, a.thresholds.MinConfidence)
	if names != nil {
		Annotate(rules, names)
	}
	return rules
}

// LastStats returns the store built by the most recent run, or nil.
func (a *Analyzer) LastStats() *Stats {
	return a.last
}

// candidatePairs returns all 2-combinations of sorted items.
func candidatePairs(items []string) []PairKey {
	if len(items) < 2 {
		return nil
	}
	pairs := make([]PairKey, 0, len(items)*(len(items)-1)/2)
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			pairs = append(pairs, PairKey{A: items[i], B: items[j]})
		}
	}
	return pairs
}

// Annotate fills in display names in place.
func Annotate(rules []Rule, names map[string]string) {
	for i := range rules {
		rules[i].ItemAName = names[rules[i].ItemA]
		rules[i].ItemBName = names[rules[i].ItemB]
	}
}

// TopAffinities returns the n highest-scoring rules under metric, highest
// first. Ties keep their original order.
func TopAffinities(rules []Rule, n int, metric Metric) []Rule {
	if n <= 0 || len(rules) == 0 {
		return []Rule{}
	}

	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return metric.value(sorted[i]) > metric.value(sorted[j])
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Recommendations returns up to n rules whose antecedent is item, by lift.
func Recommendations(rules []Rule, item string, n int) []Rule {
	var matching []Rule
	for _, r := range rules {
		if r.ItemA == item {
			matching = append(matching, r)
		}
	}
	return TopAffinities(matching, n, MetricLift)
}

// TopAffinities is the package-level TopAffinities, for callers holding an
// Analyzer.
func (a *Analyzer) TopAffinities(rules []Rule, n int, metric Metric) []Rule {
	return TopAffinities(rules, n, metric)
}

// Recommendations is the package-level Recommendations, for callers holding
// an Analyzer.
func (a *Analyzer) Recommendations(rules []Rule, item string, n int) []Rule {
	return Recommendations(rules, item, n)
}
