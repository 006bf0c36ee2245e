package affinity

import (
	"sort"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

// Stats holds running co-occurrence counts for a transaction universe:
// the transaction total, per-item basket counts and per-pair basket counts.
//
// Pair counts are keyed by the canonical PairKey so (a,b) and (b,a) share a
// single entry. All mutation is by increment, so the final state does not
// depend on the order baskets arrive in.
//
// A Stats is not safe for concurrent use; callers sharing one instance
// across goroutines must serialize access.
type Stats struct {
	total      int
	itemCounts map[string]int
	pairCounts map[PairKey]int

	// first-seen order, for deterministic iteration and tie-breaks
	itemOrder []string
	pairOrder []PairKey
}

// NewStats returns an empty store.
func NewStats() *Stats {
	return &Stats{
		itemCounts: make(map[string]int),
		pairCounts: make(map[PairKey]int),
	}
}

// Ingest records one basket. An empty basket is a no-op; a single-item
// basket updates item counts but no pairs. Duplicate ids count once.
func (s *Stats) Ingest(b basket.Basket) {
	b = basket.New(b...)
	if len(b) == 0 {
		return
	}
	s.total++

	for _, item := range b {
		if _, ok := s.itemCounts[item]; !ok {
			s.itemOrder = append(s.itemOrder, item)
		}
		s.itemCounts[item]++
	}

	for i := 0; i < len(b); i++ {
		for j := i + 1; j < len(b); j++ {
			key := Pair(b[i], b[j])
			if _, ok := s.pairCounts[key]; !ok {
				s.pairOrder = append(s.pairOrder, key)
			}
			s.pairCounts[key]++
		}
	}
}

// IngestBatch records each basket in order.
func (s *Stats) IngestBatch(baskets []basket.Basket) {
	for _, b := range baskets {
		s.Ingest(b)
	}
}

// Total returns the number of baskets ingested.
func (s *Stats) Total() int {
	return s.total
}

// ItemCount returns how many baskets contained item.
func (s *Stats) ItemCount(item string) int {
	return s.itemCounts[item]
}

// PairCount returns how many baskets contained both a and b.
func (s *Stats) PairCount(a, b string) int {
	return s.pairCounts[Pair(a, b)]
}

// Items returns every item seen so far, sorted.
func (s *Stats) Items() []string {
	items := make([]string, len(s.itemOrder))
	copy(items, s.itemOrder)
	sort.Strings(items)
	return items
}

// Pairs returns every recorded pair in first-seen order.
func (s *Stats) Pairs() []PairKey {
	pairs := make([]PairKey, len(s.pairOrder))
	copy(pairs, s.pairOrder)
	return pairs
}

// Support returns the fraction of baskets containing the itemset. Only
// single items and pairs are supported; any other arity returns 0.
func (s *Stats) Support(items ...string) float64 {
	if s.total == 0 {
		return 0.0
	}

	switch len(items) {
	case 1:
		return float64(s.itemCounts[items[0]]) / float64(s.total)
	case 2:
		if items[0] == items[1] {
			return 0.0
		}
		return float64(s.pairCounts[Pair(items[0], items[1])]) / float64(s.total)
	default:
		return 0.0
	}
}

// Confidence returns support(a,b) / support(a), the share of baskets with a
// that also contain b.
func (s *Stats) Confidence(a, b string) float64 {
	supportA := s.Support(a)
	if supportA == 0 {
		return 0.0
	}
	return s.Support(a, b) / supportA
}

// Lift returns confidence(a,b) / support(b). Values above 1 mean a and b are
// bought together more often than independence would predict.
func (s *Stats) Lift(a, b string) float64 {
	supportB := s.Support(b)
	if supportB == 0 {
		return 0.0
	}
	return s.Confidence(a, b) / supportB
}

// Rules evaluates every recorded pair against the thresholds and returns
// both directional rules for each survivor.
func (s *Stats) Rules(minSupport, minConfidence float64) []Rule {
	return s.evaluate(s.pairOrder, minSupport, minConfidence)
}

// Passes reports whether the pair a, b survives rule generation under th.
// A pair is dropped when its support is below th.MinSupport, or when the
// confidence in both directions is below th.MinConfidence. Nothing passes
// before the first transaction.
func (s *Stats) Passes(a, b string, th Thresholds) bool {
	if s.total == 0 || s.Support(a, b) < th.MinSupport {
		return false
	}
	return s.Confidence(a, b) >= th.MinConfidence || s.Confidence(b, a) >= th.MinConfidence
}

// evaluate is the filter shared by the batch and incremental paths.
func (s *Stats) evaluate(candidates []PairKey, minSupport, minConfidence float64) []Rule {
	rules := make([]Rule, 0)
	th := Thresholds{MinSupport: minSupport, MinConfidence: minConfidence}

	for _, p := range candidates {
		if !s.Passes(p.A, p.B, th) {
			continue
		}
		support := s.Support(p.A, p.B)
		confAB := s.Confidence(p.A, p.B)
		confBA := s.Confidence(p.B, p.A)

		rules = append(rules,
			Rule{
				ItemA:      p.A,
				ItemB:      p.B,
				Support:    support,
				Confidence: confAB,
				Lift:       s.Lift(p.A, p.B),
			},
			Rule{
				ItemA:      p.B,
				ItemB:      p.A,
				Support:    support,
				Confidence: confBA,
				Lift:       s.Lift(p.B, p.A),
			},
		)
	}

	return rules
}

// Statistics returns a summary of the current counts. Ties for most frequent
// item or pair go to whichever was seen first.
func (s *Stats) Statistics() Snapshot {
	snap := Snapshot{
		TotalTransactions: s.total,
		UniqueItems:       len(s.itemCounts),
		UniquePairs:       len(s.pairCounts),
	}

	best := 0
	for _, item := range s.itemOrder {
		if c := s.itemCounts[item]; c > best {
			best = c
			snap.MostFrequentItem = item
		}
	}

	best = 0
	for _, p := range s.pairOrder {
		if c := s.pairCounts[p]; c > best {
			best = c
			key := p
			snap.MostFrequentPair = &key
		}
	}

	return snap
}
