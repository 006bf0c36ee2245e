package affinity

import (
	"errors"
	"fmt"
	"strings"
)

// Default thresholds applied when nothing else is configured.
const (
	DefaultMinSupport    = 0.01
	DefaultMinConfidence = 0.1
)

// ErrUnknownMetric is returned by ParseMetric for names other than
// lift, confidence and support.
var ErrUnknownMetric = errors.New("unknown metric")

// Thresholds configures which pairs survive rule generation.
type Thresholds struct {
	MinSupport    float64 // 0-1
	MinConfidence float64 // 0-1
}

// DefaultThresholds returns the default support and confidence cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSupport:    DefaultMinSupport,
		MinConfidence: DefaultMinConfidence,
	}
}

// PairKey is the canonical key of an unordered item pair: A sorts before B.
type PairKey struct {
	A string
	B string
}

// Pair returns the canonical key for items a and b in either order.
func Pair(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// String renders the pair as "A+B".
func (p PairKey) String() string {
	return p.A + "+" + p.B
}

// Rule is the directional statement "customers who buy ItemA also buy ItemB".
// Rules are always produced in pairs (A→B and B→A) since confidence and lift
// are asymmetric. Names are empty when no display name is known.
type Rule struct {
	ItemA      string  `json:"item_a"`
	ItemB      string  `json:"item_b"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
	ItemAName  string  `json:"item_a_name,omitempty"`
	ItemBName  string  `json:"item_b_name,omitempty"`
}

// Direction renders the rule as "A → B".
func (r Rule) Direction() string {
	return r.ItemA + " → " + r.ItemB
}

// Snapshot summarises the state of a Stats instance.
type Snapshot struct {
	TotalTransactions int      `json:"total_transactions"`
	UniqueItems       int      `json:"unique_items"`
	UniquePairs       int      `json:"unique_pairs"`
	MostFrequentItem  string   `json:"most_frequent_item,omitempty"`
	MostFrequentPair  *PairKey `json:"most_frequent_pair,omitempty"`
}

// Metric selects the rule field used for ranking.
type Metric string

// Supported ranking metrics.
const (
	MetricLift       Metric = "lift"
	MetricConfidence Metric = "confidence"
	MetricSupport    Metric = "support"
)

// ParseMetric converts a user-supplied metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricLift, MetricConfidence, MetricSupport:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (must be lift, confidence, or support)", ErrUnknownMetric, s)
	}
}

// value returns the rule's score under m. Unknown metrics rank by lift.
func (m Metric) value(r Rule) float64 {
	switch m {
	case MetricConfidence:
		return r.Confidence
	case MetricSupport:
		return r.Support
	default:
		return r.Lift
	}
}
