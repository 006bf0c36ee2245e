package affinity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

const eps = 1e-9

// counts flattens a store into plain maps for equality checks.
func counts(st *Stats) (int, map[string]int, map[PairKey]int) {
	items := make(map[string]int)
	for _, it := range st.Items() {
		items[it] = st.ItemCount(it)
	}
	pairs := make(map[PairKey]int)
	for _, p := range st.Pairs() {
		pairs[p] = st.PairCount(p.A, p.B)
	}
	return st.Total(), items, pairs
}

func sampleBaskets() []basket.Basket {
	return []basket.Basket{
		basket.New("A", "B"),
		basket.New("A", "B", "C"),
		basket.New("B", "C", "D"),
		basket.New("A"),
		basket.New("C", "D", "E", "A"),
		basket.New("E"),
		basket.New("B", "E"),
	}
}

func TestStats_TwoBasketScenario(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.New("A", "B"))
	st.Ingest(basket.New("A", "B", "C"))

	total, items, pairs := counts(st)
	assert.Equal(t, 2, total)
	assert.Equal(t, map[string]int{"A": 2, "B": 2, "C": 1}, items)
	assert.Equal(t, map[PairKey]int{
		{A: "A", B: "B"}: 2,
		{A: "A", B: "C"}: 1,
		{A: "B", B: "C"}: 1,
	}, pairs)

	assert.InDelta(t, 1.0, st.Support("A", "B"), eps)
	assert.InDelta(t, 0.5, st.Support("A", "C"), eps)
	assert.InDelta(t, 1.0, st.Confidence("A", "B"), eps)
	assert.InDelta(t, 0.5, st.Confidence("A", "C"), eps)
	// confidence(C→A) = 0.5 / 0.5
	assert.InDelta(t, 1.0, st.Confidence("C", "A"), eps)
	// lift(A→C) = 0.5 / 0.5
	assert.InDelta(t, 1.0, st.Lift("A", "C"), eps)
}

func TestStats_SingleItemBasketAddsNoPairs(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.New("A", "B"))
	before := st.Pairs()

	st.Ingest(basket.New("X"))

	assert.Equal(t, 1, st.ItemCount("X"))
	assert.Equal(t, 2, st.Total())
	assert.Equal(t, before, st.Pairs())
	assert.Equal(t, 1, st.PairCount("A", "B"))
}

func TestStats_EmptyBasketIsNoOp(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.New())
	st.IngestBatch(nil)
	st.Ingest(basket.Basket{""})

	assert.Equal(t, 0, st.Total())
	assert.Empty(t, st.Items())
}

func TestStats_DuplicateItemsCountOnce(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.Basket{"B", "A", "B"})

	assert.Equal(t, 1, st.ItemCount("B"))
	assert.Equal(t, 1, st.PairCount("A", "B"))
	assert.Equal(t, 0, st.PairCount("B", "B"))
}

func TestStats_EmptyStateQueries(t *testing.T) {
	st := NewStats()

	assert.Equal(t, 0.0, st.Support("A"))
	assert.Equal(t, 0.0, st.Support("A", "B"))
	assert.Equal(t, 0.0, st.Confidence("A", "B"))
	assert.Equal(t, 0.0, st.Lift("A", "B"))
	assert.Empty(t, st.Rules(0, 0))
	assert.NotNil(t, st.Rules(0, 0))

	snap := st.Statistics()
	assert.Equal(t, Snapshot{}, snap)
}

func TestStats_UnsupportedArityAndUnseen(t *testing.T) {
	st := NewStats()
	st.IngestBatch(sampleBaskets())

	assert.Equal(t, 0.0, st.Support())
	assert.Equal(t, 0.0, st.Support("A", "B", "C"))
	assert.Equal(t, 0.0, st.Support("nope"))
	assert.Equal(t, 0.0, st.Support("A", "nope"))
	assert.Equal(t, 0.0, st.Support("A", "A"))
	assert.Equal(t, 0.0, st.Confidence("nope", "A"))
	assert.Equal(t, 0.0, st.Lift("A", "nope"))
}

func TestStats_Commutativity(t *testing.T) {
	baskets := sampleBaskets()

	batch := NewStats()
	batch.IngestBatch(baskets)
	wantTotal, wantItems, wantPairs := counts(batch)

	oneByOne := NewStats()
	for _, b := range baskets {
		oneByOne.Ingest(b)
	}
	total, items, pairs := counts(oneByOne)
	assert.Equal(t, wantTotal, total)
	assert.Equal(t, wantItems, items)
	assert.Equal(t, wantPairs, pairs)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]basket.Basket, len(baskets))
		copy(shuffled, baskets)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		st := NewStats()
		st.IngestBatch(shuffled)
		total, items, pairs := counts(st)
		require.Equal(t, wantTotal, total)
		require.Equal(t, wantItems, items)
		require.Equal(t, wantPairs, pairs)
	}
}

func TestStats_IncrementalEquivalence(t *testing.T) {
	all := sampleBaskets()
	b1, b2 := all[:3], all[3:]

	split := NewStats()
	split.IngestBatch(b1)
	split.IngestBatch(b2)

	whole := NewStats()
	whole.IngestBatch(all)

	t1, i1, p1 := counts(split)
	t2, i2, p2 := counts(whole)
	assert.Equal(t, t2, t1)
	assert.Equal(t, i2, i1)
	assert.Equal(t, p2, p1)
}

func TestStats_Bounds(t *testing.T) {
	st := NewStats()
	st.IngestBatch(sampleBaskets())
	items := st.Items()

	for _, x := range items {
		sx := st.Support(x)
		assert.GreaterOrEqual(t, sx, 0.0)
		assert.LessOrEqual(t, sx, 1.0)

		for _, y := range items {
			if x == y {
				continue
			}
			sxy := st.Support(x, y)
			assert.LessOrEqual(t, sxy, sx+eps, "support(%s,%s) > support(%s)", x, y, x)
			assert.LessOrEqual(t, sxy, st.Support(y)+eps)
			assert.Equal(t, sxy, st.Support(y, x), "support must be symmetric")
			assert.LessOrEqual(t, st.PairCount(x, y), st.ItemCount(x))

			c := st.Confidence(x, y)
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0+eps)
			assert.GreaterOrEqual(t, st.Lift(x, y), 0.0)
		}
	}

	// A appears in 4 of 7 baskets, C in 3; they co-occur twice.
	assert.NotEqual(t, st.Confidence("A", "C"), st.Confidence("C", "A"))
}

func TestStats_RulesThresholdFiltering(t *testing.T) {
	st := NewStats()
	st.IngestBatch([]basket.Basket{
		basket.New("A", "B"),
		basket.New("A", "B"),
		basket.New("A", "C"),
	})

	rules := st.Rules(0.5, 0.5)
	require.Len(t, rules, 2)

	assert.Equal(t, "A", rules[0].ItemA)
	assert.Equal(t, "B", rules[0].ItemB)
	assert.InDelta(t, 2.0/3.0, rules[0].Support, eps)
	assert.InDelta(t, 2.0/3.0, rules[0].Confidence, eps)
	assert.InDelta(t, 1.0, rules[0].Lift, eps)

	assert.Equal(t, "B", rules[1].ItemA)
	assert.Equal(t, "A", rules[1].ItemB)
	assert.InDelta(t, 1.0, rules[1].Confidence, eps)

	for _, r := range rules {
		assert.NotEqual(t, "C", r.ItemA)
		assert.NotEqual(t, "C", r.ItemB)
	}
}

func TestStats_RulesKeepPairWhenEitherDirectionPasses(t *testing.T) {
	st := NewStats()
	// A is everywhere, B only once: conf(B→A)=1, conf(A→B)=0.25
	st.IngestBatch([]basket.Basket{
		basket.New("A", "B"),
		basket.New("A"),
		basket.New("A"),
		basket.New("A"),
	})

	rules := st.Rules(0.1, 0.5)
	require.Len(t, rules, 2)
	assert.InDelta(t, 0.25, rules[0].Confidence, eps)
	assert.InDelta(t, 1.0, rules[1].Confidence, eps)

	assert.Empty(t, st.Rules(0.1, 1.01))
}

func TestStats_PassesAgreesWithRules(t *testing.T) {
	st := NewStats()
	st.IngestBatch(sampleBaskets())

	for _, th := range []Thresholds{
		{},
		DefaultThresholds(),
		{MinSupport: 0.2, MinConfidence: 0.5},
		{MinSupport: 0.1, MinConfidence: 0.9},
	} {
		kept := make(map[PairKey]bool)
		for _, r := range st.evaluate(candidatePairs(st.Items()), th.MinSupport, th.MinConfidence) {
			kept[Pair(r.ItemA, r.ItemB)] = true
		}
		for _, p := range candidatePairs(st.Items()) {
			assert.Equal(t, kept[p], st.Passes(p.A, p.B, th), "pair %s at %+v", p, th)
			assert.Equal(t, st.Passes(p.A, p.B, th), st.Passes(p.B, p.A, th), "pair %s is order sensitive", p)
		}
	}

	assert.False(t, NewStats().Passes("A", "B", Thresholds{}), "empty store passes nothing")
}

func TestStats_Statistics(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.New("B", "A"))
	st.Ingest(basket.New("C", "D"))
	st.Ingest(basket.New("C", "D"))
	st.Ingest(basket.New("E"))

	snap := st.Statistics()
	assert.Equal(t, 4, snap.TotalTransactions)
	assert.Equal(t, 5, snap.UniqueItems)
	assert.Equal(t, 2, snap.UniquePairs)
	assert.Equal(t, "C", snap.MostFrequentItem)
	require.NotNil(t, snap.MostFrequentPair)
	assert.Equal(t, PairKey{A: "C", B: "D"}, *snap.MostFrequentPair)
}

func TestStats_StatisticsTieBreakIsFirstSeen(t *testing.T) {
	st := NewStats()
	st.Ingest(basket.New("Y", "Z"))
	st.Ingest(basket.New("A", "B"))

	for i := 0; i < 3; i++ {
		snap := st.Statistics()
		assert.Equal(t, "Y", snap.MostFrequentItem)
		assert.Equal(t, PairKey{A: "Y", B: "Z"}, *snap.MostFrequentPair)
	}
}

func TestPair_Canonical(t *testing.T) {
	assert.Equal(t, Pair("a", "b"), Pair("b", "a"))
	assert.Equal(t, PairKey{A: "a", B: "b"}, Pair("b", "a"))
	assert.Equal(t, "a+b", Pair("b", "a").String())
}
