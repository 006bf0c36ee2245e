package affinity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/basketlift/internal/basket"
)

func TestUpdater_EmptyState(t *testing.T) {
	u := NewUpdater(DefaultThresholds())

	assert.Empty(t, u.CurrentRules())
	assert.Empty(t, u.TopAffinities(5))
	assert.Equal(t, 0, u.Statistics().TotalTransactions)

	require.NoError(t, u.AddBatch(nil))
	require.NoError(t, u.AddTransaction(nil))
	assert.Equal(t, 0, u.Stats().Total())
}

func TestUpdater_InitializeThenAddBatch(t *testing.T) {
	history := lineItems([]string{"A", "B"}, []string{"A", "B", "C"})
	u := NewUpdater(Thresholds{MinSupport: 0.5, MinConfidence: 0.5})
	require.NoError(t, u.Initialize(history))

	rules := u.CurrentRules()
	// A-B, A-C and B-C all reach 0.5 support over two baskets
	assert.Len(t, rules, 6)

	more := []basket.LineItem{
		{TransactionID: "NEW_1", ItemID: "A", Quantity: 1},
		{TransactionID: "NEW_1", ItemID: "D", Quantity: 1},
		{TransactionID: "NEW_2", ItemID: "D", Quantity: 2},
	}
	require.NoError(t, u.AddBatch(more))

	st := u.Stats()
	assert.Equal(t, 4, st.Total())
	assert.Equal(t, 3, st.ItemCount("A"))
	assert.Equal(t, 2, st.ItemCount("D"))
	assert.Equal(t, 1, st.PairCount("A", "D"))

	// A-C and B-C now fall to 0.25 support; only A-B survives
	rules = u.CurrentRules()
	require.Len(t, rules, 2)
	assert.Equal(t, Pair(rules[0].ItemA, rules[0].ItemB), PairKey{A: "A", B: "B"})
}

func TestUpdater_AddTransaction(t *testing.T) {
	u := NewUpdater(DefaultThresholds())

	require.NoError(t, u.AddTransaction([]basket.LineItem{
		{TransactionID: "T1", ItemID: "P001"},
		{TransactionID: "T1", ItemID: "P002"},
		{TransactionID: "T1", ItemID: "P001"},
	}))
	assert.Equal(t, 1, u.Stats().Total())
	assert.Equal(t, 1, u.Stats().ItemCount("P001"))

	err := u.AddTransaction([]basket.LineItem{
		{TransactionID: "T2", ItemID: "P001"},
		{TransactionID: "T3", ItemID: "P002"},
	})
	assert.ErrorIs(t, err, basket.ErrMixedTransactions)
	assert.Equal(t, 1, u.Stats().Total(), "failed transaction must not be ingested")
}

func TestUpdater_IncrementalMatchesBatch(t *testing.T) {
	all := sampleBaskets()
	th := DefaultThresholds()

	u := NewUpdater(th)
	for _, b := range all {
		u.AddBaskets(b)
	}

	whole := NewStats()
	whole.IngestBatch(all)

	assert.Equal(t, whole.Rules(th.MinSupport, th.MinConfidence), u.CurrentRules())
	assert.Equal(t, whole.Statistics(), u.Statistics())
}

func TestUpdater_RulesReflectLatestState(t *testing.T) {
	u := NewUpdater(Thresholds{MinSupport: 0.0, MinConfidence: 0.0})
	u.AddBaskets(basket.New("A", "B"))

	first := u.TopAffinities(1)
	require.Len(t, first, 1)
	assert.InDelta(t, 1.0, first[0].Lift, eps)

	u.AddBaskets(basket.New("C"), basket.New("D"))

	// support(A)=support(B)=support(A,B)=1/3 → lift 3
	second := u.TopAffinities(1)
	require.Len(t, second, 1)
	assert.InDelta(t, 3.0, second[0].Lift, eps)
}
