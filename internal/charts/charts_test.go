package charts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/basketlift/internal/affinity"
)

func sampleRules() []affinity.Rule {
	return []affinity.Rule{
		{ItemA: "P001", ItemB: "P002", Support: 0.12, Confidence: 0.45, Lift: 1.8, ItemAName: "Apple Juice 1L", ItemBName: "Banana Chips"},
		{ItemA: "P002", ItemB: "P001", Support: 0.12, Confidence: 0.40, Lift: 1.8, ItemAName: "Banana Chips", ItemBName: "Apple Juice 1L"},
		{ItemA: "P005", ItemB: "P006", Support: 0.08, Confidence: 0.50, Lift: 2.1},
		{ItemA: "P006", ItemB: "P005", Support: 0.08, Confidence: 0.33, Lift: 2.1},
	}
}

func TestTopAffinities(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TopAffinities(&buf, sampleRules(), 3, DefaultChartConfig()))

	html := buf.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Lift")
	assert.Contains(t, html, "Confidence")
	assert.Contains(t, html, "Support")
	assert.Contains(t, html, "P005")
	assert.NotContains(t, html, "Banana Chips → Apple Juice 1L", "only the top 3 rules are plotted")
}

func TestTopAffinities_NoRules(t *testing.T) {
	var buf bytes.Buffer
	err := TopAffinities(&buf, nil, 10, DefaultChartConfig())
	assert.ErrorIs(t, err, ErrNoRules)
}

func TestRenderTopAffinities_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top_affinities.html")
	require.NoError(t, RenderTopAffinities(sampleRules(), 10, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Top 10 Product Affinities")
}

func TestRenderTopAffinities_NoRulesLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "top_affinities.html")
	require.ErrorIs(t, RenderTopAffinities(nil, 10, path), ErrNoRules)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRenderHeatmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "affinity_heatmap.html")
	require.NoError(t, RenderHeatmap(sampleRules(), affinity.MetricConfidence, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Product Affinity Heatmap")
	assert.Contains(t, html, "heatmap")
	assert.Contains(t, html, "Apple Juice 1L")
}

func TestAxis(t *testing.T) {
	ids, labels := axis(sampleRules())
	assert.Equal(t, []string{"P001", "P002", "P005", "P006"}, ids)
	assert.Equal(t, []string{"Apple Juice 1L", "Banana Chips", "P005", "P006"}, labels)
}

func TestMetricValue(t *testing.T) {
	r := affinity.Rule{Support: 0.1, Confidence: 0.5, Lift: 2}
	assert.Equal(t, 0.1, metricValue(affinity.MetricSupport, r))
	assert.Equal(t, 0.5, metricValue(affinity.MetricConfidence, r))
	assert.Equal(t, 2.0, metricValue(affinity.MetricLift, r))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, round4(0.123456))
	assert.Equal(t, 1.8, round4(1.8))
}
