// Package charts renders association rules as interactive HTML charts.
package charts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/blackwell-systems/basketlift/internal/affinity"
)

// ErrNoRules is returned when there is nothing to plot.
var ErrNoRules = errors.New("no association rules to chart")

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title    string
	Subtitle string
	Width    string
	Height   string
	Theme    string
	Colors   []string
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:  "1000px",
		Height: "600px",
		Theme:  "light",
		Colors: []string{"#5470C6", "#91CC75", "#FAC858"},
	}
}

// RenderTopAffinities writes a horizontal bar chart of the top n rules by
// lift, with lift, confidence and support series, to path.
func RenderTopAffinities(rules []affinity.Rule, n int, path string) error {
	config := DefaultChartConfig()
	config.Title = fmt.Sprintf("Top %d Product Affinities", n)
	config.Subtitle = "ranked by lift"
	return writeFile(path, func(w io.Writer) error {
		return TopAffinities(w, rules, n, config)
	})
}

// TopAffinities renders the top-n bar chart to w.
func TopAffinities(w io.Writer, rules []affinity.Rule, n int, config ChartConfig) error {
	top := affinity.TopAffinities(rules, n, affinity.MetricLift)
	if len(top) == 0 {
		return ErrNoRules
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithColorsOpts(opts.Colors(config.Colors)),
	)

	// Highest lift at the top once the axes are swapped.
	labels := make([]string, len(top))
	lift := make([]opts.BarData, len(top))
	conf := make([]opts.BarData, len(top))
	sup := make([]opts.BarData, len(top))
	for i, r := range top {
		j := len(top) - 1 - i
		labels[j] = ruleLabel(r)
		lift[j] = opts.BarData{Value: round4(r.Lift)}
		conf[j] = opts.BarData{Value: round4(r.Confidence)}
		sup[j] = opts.BarData{Value: round4(r.Support)}
	}

	bar.SetXAxis(labels).
		AddSeries("Lift", lift).
		AddSeries("Confidence", conf).
		AddSeries("Support", sup).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)
	bar.XYReversal()

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderHeatmap writes an item-by-item heatmap of metric to path. Cell
// (x, y) holds the rule "buyers of y also buy x".
func RenderHeatmap(rules []affinity.Rule, metric affinity.Metric, path string) error {
	config := DefaultChartConfig()
	config.Title = "Product Affinity Heatmap"
	config.Subtitle = string(metric)
	config.Height = "800px"
	return writeFile(path, func(w io.Writer) error {
		return Heatmap(w, rules, metric, config)
	})
}

// Heatmap renders the heatmap to w.
func Heatmap(w io.Writer, rules []affinity.Rule, metric affinity.Metric, config ChartConfig) error {
	if len(rules) == 0 {
		return ErrNoRules
	}

	items, labels := axis(rules)
	index := make(map[string]int, len(items))
	for i, id := range items {
		index[id] = i
	}

	data := make([]opts.HeatMapData, 0, len(rules))
	maxValue := 0.0
	for _, r := range rules {
		v := metricValue(metric, r)
		if v > maxValue {
			maxValue = v
		}
		data = append(data, opts.HeatMapData{
			Name:  ruleLabel(r),
			Value: [3]interface{}{index[r.ItemB], index[r.ItemA], round4(v)},
		})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Data: labels,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category",
			Data: labels,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxValue),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#f7fbff", "#6baed6", "#08306b"},
			},
		}),
	)
	hm.AddSeries(string(metric), data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// axis returns the sorted distinct items appearing in rules and their
// display labels.
func axis(rules []affinity.Rule) ([]string, []string) {
	names := make(map[string]string)
	for _, r := range rules {
		if _, ok := names[r.ItemA]; !ok || names[r.ItemA] == "" {
			names[r.ItemA] = r.ItemAName
		}
		if _, ok := names[r.ItemB]; !ok || names[r.ItemB] == "" {
			names[r.ItemB] = r.ItemBName
		}
	}

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	labels := make([]string, len(ids))
	for i, id := range ids {
		labels[i] = itemLabel(id, names[id])
	}
	return ids, labels
}

func metricValue(m affinity.Metric, r affinity.Rule) float64 {
	switch m {
	case affinity.MetricConfidence:
		return r.Confidence
	case affinity.MetricSupport:
		return r.Support
	default:
		return r.Lift
	}
}

func ruleLabel(r affinity.Rule) string {
	return itemLabel(r.ItemA, r.ItemAName) + " → " + itemLabel(r.ItemB, r.ItemBName)
}

func itemLabel(id, name string) string {
	if name == "" {
		return id
	}
	return name
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write chart file: %w", err)
	}
	return nil
}
