package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blackwell-systems/basketlift/internal/affinity"
)

// RenderReport renders the plain-text affinity report: summary averages
// followed by the topN rules by lift.
func RenderReport(rules []affinity.Rule, topN int) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 80)
	sep := strings.Repeat("-", 80)

	sb.WriteString(rule + "\n")
	sb.WriteString("SHOPPING BASKET AFFINITY ANALYSIS REPORT\n")
	sb.WriteString(rule + "\n\n")

	sb.WriteString("SUMMARY STATISTICS\n")
	sb.WriteString(sep + "\n")
	sb.WriteString(fmt.Sprintf("Total association rules found: %d\n", len(rules)))
	if len(rules) > 0 {
		var sup, conf, lift float64
		for _, r := range rules {
			sup += r.Support
			conf += r.Confidence
			lift += r.Lift
		}
		n := float64(len(rules))
		sb.WriteString(fmt.Sprintf("Average support: %.4f\n", sup/n))
		sb.WriteString(fmt.Sprintf("Average confidence: %.4f\n", conf/n))
		sb.WriteString(fmt.Sprintf("Average lift: %.4f\n", lift/n))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("TOP %d PRODUCT AFFINITIES (by Lift)\n", topN))
	sb.WriteString(sep + "\n")

	for i, r := range affinity.TopAffinities(rules, topN, affinity.MetricLift) {
		sb.WriteString(fmt.Sprintf("\n%d. %s → %s\n", i+1, Label(r.ItemA, r.ItemAName), Label(r.ItemB, r.ItemBName)))
		sb.WriteString(fmt.Sprintf("   Support:    %.4f\n", r.Support))
		sb.WriteString(fmt.Sprintf("   Confidence: %.4f\n", r.Confidence))
		sb.WriteString(fmt.Sprintf("   Lift:       %.4f\n", r.Lift))
	}

	sb.WriteString("\n" + rule + "\n")
	return sb.String()
}

// WriteRecommendationsCSV exports rules as "Customers who buy X also buy Y"
// rows. Id and name columns are included when any rule carries names.
func WriteRecommendationsCSV(w io.Writer, rules []affinity.Rule) error {
	named := false
	for _, r := range rules {
		if r.ItemAName != "" || r.ItemBName != "" {
			named = true
			break
		}
	}

	cw := csv.NewWriter(w)
	header := []string{"recommendation", "support", "confidence", "lift"}
	if named {
		header = append([]string{"product_a", "product_a_name", "product_b", "product_b_name"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range rules {
		a, b := r.ItemA, r.ItemB
		if named {
			a, b = displayName(r.ItemA, r.ItemAName), displayName(r.ItemB, r.ItemBName)
		}
		record := []string{
			"Customers who buy " + a + " also buy " + b,
			formatFloat(r.Support),
			formatFloat(r.Confidence),
			formatFloat(r.Lift),
		}
		if named {
			record = append([]string{r.ItemA, r.ItemAName, r.ItemB, r.ItemBName}, record...)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write %s: %w", r.Direction(), err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func displayName(id, name string) string {
	if name == "" {
		return id
	}
	return name
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
