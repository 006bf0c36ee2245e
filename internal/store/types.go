package store

import "time"

// Product is a catalogue entry used to label items in reports.
type Product struct {
	ID        string
	Name      string
	Category  string
	UnitPrice float64
}

// Run records one saved batch analysis.
type Run struct {
	ID                string
	CreatedAt         time.Time
	Source            string
	TotalTransactions int
	MinSupport        float64
	MinConfidence     float64
	RuleCount         int
}
