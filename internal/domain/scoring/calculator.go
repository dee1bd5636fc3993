package scoring

import (
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/shopspring/decimal"
)

// Calculate returns the unrounded fantasy-point total of rec under rule.
// Batting categories read only batting fields and pitching categories only
// pitching fields, so a record scores under whichever side it carries.
func Calculate(rec stats.StatRecord, rule Rule) float64 {
	var total float64
	for _, c := range AllCategories {
		total += c.Weight(rule.Weights) * c.Value(rec)
	}
	return total
}

func Breakdown(rec stats.StatRecord, rule Rule) map[string]float64 {
	out := make(map[string]float64, len(AllCategories))
	for _, c := range AllCategories {
		if v := c.Weight(rule.Weights) * c.Value(rec); v != 0 {
			out[c.String()] = v
		}
	}
	return out
}

// FormatPoints renders whole totals without a decimal part and everything
// else with at most two decimals.
func FormatPoints(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
