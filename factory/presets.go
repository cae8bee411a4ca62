package factory

import (
	json "github.com/goccy/go-json"
)

// =============================================================================
// PRESET CONTRACT TERMS
// =============================================================================
//
// Standard contract shapes as JSON term arrays, ready for ParseTerms or the
// terms field of a contract payload. Used by demo scenarios and tests.

// QualityTarget is a preset quality metric.
type QualityTarget struct {
	Metric      string
	Threshold   float64
	BonusAmount float64
}

// BaseOnlyJSON returns a salary-only contract.
func BaseOnlyJSON(base float64) string {
	return marshalPreset([]map[string]interface{}{
		baseTerm(base),
	})
}

// BaseWithProductivityJSON returns salary plus a wRVU incentive.
func BaseWithProductivityJSON(base, threshold, rate float64) string {
	return marshalPreset([]map[string]interface{}{
		baseTerm(base),
		{"type": "wrvu", "threshold": threshold, "rate": rate, "frequency": "annual"},
	})
}

// FullIncentiveJSON returns salary, wRVU incentive, quality bonuses and a
// quarterly collections bonus.
func FullIncentiveJSON(base, threshold, rate float64, quality []QualityTarget, collectionsRate float64) string {
	metrics := make(map[string]interface{}, len(quality))
	for _, q := range quality {
		metrics[q.Metric] = map[string]interface{}{"threshold": q.Threshold, "bonus_amount": q.BonusAmount}
	}
	return marshalPreset([]map[string]interface{}{
		baseTerm(base),
		{"type": "wrvu", "threshold": threshold, "rate": rate, "frequency": "annual"},
		{"type": "quality", "metrics": metrics, "frequency": "annual"},
		{"type": "collections", "rate": collectionsRate, "frequency": "quarterly"},
	})
}

func baseTerm(amount float64) map[string]interface{} {
	return map[string]interface{}{"type": "base", "amount": amount, "frequency": "annual"}
}

func marshalPreset(terms []map[string]interface{}) string {
	b, _ := json.MarshalIndent(terms, "", "  ")
	return string(b)
}
