package compensation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/compensation-engine/compensation"
)

// =============================================================================
// TERM EVALUATION
// =============================================================================

func TestEvaluate_BaseTerm_IgnoresInputs(t *testing.T) {
	e := compensation.NewTermEvaluator(decimal.Zero)

	got := e.Evaluate(base("250000"), compensation.Inputs{WRVUs: dec("9999")})

	assertDecimal(t, "250000", got)
}

func TestEvaluate_ProductivityTerm(t *testing.T) {
	// GIVEN: threshold 4,800 wRVUs at $45
	term := wrvuTerm("4800", "45")
	e := compensation.NewTermEvaluator(decimal.Zero)

	tests := []struct {
		name     string
		wrvus    string
		expected string
	}{
		{"above threshold", "5200", "18000"},
		{"below threshold", "4500", "0"},
		{"at threshold", "4800", "0"},
		{"fractional excess", "4800.5", "22.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(term, compensation.Inputs{WRVUs: dec(tt.wrvus)})
			assertDecimal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_QualityBonus(t *testing.T) {
	// GIVEN: two quality targets
	term := compensation.QualityBonusTerm{
		Schedule: compensation.Schedule{Frequency: compensation.FrequencyAnnual},
		Metrics: map[string]compensation.QualityTarget{
			"patient_satisfaction": {Threshold: dec("90"), BonusAmount: dec("5000")},
			"readmission_score":    {Threshold: dec("80"), BonusAmount: dec("3000")},
		},
	}
	e := compensation.NewTermEvaluator(decimal.Zero)

	t.Run("both met", func(t *testing.T) {
		in := compensation.Inputs{QualityMetrics: map[string]decimal.Decimal{
			"patient_satisfaction": dec("92"),
			"readmission_score":    dec("80"),
		}}
		assertDecimal(t, "8000", e.Evaluate(term, in))
	})

	t.Run("one met", func(t *testing.T) {
		in := compensation.Inputs{QualityMetrics: map[string]decimal.Decimal{
			"patient_satisfaction": dec("89.9"),
			"readmission_score":    dec("85"),
		}}
		assertDecimal(t, "3000", e.Evaluate(term, in))
	})

	t.Run("absent metric does not fail", func(t *testing.T) {
		in := compensation.Inputs{QualityMetrics: map[string]decimal.Decimal{
			"patient_satisfaction": dec("95"),
		}}
		assertDecimal(t, "5000", e.Evaluate(term, in))
	})

	t.Run("no metrics at all", func(t *testing.T) {
		assertDecimal(t, "0", e.Evaluate(term, compensation.Inputs{}))
	})
}

func TestEvaluate_CollectionsBonus(t *testing.T) {
	// GIVEN: 10% of collections above 55/wRVU
	term := compensation.CollectionsBonusTerm{
		Schedule: compensation.Schedule{Frequency: compensation.FrequencyQuarterly},
		Rate:     dec("0.10"),
	}

	t.Run("default baseline", func(t *testing.T) {
		e := compensation.NewTermEvaluator(decimal.Zero)
		// expected = 1000 * 55 = 55,000; excess = 5,000
		got := e.Evaluate(term, compensation.Inputs{WRVUs: dec("1000"), Collections: dec("60000")})
		assertDecimal(t, "500", got)
	})

	t.Run("below baseline", func(t *testing.T) {
		e := compensation.NewTermEvaluator(decimal.Zero)
		got := e.Evaluate(term, compensation.Inputs{WRVUs: dec("1000"), Collections: dec("50000")})
		assertDecimal(t, "0", got)
	})

	t.Run("configured baseline", func(t *testing.T) {
		e := compensation.NewTermEvaluator(dec("50"))
		got := e.Evaluate(term, compensation.Inputs{WRVUs: dec("1000"), Collections: dec("60000")})
		assertDecimal(t, "1000", got)
	})
}

func TestEvaluate_FrequencyDoesNotProrate(t *testing.T) {
	// GIVEN: the same base amount on an annual and a monthly schedule
	// THEN: both contribute the full amount
	e := compensation.NewTermEvaluator(decimal.Zero)
	annual := base("120000")
	monthly := compensation.BaseTerm{Schedule: compensation.Schedule{Amount: dec("120000"), Frequency: compensation.FrequencyMonthly}}

	assert.True(t, e.Evaluate(annual, compensation.Inputs{}).Equal(e.Evaluate(monthly, compensation.Inputs{})))
}

// =============================================================================
// TERM VALIDATION
// =============================================================================

func TestTermValidate(t *testing.T) {
	annual := compensation.Schedule{Frequency: compensation.FrequencyAnnual}

	tests := []struct {
		name  string
		term  compensation.Term
		field string
	}{
		{"negative base", compensation.BaseTerm{Schedule: compensation.Schedule{Amount: dec("-1"), Frequency: compensation.FrequencyAnnual}}, "amount"},
		{"unknown frequency", compensation.BaseTerm{Schedule: compensation.Schedule{Amount: dec("1"), Frequency: "weekly"}}, "frequency"},
		{"negative threshold", compensation.ProductivityTerm{Schedule: annual, Threshold: dec("-5"), Rate: dec("1")}, "threshold"},
		{"negative rate", compensation.ProductivityTerm{Schedule: annual, Rate: dec("-1")}, "rate"},
		{"quality without metrics", compensation.QualityBonusTerm{Schedule: annual}, "metrics"},
		{"negative collections rate", compensation.CollectionsBonusTerm{Schedule: annual, Rate: dec("-0.1")}, "rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.term.Validate()

			var verr *compensation.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.field, verr.Field)
			}
			assert.True(t, compensation.IsClientError(err))
		})
	}
}
