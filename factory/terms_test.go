package factory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseTerms_AllVariants(t *testing.T) {
	// GIVEN: one term of every type, numbers as JSON numbers and strings
	data := `[
		{"type": "base", "amount": 250000},
		{"type": "wrvu", "threshold": 4800, "rate": "45.50", "frequency": "annual"},
		{"type": "quality", "metrics": {"hcahps": {"threshold": 85, "bonus_amount": 7500}}},
		{"type": "collections", "rate": 0.1, "frequency": "quarterly"}
	]`

	terms, err := factory.ParseTerms([]byte(data))

	require.NoError(t, err)
	require.Len(t, terms, 4)

	b, ok := terms[0].(compensation.BaseTerm)
	require.True(t, ok)
	assert.Equal(t, "250000", b.Amount.String())
	assert.Equal(t, compensation.FrequencyAnnual, b.Frequency, "frequency defaults to annual")

	w := terms[1].(compensation.ProductivityTerm)
	assert.Equal(t, "4800", w.Threshold.String())
	assert.Equal(t, "45.5", w.Rate.String())

	q := terms[2].(compensation.QualityBonusTerm)
	assert.Equal(t, "7500", q.Metrics["hcahps"].BonusAmount.String())

	c := terms[3].(compensation.CollectionsBonusTerm)
	assert.Equal(t, "0.1", c.Rate.String())
	assert.Equal(t, compensation.FrequencyQuarterly, c.Frequency)
}

func TestParseTerms_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		field string
	}{
		{"wrvu without rate", `[{"type":"wrvu","threshold":4800}]`, "terms[0].rate"},
		{"wrvu without threshold", `[{"type":"wrvu","rate":45}]`, "terms[0].threshold"},
		{"base without amount", `[{"type":"base"}]`, "terms[0].amount"},
		{"collections without rate", `[{"type":"base","amount":1},{"type":"collections"}]`, "terms[1].rate"},
		{"quality without metrics", `[{"type":"quality"}]`, "terms[0].metrics"},
		{"quality metric without threshold", `[{"type":"quality","metrics":{"hcahps":{"bonus_amount":7500}}}]`, "terms[0].metrics.hcahps.threshold"},
		{"quality metric without bonus", `[{"type":"quality","metrics":{"hcahps":{"threshold":85}}}]`, "terms[0].metrics.hcahps.bonus_amount"},
		{"quality metric empty", `[{"type":"quality","metrics":{"a_ok":{"threshold":1,"bonus_amount":2},"readmission":{}}}]`, "terms[0].metrics.readmission.threshold"},
		{"unknown type", `[{"type":"equity","amount":1}]`, "terms[0].type"},
		{"missing type", `[{"amount":1}]`, "terms[0].type"},
		{"unknown frequency", `[{"type":"base","amount":1,"frequency":"weekly"}]`, "terms[0].frequency"},
		{"negative amount", `[{"type":"base","amount":-5}]`, "terms[0].amount"},
		{"malformed json", `[{"type":`, "terms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.ParseTerms([]byte(tt.data))

			var verr *compensation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, compensation.IsClientError(err))
		})
	}
}

func TestMarshalTerms_RoundTrip(t *testing.T) {
	original, err := factory.ParseTerms([]byte(factory.FullIncentiveJSON(250000, 4800, 45,
		[]factory.QualityTarget{{Metric: "hcahps", Threshold: 85, BonusAmount: 7500}}, 0.1)))
	require.NoError(t, err)

	data, err := factory.MarshalTerms(original)
	require.NoError(t, err)
	parsed, err := factory.ParseTerms(data)
	require.NoError(t, err)

	evaluator := compensation.NewTermEvaluator(compensation.DefaultExpectedCollectionsPerWRVU)
	in := compensation.Inputs{WRVUs: dec("5000"), Collections: dec("300000")}
	require.Len(t, parsed, len(original))
	for i := range original {
		assert.Equal(t, original[i].Kind(), parsed[i].Kind())
		assert.True(t, evaluator.Evaluate(original[i], in).Equal(evaluator.Evaluate(parsed[i], in)))
	}
}

func TestParseContract(t *testing.T) {
	data := `{
		"id": "c-1", "provider_id": "p-1", "name": "Employment",
		"start_date": "2024-01-01", "end_date": "2024-12-31",
		"terms": ` + factory.BaseWithProductivityJSON(250000, 4800, 45) + `
	}`

	contract, err := factory.ParseContract([]byte(data))

	require.NoError(t, err)
	assert.Equal(t, compensation.ContractID("c-1"), contract.ID)
	assert.Equal(t, compensation.NewDate(2024, time.January, 1), contract.StartDate)
	require.NotNil(t, contract.EndDate)
	assert.Equal(t, compensation.NewDate(2024, time.December, 31), *contract.EndDate)
	assert.Len(t, contract.Terms, 2)

	back := factory.ContractToJSON(contract)
	assert.Equal(t, "2024-12-31", *back.EndDate)
}

func TestParseContract_EndBeforeStart(t *testing.T) {
	_, err := factory.ParseContract([]byte(`{"id":"c","start_date":"2024-05-01","end_date":"2024-01-01","terms":[]}`))

	var verr *compensation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestParseDate(t *testing.T) {
	_, err := factory.ParseDate("start_date", "01/02/2024")
	assert.True(t, compensation.IsClientError(err))

	_, err = factory.ParseDate("start_date", "")
	assert.True(t, compensation.IsClientError(err))
}
