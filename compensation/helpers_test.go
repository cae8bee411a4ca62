package compensation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/compensation/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), append([]interface{}{"expected %s, got %s", expected, actual.String()}, msgAndArgs...)...)
}

func base(amount string) compensation.BaseTerm {
	return compensation.BaseTerm{Schedule: compensation.Schedule{Amount: dec(amount), Frequency: compensation.FrequencyAnnual}}
}

func wrvuTerm(threshold, rate string) compensation.ProductivityTerm {
	return compensation.ProductivityTerm{
		Schedule:  compensation.Schedule{Frequency: compensation.FrequencyAnnual},
		Threshold: dec(threshold),
		Rate:      dec(rate),
	}
}

func curve(specialty, metric string, year int, pairs ...string) []compensation.BenchmarkPoint {
	points := make([]compensation.BenchmarkPoint, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		points = append(points, compensation.BenchmarkPoint{
			Specialty:  specialty,
			Metric:     metric,
			Year:       year,
			Percentile: dec(pairs[i]),
			Value:      dec(pairs[i+1]),
		})
	}
	return points
}

// seededStore holds one cardiologist with a base + wRVU contract for 2024.
func seededStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.SaveProvider(ctx, compensation.Provider{
		ID: "prov-1", FirstName: "Ada", LastName: "Lovelace", Specialty: "Cardiology", Role: compensation.RolePhysician,
	}))
	require.NoError(t, mem.SaveContract(ctx, compensation.Contract{
		ID:         "contract-1",
		ProviderID: "prov-1",
		Name:       "2024 Employment",
		StartDate:  compensation.NewDate(2024, time.January, 1),
		Terms:      []compensation.Term{base("250000"), wrvuTerm("4800", "45")},
	}))
	return mem
}

func monthly(providerID compensation.ProviderID, year int, wrvus ...string) []compensation.ProductivityRecord {
	records := make([]compensation.ProductivityRecord, 0, len(wrvus))
	for i, w := range wrvus {
		records = append(records, compensation.ProductivityRecord{
			ID:          string(providerID) + "-" + time.Month(i+1).String(),
			ProviderID:  providerID,
			Period:      compensation.StartOfMonth(year, time.Month(i+1)),
			WRVUs:       dec(w),
			Encounters:  100,
			Collections: dec("0"),
		})
	}
	return records
}

// faultyData wraps a DataAccess and fails selected reads.
type faultyData struct {
	compensation.DataAccess
	productivityErr error
	curveErr        map[string]error // by metric
	providerErr     error
}

var errSourceDown = errors.New("connection refused")

func (f *faultyData) GetProvider(ctx context.Context, id compensation.ProviderID) (*compensation.Provider, error) {
	if f.providerErr != nil {
		return nil, f.providerErr
	}
	return f.DataAccess.GetProvider(ctx, id)
}

func (f *faultyData) GetProductivity(ctx context.Context, id compensation.ProviderID, start, end time.Time) ([]compensation.ProductivityRecord, error) {
	if f.productivityErr != nil {
		return nil, f.productivityErr
	}
	return f.DataAccess.GetProductivity(ctx, id, start, end)
}

func (f *faultyData) GetBenchmarkCurve(ctx context.Context, specialty, metric string, year int) ([]compensation.BenchmarkPoint, error) {
	if err := f.curveErr[metric]; err != nil {
		return nil, err
	}
	return f.DataAccess.GetBenchmarkCurve(ctx, specialty, metric, year)
}

// countingRecorder captures Recorder calls.
type countingRecorder struct {
	outcomes []string
	degraded map[string]compensation.MarketStatus
	accepted int
	skipped  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{degraded: make(map[string]compensation.MarketStatus)}
}

func (r *countingRecorder) ReportGenerated(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) BenchmarkPointsIngested(accepted, skipped int) {
	r.accepted += accepted
	r.skipped += skipped
}

func (r *countingRecorder) MarketDegraded(metric string, status compensation.MarketStatus) {
	r.degraded[metric] = status
}
