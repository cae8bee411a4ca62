package compensation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/compensation/store"
)

// reportStore seeds prov-1 with 2024 productivity and both benchmark curves.
func reportStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := seededStore(t)
	require.NoError(t, mem.SaveProductivity(ctx, monthly("prov-1", 2024,
		"420", "380", "450", "410", "440", "425", "430", "445", "400", "415", "435", "450")))
	_, err := mem.IngestBenchmarkPoints(ctx, cardiologyComp())
	require.NoError(t, err)
	_, err = mem.IngestBenchmarkPoints(ctx, curve("Cardiology", compensation.MetricWRVUs, 2024,
		"25", "4000", "50", "5000", "75", "6000", "90", "7000"))
	require.NoError(t, err)
	return mem
}

func fixedClock() time.Time { return time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC) }

func TestGenerate_FullReport(t *testing.T) {
	// GIVEN: 12 months totalling 5,100 wRVUs against base 250k + wRVU(4,800 @ 45)
	// WHEN: generating the 2024 report
	// THEN: total 263,500, all market sections available
	assembler := compensation.NewReportAssembler(reportStore(t))
	assembler.Now = fixedClock

	report, err := assembler.Generate(context.Background(), "prov-1", year2024, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "Ada Lovelace", report.Provider.Name())
	assert.Equal(t, fixedClock(), report.GeneratedAt)
	assertDecimal(t, "5100", report.Productivity.TotalWRVUs)
	assert.Len(t, report.Productivity.Series, 12)
	assertDecimal(t, "13500", report.Compensation.Amount(compensation.TermProductivity))
	assertDecimal(t, "263500", report.Compensation.Total)

	comp := report.Market.Compensation
	assert.Equal(t, compensation.MarketAvailable, comp.Status)
	require.NotNil(t, comp.Percentile)
	assertDecimal(t, "0", *comp.Percentile) // 263.5k is below p25
	require.NotNil(t, comp.Median)
	assertDecimal(t, "500000", *comp.Median)
	require.NotNil(t, comp.VsMedianPct)
	assertDecimal(t, "-47.3", *comp.VsMedianPct)

	prod := report.Market.Productivity
	assert.Equal(t, compensation.MarketAvailable, prod.Status)
	require.NotNil(t, prod.Percentile)
	assertDecimal(t, "50", *prod.Percentile) // first >= 5100 is 6000, rank 2 of 4
	assert.Equal(t, 2024, report.Market.Year)
}

func TestGenerate_UnknownProvider(t *testing.T) {
	// GIVEN: an empty store
	// WHEN: generating for an unknown provider
	// THEN: NotFoundError("Provider not found"), no partial report
	rec := newCountingRecorder()
	assembler := compensation.NewReportAssembler(store.NewMemory())
	assembler.Recorder = rec

	report, err := assembler.Generate(context.Background(), "ghost", year2024, nil)

	var nf *compensation.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Provider not found", err.Error())
	assert.Empty(t, report.ID)
	assert.Equal(t, []string{compensation.OutcomeNotFound}, rec.outcomes)
}

func TestGenerate_UnknownProviderReportedBeforePeriod(t *testing.T) {
	// GIVEN: an unknown provider and a reversed period
	// WHEN: generating
	// THEN: the missing provider is reported, not the period
	assembler := compensation.NewReportAssembler(seededStore(t))
	reversed := compensation.Period{Start: compensation.NewDate(2024, time.December, 31), End: compensation.NewDate(2024, time.January, 1)}

	_, err := assembler.Generate(context.Background(), "ghost", reversed, nil)
	assert.True(t, compensation.IsNotFound(err))
	assert.Equal(t, "Provider not found", err.Error())

	// AND: a known provider still gets the period error
	_, err = assembler.Generate(context.Background(), "prov-1", reversed, nil)
	assert.ErrorIs(t, err, compensation.ErrInvalidPeriod)
}

func TestGenerate_NoCurveMarksNoData(t *testing.T) {
	// GIVEN: productivity and a contract but no benchmark data
	rec := newCountingRecorder()
	mem := seededStore(t)
	require.NoError(t, mem.SaveProductivity(context.Background(), monthly("prov-1", 2024, "400", "420")))
	assembler := compensation.NewReportAssembler(mem)
	assembler.Recorder = rec

	report, err := assembler.Generate(context.Background(), "prov-1", year2024, nil)

	require.NoError(t, err)
	assert.Equal(t, compensation.MarketNoData, report.Market.Compensation.Status)
	assert.Nil(t, report.Market.Compensation.Percentile, "never defaulted to 0 or 100")
	assert.Nil(t, report.Market.Productivity.Percentile)
	assert.Equal(t, compensation.MarketNoData, rec.degraded[compensation.MetricWRVUs])
}

func TestGenerate_BenchmarkFailureDegradesMarket(t *testing.T) {
	// GIVEN: the compensation curve source is down
	// THEN: the report still succeeds, that section is unavailable
	data := &faultyData{
		DataAccess: reportStore(t),
		curveErr:   map[string]error{compensation.MetricCompensation: errSourceDown},
	}
	assembler := compensation.NewReportAssembler(data)

	report, err := assembler.Generate(context.Background(), "prov-1", year2024, nil)

	require.NoError(t, err)
	assert.Equal(t, compensation.MarketUnavailable, report.Market.Compensation.Status)
	assert.Contains(t, report.Market.Compensation.Reason, "connection refused")
	assert.Nil(t, report.Market.Compensation.Percentile)
	assert.Equal(t, compensation.MarketAvailable, report.Market.Productivity.Status)
}

func TestGenerate_ProductivityFailureAborts(t *testing.T) {
	data := &faultyData{DataAccess: reportStore(t), productivityErr: errSourceDown}
	assembler := compensation.NewReportAssembler(data)

	_, err := assembler.Generate(context.Background(), "prov-1", year2024, nil)

	assert.True(t, compensation.IsExternal(err))
	var ext *compensation.ExternalDataError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "productivity", ext.Source)
}

func TestGenerate_MissingContractAborts(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.SaveProvider(context.Background(), compensation.Provider{ID: "p", Specialty: "Cardiology"}))

	_, err := compensation.NewReportAssembler(mem).Generate(context.Background(), "p", year2024, nil)

	assert.True(t, compensation.IsNotFound(err))
	assert.EqualError(t, err, "Active contract not found")
}

func TestGenerate_QualityInputsAreCopied(t *testing.T) {
	// GIVEN: a caller-owned quality map
	// WHEN: the caller mutates it after generation
	// THEN: the report is unchanged
	mem := reportStore(t)
	assembler := compensation.NewReportAssembler(mem)
	quality := map[string]decimal.Decimal{"hcahps": dec("91")}

	report, err := assembler.Generate(context.Background(), "prov-1", year2024, quality)
	require.NoError(t, err)

	quality["hcahps"] = dec("10")
	quality["new"] = dec("1")
	assertDecimal(t, "91", report.Quality["hcahps"])
	assert.Len(t, report.Quality, 1)
}

func TestProviderReport_CloneIsIndependent(t *testing.T) {
	report, err := compensation.NewReportAssembler(reportStore(t)).Generate(context.Background(), "prov-1", year2024, nil)
	require.NoError(t, err)

	clone := report.Clone()
	clone.Compensation.Breakdown[compensation.TermBase] = dec("1")
	clone.Productivity.Series[0].WRVUs = dec("1")
	*clone.Market.Compensation.Percentile = dec("99")

	assertDecimal(t, "250000", report.Compensation.Breakdown[compensation.TermBase])
	assertDecimal(t, "420", report.Productivity.Series[0].WRVUs)
	assertDecimal(t, "0", *report.Market.Compensation.Percentile)
}

func TestGenerate_ConfiguredMetricNames(t *testing.T) {
	mem := seededStore(t)
	_, err := mem.IngestBenchmarkPoints(context.Background(), curve("Cardiology", "total_cash_comp", 2024, "50", "100000"))
	require.NoError(t, err)
	assembler := compensation.NewReportAssembler(mem)
	assembler.CompensationMetric = "total_cash_comp"

	report, err := assembler.Generate(context.Background(), "prov-1", year2024, nil)

	require.NoError(t, err)
	assert.Equal(t, compensation.MarketAvailable, report.Market.Compensation.Status)
	assertDecimal(t, "100", *report.Market.Compensation.Percentile)
}

// =============================================================================
// BATCH
// =============================================================================

func TestGenerateBatch_CollectsPerProviderErrors(t *testing.T) {
	assembler := compensation.NewReportAssembler(reportStore(t))
	assembler.BatchConcurrency = 2

	results := assembler.GenerateBatch(context.Background(), []compensation.ReportRequest{
		{ProviderID: "prov-1", Period: year2024},
		{ProviderID: "ghost", Period: year2024},
		{ProviderID: "prov-1", Period: compensation.QuarterPeriod(2024, 1)},
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Report)
	assert.True(t, compensation.IsNotFound(results[1].Err))
	assert.Nil(t, results[1].Report)
	assert.Equal(t, compensation.ProviderID("ghost"), results[1].ProviderID)
	require.NotNil(t, results[2].Report)
	assertDecimal(t, "1250", results[2].Report.Productivity.TotalWRVUs)
}
