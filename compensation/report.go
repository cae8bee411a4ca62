/*
report.go - Provider report assembly

PURPOSE:
  Orchestrates the calculator, the productivity aggregator and the benchmark
  service into one immutable ProviderReport per (provider, period).

FLOW:
  1. Fetch provider                            -> NotFoundError("Provider")
  2. Validate the period                       -> ValidationError
  3. In parallel (no data dependency):
       a. productivity records -> Aggregate    (failure aborts the report)
       b. compensation and wRVU benchmark curves (failure degrades market)
  4. Compensation from the aggregated totals   (failure aborts the report)
  5. Market standing of total compensation and total wRVUs
  6. Snapshot: every map and slice is copied into the report

MARKET STATUS:
  available:   curve found, percentile computed
  no_data:     curve empty, percentile is nil (never 0 or 100)
  unavailable: curve fetch failed, Reason carries the error text

BENCHMARK YEAR:
  The year of period.End. A report spanning two years is compared with the
  market of the year it ends in.

CONCURRENCY:
  The assembler holds no mutable state. Reports for different providers are
  independent; GenerateBatch runs them on a bounded errgroup.
*/
package compensation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// MarketStatus tells whether a market standing could be computed.
type MarketStatus string

const (
	MarketAvailable   MarketStatus = "available"
	MarketNoData      MarketStatus = "no_data"
	MarketUnavailable MarketStatus = "unavailable"
)

// MarketStanding places one observed value on its benchmark curve.
// Percentile, Median and VsMedianPct are nil when undefined.
type MarketStanding struct {
	Metric      string
	Value       decimal.Decimal
	Status      MarketStatus
	Percentile  *decimal.Decimal
	Median      *decimal.Decimal
	VsMedianPct *decimal.Decimal
	Reason      string
}

// MarketComparison is the market section of a report.
type MarketComparison struct {
	Specialty    string
	Year         int
	Compensation MarketStanding
	Productivity MarketStanding
}

// ProviderReport is an immutable snapshot. It owns copies of everything it
// holds; mutating inputs after Generate returns does not affect it.
type ProviderReport struct {
	ID           string
	Provider     Provider
	Period       Period
	Quality      map[string]decimal.Decimal
	Productivity ProductivitySummary
	Compensation CompensationResult
	Market       MarketComparison
	GeneratedAt  time.Time
}

// ReportRequest is one entry of a batch.
type ReportRequest struct {
	ProviderID ProviderID
	Period     Period
	Quality    map[string]decimal.Decimal
}

// BatchResult holds either a report or the error that prevented it.
type BatchResult struct {
	ProviderID ProviderID
	Report     *ProviderReport
	Err        error
}

// =============================================================================
// ASSEMBLER
// =============================================================================

const (
	defaultBatchConcurrency = 4
)

// ReportAssembler builds provider reports.
type ReportAssembler struct {
	Data       DataAccess
	Calculator *Calculator
	Logger     *zap.Logger
	Recorder   Recorder
	Now        func() time.Time

	// Benchmark metric names for the two market comparisons.
	CompensationMetric string
	ProductivityMetric string

	BatchConcurrency int
}

// NewReportAssembler returns an assembler with default metric names,
// no-op logging and metrics, and the wall clock.
func NewReportAssembler(data DataAccess) *ReportAssembler {
	return &ReportAssembler{
		Data:               data,
		Calculator:         NewCalculator(data),
		Logger:             zap.NewNop(),
		Recorder:           NopRecorder{},
		Now:                time.Now,
		CompensationMetric: MetricCompensation,
		ProductivityMetric: MetricWRVUs,
		BatchConcurrency:   defaultBatchConcurrency,
	}
}

// Generate assembles the report of one provider over a period. Any failure
// of a mandatory section aborts: no partial report is returned.
func (a *ReportAssembler) Generate(ctx context.Context, providerID ProviderID, period Period, quality map[string]decimal.Decimal) (ProviderReport, error) {
	started := time.Now()
	report, err := a.generate(ctx, providerID, period, quality)
	a.recorder().ReportGenerated(Outcome(err), time.Since(started))
	if err != nil {
		a.logger().Info("report generation failed",
			zap.String("provider_id", string(providerID)),
			zap.Error(err),
		)
		return ProviderReport{}, err
	}
	a.logger().Info("report generated",
		zap.String("report_id", report.ID),
		zap.String("provider_id", string(providerID)),
		zap.String("period", period.String()),
		zap.String("total", report.Compensation.Total.String()),
		zap.String("compensation_status", string(report.Market.Compensation.Status)),
		zap.String("productivity_status", string(report.Market.Productivity.Status)),
	)
	return report, nil
}

func (a *ReportAssembler) generate(ctx context.Context, providerID ProviderID, period Period, quality map[string]decimal.Decimal) (ProviderReport, error) {
	provider, err := a.Data.GetProvider(ctx, providerID)
	if err != nil {
		return ProviderReport{}, externalErr("provider", err)
	}
	if provider == nil {
		return ProviderReport{}, &NotFoundError{Entity: "Provider", ID: string(providerID)}
	}

	if err := period.Validate(); err != nil {
		return ProviderReport{}, err
	}

	year := period.Year()
	compMetric, prodMetric := a.metricNames()

	var (
		summary              ProductivitySummary
		compCurve, prodCurve []BenchmarkPoint
		compErr, prodErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := a.Data.GetProductivity(gctx, providerID, period.Start, period.End)
		if err != nil {
			return externalErr("productivity", err)
		}
		summary = Aggregate(records)
		return nil
	})
	// Curve failures never fail the group; the market section degrades instead.
	g.Go(func() error {
		compCurve, compErr = a.Data.GetBenchmarkCurve(gctx, provider.Specialty, compMetric, year)
		return nil
	})
	g.Go(func() error {
		prodCurve, prodErr = a.Data.GetBenchmarkCurve(gctx, provider.Specialty, prodMetric, year)
		return nil
	})
	if err := g.Wait(); err != nil {
		return ProviderReport{}, err
	}

	result, err := a.calculator().calculateContract(ctx, providerID, period.End, summary.Inputs(quality))
	if err != nil {
		return ProviderReport{}, err
	}

	market := MarketComparison{
		Specialty:    provider.Specialty,
		Year:         year,
		Compensation: a.standing(providerID, compMetric, result.Total, compCurve, compErr),
		Productivity: a.standing(providerID, prodMetric, summary.TotalWRVUs, prodCurve, prodErr),
	}

	report := ProviderReport{
		ID:           uuid.NewString(),
		Provider:     *provider,
		Period:       Period{Start: Day(period.Start), End: Day(period.End)},
		Quality:      copyMetrics(quality),
		Productivity: summary.clone(),
		Compensation: result.clone(),
		Market:       market,
		GeneratedAt:  a.now().UTC(),
	}
	return report, nil
}

// standing computes one market standing, degrading on a missing or failed curve.
func (a *ReportAssembler) standing(providerID ProviderID, metric string, value decimal.Decimal, curve []BenchmarkPoint, fetchErr error) MarketStanding {
	s := MarketStanding{Metric: metric, Value: value}

	if fetchErr != nil {
		s.Status = MarketUnavailable
		s.Reason = externalErr("benchmarks", fetchErr).Error()
		a.degraded(providerID, metric, s)
		return s
	}

	percentile, ok := PercentileRank(curve, value)
	if !ok {
		s.Status = MarketNoData
		s.Reason = ErrNoMarketData.Error()
		a.degraded(providerID, metric, s)
		return s
	}

	s.Status = MarketAvailable
	s.Percentile = &percentile
	if median, ok := Median(curve); ok {
		s.Median = &median
		if vs, ok := RelativeStanding(value, median); ok {
			s.VsMedianPct = &vs
		}
	}
	return s
}

func (a *ReportAssembler) degraded(providerID ProviderID, metric string, s MarketStanding) {
	a.recorder().MarketDegraded(metric, s.Status)
	a.logger().Warn("market comparison degraded",
		zap.String("provider_id", string(providerID)),
		zap.String("metric", metric),
		zap.String("status", string(s.Status)),
		zap.String("reason", s.Reason),
	)
}

// GenerateBatch generates reports concurrently, at most BatchConcurrency at a
// time. A failing provider yields an entry with Err set and does not stop
// the others. Results keep the order of requests.
func (a *ReportAssembler) GenerateBatch(ctx context.Context, requests []ReportRequest) []BatchResult {
	results := make([]BatchResult, len(requests))

	limit := a.BatchConcurrency
	if limit <= 0 {
		limit = defaultBatchConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			results[i].ProviderID = req.ProviderID
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			report, err := a.Generate(ctx, req.ProviderID, req.Period, req.Quality)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Report = &report
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *ReportAssembler) metricNames() (string, string) {
	comp, prod := a.CompensationMetric, a.ProductivityMetric
	if comp == "" {
		comp = MetricCompensation
	}
	if prod == "" {
		prod = MetricWRVUs
	}
	return comp, prod
}

func (a *ReportAssembler) calculator() *Calculator {
	if a.Calculator == nil {
		return NewCalculator(a.Data)
	}
	return a.Calculator
}

func (a *ReportAssembler) recorder() Recorder {
	if a.Recorder == nil {
		return NopRecorder{}
	}
	return a.Recorder
}

func (a *ReportAssembler) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *ReportAssembler) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// =============================================================================
// SNAPSHOT COPIES
// =============================================================================

func copyMetrics(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy. Reports handed to callers are already private
// copies; Clone is for callers that want to derive a modified version.
func (r ProviderReport) Clone() ProviderReport {
	r.Quality = copyMetrics(r.Quality)
	r.Productivity = r.Productivity.clone()
	r.Compensation = r.Compensation.clone()
	r.Market.Compensation = r.Market.Compensation.clone()
	r.Market.Productivity = r.Market.Productivity.clone()
	return r
}

func (s MarketStanding) clone() MarketStanding {
	s.Percentile = copyDecimal(s.Percentile)
	s.Median = copyDecimal(s.Median)
	s.VsMedianPct = copyDecimal(s.VsMedianPct)
	return s
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
