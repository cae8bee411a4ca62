/*
benchmark.go - Market benchmark curves and percentile rank

PURPOSE:
  Market surveys publish, per specialty/metric/year, the value at a handful
  of percentiles (p25, p50, p75, p90). That set of points is a benchmark
  curve. This file ingests points and places an observed value on a curve.

PERCENTILE RANK (discrete, not interpolated):
  1. Sort the curve's values ascending
  2. Find the first value >= target, at 0-based rank i of n
  3. percentile = i / n * 100
  4. No value >= target: percentile = 100
  5. Empty curve: undefined. Callers get ok=false and must show "no market
     data", never 0 or 100.

  Example: values [400k, 500k, 600k, 700k], target 550k
           first >= 550k is 600k at rank 2 -> 2/4*100 = 50

  For a fixed curve the rank is monotonic non-decreasing in the target.

INGESTION:
  Append-only and idempotent. Duplicates on (specialty, metric, year,
  percentile), inside the batch or already stored, are skipped and counted.
*/
package compensation

import (
	"context"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MedianPercentile is the curve point used for relative standing.
var MedianPercentile = decimal.NewFromInt(50)

// =============================================================================
// PURE CURVE FUNCTIONS
// =============================================================================

// PercentileRank places value on the curve. ok is false for an empty curve.
func PercentileRank(curve []BenchmarkPoint, value decimal.Decimal) (percentile decimal.Decimal, ok bool) {
	n := len(curve)
	if n == 0 {
		return decimal.Zero, false
	}

	values := make([]decimal.Decimal, n)
	for i, p := range curve {
		values[i] = p.Value
	}
	sort.SliceStable(values, func(i, j int) bool { return values[i].LessThan(values[j]) })

	rank := sort.Search(n, func(i int) bool { return values[i].GreaterThanOrEqual(value) })
	if rank == n {
		return hundred, true
	}
	return decimal.NewFromInt(int64(rank) * 100).Div(decimal.NewFromInt(int64(n))), true
}

// SortByPercentile returns a copy of the curve ordered by ascending percentile.
func SortByPercentile(curve []BenchmarkPoint) []BenchmarkPoint {
	sorted := make([]BenchmarkPoint, len(curve))
	copy(sorted, curve)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Percentile.LessThan(sorted[j].Percentile)
	})
	return sorted
}

// Median returns the value of the 50th percentile point, if the curve has one.
func Median(curve []BenchmarkPoint) (decimal.Decimal, bool) {
	for _, p := range curve {
		if p.Percentile.Equal(MedianPercentile) {
			return p.Value, true
		}
	}
	return decimal.Zero, false
}

// RelativeStanding returns (value - benchmark) / benchmark * 100.
// ok is false when the benchmark is zero.
func RelativeStanding(value, benchmark decimal.Decimal) (decimal.Decimal, bool) {
	if benchmark.IsZero() {
		return decimal.Zero, false
	}
	return value.Sub(benchmark).Div(benchmark).Mul(hundred), true
}

// ValidatePoint checks one point before it is stored.
func ValidatePoint(p BenchmarkPoint) error {
	switch {
	case p.Specialty == "":
		return &ValidationError{Field: "specialty", Reason: "is required"}
	case p.Metric == "":
		return &ValidationError{Field: "metric", Reason: "is required"}
	case p.Year <= 0:
		return &ValidationError{Field: "year", Reason: "must be positive"}
	case p.Percentile.IsNegative() || p.Percentile.GreaterThan(hundred):
		return &ValidationError{Field: "percentile", Reason: "must be within [0, 100]"}
	case p.Value.IsNegative():
		return &ValidationError{Field: "value", Reason: "must not be negative"}
	}
	return nil
}

// =============================================================================
// BENCHMARK SERVICE
// =============================================================================

// BenchmarkService ingests and queries benchmark curves through DataAccess.
type BenchmarkService struct {
	Data     DataAccess
	Recorder Recorder
	Logger   *zap.Logger
}

// NewBenchmarkService creates a service with no-op metrics and logging.
func NewBenchmarkService(data DataAccess) *BenchmarkService {
	return &BenchmarkService{Data: data, Recorder: NopRecorder{}, Logger: zap.NewNop()}
}

// Ingest validates every point, drops in-batch duplicates and appends the
// rest. An invalid point rejects the whole batch before anything is written.
func (s *BenchmarkService) Ingest(ctx context.Context, points []BenchmarkPoint) (IngestResult, error) {
	for i, p := range points {
		if err := ValidatePoint(p); err != nil {
			return IngestResult{}, prefixValidation("points["+strconv.Itoa(i)+"]", err)
		}
	}

	seen := make(map[NaturalKey]bool, len(points))
	unique := make([]BenchmarkPoint, 0, len(points))
	batchDuplicates := 0
	for _, p := range points {
		key := p.NaturalKey()
		if seen[key] {
			batchDuplicates++
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}

	result := IngestResult{}
	if len(unique) > 0 {
		stored, err := s.Data.IngestBenchmarkPoints(ctx, unique)
		if err != nil {
			return IngestResult{}, externalErr("benchmarks", err)
		}
		result = stored
	}
	result.Skipped += batchDuplicates

	s.recorder().BenchmarkPointsIngested(result.Accepted, result.Skipped)
	s.logger().Info("benchmark points ingested",
		zap.Int("received", len(points)),
		zap.Int("accepted", result.Accepted),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Curve returns the curve's points sorted ascending by percentile.
func (s *BenchmarkService) Curve(ctx context.Context, specialty, metric string, year int) ([]BenchmarkPoint, error) {
	points, err := s.Data.GetBenchmarkCurve(ctx, specialty, metric, year)
	if err != nil {
		return nil, externalErr("benchmarks", err)
	}
	return SortByPercentile(points), nil
}

// Rank fetches a curve and places value on it. Returns ErrNoMarketData
// when the curve is empty.
func (s *BenchmarkService) Rank(ctx context.Context, specialty, metric string, year int, value decimal.Decimal) (decimal.Decimal, error) {
	curve, err := s.Curve(ctx, specialty, metric, year)
	if err != nil {
		return decimal.Zero, err
	}
	percentile, ok := PercentileRank(curve, value)
	if !ok {
		return decimal.Zero, ErrNoMarketData
	}
	return percentile, nil
}

func (s *BenchmarkService) recorder() Recorder {
	if s.Recorder == nil {
		return NopRecorder{}
	}
	return s.Recorder
}

func (s *BenchmarkService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
