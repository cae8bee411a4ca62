package compensation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TREND
// =============================================================================

// Trend classifies the direction of a productivity series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// TrendThresholdPct is the half-over-half change, in percent, beyond which
// a series is no longer stable.
var TrendThresholdPct = decimal.NewFromInt(5)

var hundred = decimal.NewFromInt(100)

// ClassifyTrend compares the average of the second half of values with the
// first half. The first half takes the smaller share on odd counts. Returns
// the trend and the change in percent (zero when the first half averages
// zero or there are fewer than two values).
func ClassifyTrend(values []decimal.Decimal) (Trend, decimal.Decimal) {
	if len(values) < 2 {
		return TrendStable, decimal.Zero
	}

	mid := len(values) / 2
	avgFirst := average(values[:mid])
	avgSecond := average(values[mid:])

	if avgFirst.IsZero() {
		return TrendStable, decimal.Zero
	}

	changePct := avgSecond.Sub(avgFirst).Div(avgFirst).Mul(hundred)
	switch {
	case changePct.GreaterThan(TrendThresholdPct):
		return TrendIncreasing, changePct
	case changePct.LessThan(TrendThresholdPct.Neg()):
		return TrendDecreasing, changePct
	default:
		return TrendStable, changePct
	}
}

func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, values...).Div(decimal.NewFromInt(int64(len(values))))
}

// =============================================================================
// SUMMARY
// =============================================================================

// ProductivityPoint is one entry of the period-ascending series.
type ProductivityPoint struct {
	Period      time.Time
	WRVUs       decimal.Decimal
	Encounters  int
	Collections decimal.Decimal
}

// ProductivitySummary is the reduction of a set of productivity records.
type ProductivitySummary struct {
	RecordCount      int
	TotalWRVUs       decimal.Decimal
	TotalEncounters  int
	TotalCollections decimal.Decimal

	// Per-record averages; zero for an empty set.
	AverageWRVUs      decimal.Decimal
	AverageEncounters decimal.Decimal

	Trend     Trend
	ChangePct decimal.Decimal

	// Series is sorted ascending by period.
	Series []ProductivityPoint
}

// Inputs turns the totals into term inputs. Quality metrics are not derived
// from productivity and come from the caller.
func (s ProductivitySummary) Inputs(quality map[string]decimal.Decimal) Inputs {
	metrics := make(map[string]decimal.Decimal, len(quality))
	for k, v := range quality {
		metrics[k] = v
	}
	return Inputs{
		WRVUs:          s.TotalWRVUs,
		Collections:    s.TotalCollections,
		QualityMetrics: metrics,
	}
}

// Aggregate sums records and classifies their wRVU trend.
// Totals do not depend on input order. An empty input is not an error:
// it yields zero totals and a stable trend.
func Aggregate(records []ProductivityRecord) ProductivitySummary {
	sorted := make([]ProductivityRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := Day(sorted[i].Period), Day(sorted[j].Period)
		if !pi.Equal(pj) {
			return pi.Before(pj)
		}
		return sorted[i].ID < sorted[j].ID
	})

	summary := ProductivitySummary{
		RecordCount:       len(sorted),
		TotalWRVUs:        decimal.Zero,
		TotalCollections:  decimal.Zero,
		AverageWRVUs:      decimal.Zero,
		AverageEncounters: decimal.Zero,
		Series:            make([]ProductivityPoint, 0, len(sorted)),
	}

	wrvus := make([]decimal.Decimal, 0, len(sorted))
	for _, r := range sorted {
		summary.TotalWRVUs = summary.TotalWRVUs.Add(r.WRVUs)
		summary.TotalEncounters += r.Encounters
		summary.TotalCollections = summary.TotalCollections.Add(r.Collections)
		wrvus = append(wrvus, r.WRVUs)
		summary.Series = append(summary.Series, ProductivityPoint{
			Period:      Day(r.Period),
			WRVUs:       r.WRVUs,
			Encounters:  r.Encounters,
			Collections: r.Collections,
		})
	}

	if n := len(sorted); n > 0 {
		count := decimal.NewFromInt(int64(n))
		summary.AverageWRVUs = summary.TotalWRVUs.Div(count)
		summary.AverageEncounters = decimal.NewFromInt(int64(summary.TotalEncounters)).Div(count)
	}

	summary.Trend, summary.ChangePct = ClassifyTrend(wrvus)
	return summary
}

func (s ProductivitySummary) clone() ProductivitySummary {
	series := make([]ProductivityPoint, len(s.Series))
	copy(series, s.Series)
	s.Series = series
	return s
}
