package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OverallSpecialty labels the rollup across every specialty.
const OverallSpecialty = "all"

// SpecialtyStats summarizes the reports of one specialty.
type SpecialtyStats struct {
	Specialty           string
	ProviderCount       int
	TotalCompensation   decimal.Decimal
	TotalWRVUs          decimal.Decimal
	AverageCompensation decimal.Decimal
	AverageWRVUs        decimal.Decimal

	// CompensationPerWRVU is zero when TotalWRVUs is zero.
	CompensationPerWRVU decimal.Decimal
}

// AnalyticsSummary groups reports by specialty, sorted by specialty name.
type AnalyticsSummary struct {
	Specialties []SpecialtyStats
	Overall     SpecialtyStats
}

// Analyze rolls a set of reports up by specialty. A provider appearing in
// several reports is counted once per report.
func Analyze(reports []ProviderReport) AnalyticsSummary {
	groups := make(map[string]*SpecialtyStats)
	overall := &SpecialtyStats{Specialty: OverallSpecialty}

	for _, r := range reports {
		stats, ok := groups[r.Provider.Specialty]
		if !ok {
			stats = &SpecialtyStats{Specialty: r.Provider.Specialty}
			groups[r.Provider.Specialty] = stats
		}
		stats.add(r)
		overall.add(r)
	}

	summary := AnalyticsSummary{Specialties: make([]SpecialtyStats, 0, len(groups))}
	for _, stats := range groups {
		summary.Specialties = append(summary.Specialties, stats.finish())
	}
	sort.Slice(summary.Specialties, func(i, j int) bool {
		return summary.Specialties[i].Specialty < summary.Specialties[j].Specialty
	})
	summary.Overall = overall.finish()
	return summary
}

func (s *SpecialtyStats) add(r ProviderReport) {
	s.ProviderCount++
	s.TotalCompensation = s.TotalCompensation.Add(r.Compensation.Total)
	s.TotalWRVUs = s.TotalWRVUs.Add(r.Productivity.TotalWRVUs)
}

func (s *SpecialtyStats) finish() SpecialtyStats {
	out := *s
	if out.ProviderCount > 0 {
		n := decimal.NewFromInt(int64(out.ProviderCount))
		out.AverageCompensation = out.TotalCompensation.Div(n)
		out.AverageWRVUs = out.TotalWRVUs.Div(n)
	}
	if out.TotalWRVUs.IsPositive() {
		out.CompensationPerWRVU = out.TotalCompensation.Div(out.TotalWRVUs)
	}
	return out
}
