/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes of requests and responses. Engine types carry no
  JSON tags; the conversions here are the only place the wire format lives.

NUMBERS:
  Money, wRVUs and percentiles are decimal.Decimal. They encode as JSON
  strings ("263500.5") and decode from either strings or numbers, so no
  float rounding happens on the way in or out.

DATES:
  Calendar days are "YYYY-MM-DD"; timestamps are RFC 3339.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/compensation-engine/compensation"
)

const dateLayout = "2006-01-02"

// =============================================================================
// PROVIDER DTOs
// =============================================================================

// ProviderDTO represents a provider in API responses.
type ProviderDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Role      string `json:"role"`
}

// CreateProviderRequest is the request body for creating a provider.
type CreateProviderRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
	Role      string `json:"role"`
}

func toProviderDTO(p compensation.Provider) ProviderDTO {
	return ProviderDTO{
		ID:        string(p.ID),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Name:      p.Name(),
		Specialty: p.Specialty,
		Role:      string(p.Role),
	}
}

// =============================================================================
// PRODUCTIVITY DTOs
// =============================================================================

// ProductivityRecordDTO is one bucket of provider output.
type ProductivityRecordDTO struct {
	ID          string          `json:"id,omitempty"`
	Period      string          `json:"period"`
	WRVUs       decimal.Decimal `json:"wrvus"`
	Encounters  int             `json:"encounters"`
	Collections decimal.Decimal `json:"collections"`
}

// RecordProductivityRequest is the request body for adding productivity.
type RecordProductivityRequest struct {
	Records []ProductivityRecordDTO `json:"records"`
}

// ProductivityPointDTO is one entry of the summary series.
type ProductivityPointDTO struct {
	Period      string          `json:"period"`
	WRVUs       decimal.Decimal `json:"wrvus"`
	Encounters  int             `json:"encounters"`
	Collections decimal.Decimal `json:"collections"`
}

// ProductivitySummaryDTO is the productivity section of a report.
type ProductivitySummaryDTO struct {
	RecordCount       int                    `json:"record_count"`
	TotalWRVUs        decimal.Decimal        `json:"total_wrvus"`
	TotalEncounters   int                    `json:"total_encounters"`
	TotalCollections  decimal.Decimal        `json:"total_collections"`
	AverageWRVUs      decimal.Decimal        `json:"average_wrvus"`
	AverageEncounters decimal.Decimal        `json:"average_encounters"`
	Trend             string                 `json:"trend"`
	ChangePct         decimal.Decimal        `json:"change_pct"`
	Series            []ProductivityPointDTO `json:"series"`
}

func toProductivityDTO(s compensation.ProductivitySummary) ProductivitySummaryDTO {
	series := make([]ProductivityPointDTO, len(s.Series))
	for i, p := range s.Series {
		series[i] = ProductivityPointDTO{
			Period:      p.Period.Format(dateLayout),
			WRVUs:       p.WRVUs,
			Encounters:  p.Encounters,
			Collections: p.Collections,
		}
	}
	return ProductivitySummaryDTO{
		RecordCount:       s.RecordCount,
		TotalWRVUs:        s.TotalWRVUs,
		TotalEncounters:   s.TotalEncounters,
		TotalCollections:  s.TotalCollections,
		AverageWRVUs:      s.AverageWRVUs.Round(2),
		AverageEncounters: s.AverageEncounters.Round(2),
		Trend:             string(s.Trend),
		ChangePct:         s.ChangePct.Round(2),
		Series:            series,
	}
}

// =============================================================================
// COMPENSATION DTOs
// =============================================================================

// CalculateRequest computes compensation from caller-supplied inputs.
type CalculateRequest struct {
	ProviderID  string                     `json:"provider_id"`
	StartDate   string                     `json:"start_date"`
	EndDate     string                     `json:"end_date"`
	WRVUs       decimal.Decimal            `json:"wrvus"`
	Collections decimal.Decimal            `json:"collections"`
	Quality     map[string]decimal.Decimal `json:"quality,omitempty"`
}

// TermLineDTO is the contribution of one contract term.
type TermLineDTO struct {
	Index  int             `json:"index"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// CompensationDTO is a compensation result.
type CompensationDTO struct {
	ContractID string                     `json:"contract_id"`
	Total      decimal.Decimal            `json:"total"`
	Breakdown  map[string]decimal.Decimal `json:"breakdown"`
	Lines      []TermLineDTO              `json:"lines"`
}

func toCompensationDTO(r compensation.CompensationResult) CompensationDTO {
	breakdown := make(map[string]decimal.Decimal, len(r.Breakdown))
	for kind, amount := range r.Breakdown {
		breakdown[string(kind)] = amount
	}
	lines := make([]TermLineDTO, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = TermLineDTO{Index: l.Index, Type: string(l.Kind), Amount: l.Amount}
	}
	return CompensationDTO{
		ContractID: string(r.ContractID),
		Total:      r.Total,
		Breakdown:  breakdown,
		Lines:      lines,
	}
}

// =============================================================================
// REPORT DTOs
// =============================================================================

// ReportRequest is the request body for one provider report.
type ReportRequest struct {
	ProviderID string                     `json:"provider_id"`
	StartDate  string                     `json:"start_date"`
	EndDate    string                     `json:"end_date"`
	Quality    map[string]decimal.Decimal `json:"quality,omitempty"`
}

// BatchReportRequest asks for the same period across several providers.
// An empty ProviderIDs means every provider.
type BatchReportRequest struct {
	ProviderIDs []string `json:"provider_ids"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
}

// PeriodDTO is an inclusive date range.
type PeriodDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MarketStandingDTO places one value on a benchmark curve.
type MarketStandingDTO struct {
	Metric      string           `json:"metric"`
	Value       decimal.Decimal  `json:"value"`
	Status      string           `json:"status"`
	Percentile  *decimal.Decimal `json:"percentile"`
	Median      *decimal.Decimal `json:"median,omitempty"`
	VsMedianPct *decimal.Decimal `json:"vs_median_pct,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// MarketDTO is the market section of a report.
type MarketDTO struct {
	Specialty    string            `json:"specialty"`
	Year         int               `json:"year"`
	Compensation MarketStandingDTO `json:"compensation"`
	Productivity MarketStandingDTO `json:"productivity"`
}

// ReportDTO is a full provider report.
type ReportDTO struct {
	ID           string                     `json:"id"`
	Provider     ProviderDTO                `json:"provider"`
	Period       PeriodDTO                  `json:"period"`
	Quality      map[string]decimal.Decimal `json:"quality,omitempty"`
	Productivity ProductivitySummaryDTO     `json:"productivity"`
	Compensation CompensationDTO            `json:"compensation"`
	Market       MarketDTO                  `json:"market"`
	GeneratedAt  string                     `json:"generated_at"`
}

// BatchReportDTO is one entry of a batch response.
type BatchReportDTO struct {
	ProviderID string     `json:"provider_id"`
	Report     *ReportDTO `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func toStandingDTO(s compensation.MarketStanding) MarketStandingDTO {
	dto := MarketStandingDTO{
		Metric: s.Metric,
		Value:  s.Value,
		Status: string(s.Status),
		Median: s.Median,
		Reason: s.Reason,
	}
	if s.Percentile != nil {
		p := s.Percentile.Round(1)
		dto.Percentile = &p
	}
	if s.VsMedianPct != nil {
		v := s.VsMedianPct.Round(1)
		dto.VsMedianPct = &v
	}
	return dto
}

// ToReportDTO converts an engine report to its JSON shape.
func ToReportDTO(r compensation.ProviderReport) ReportDTO {
	return ReportDTO{
		ID:       r.ID,
		Provider: toProviderDTO(r.Provider),
		Period: PeriodDTO{
			StartDate: r.Period.Start.Format(dateLayout),
			EndDate:   r.Period.End.Format(dateLayout),
		},
		Quality:      r.Quality,
		Productivity: toProductivityDTO(r.Productivity),
		Compensation: toCompensationDTO(r.Compensation),
		Market: MarketDTO{
			Specialty:    r.Market.Specialty,
			Year:         r.Market.Year,
			Compensation: toStandingDTO(r.Market.Compensation),
			Productivity: toStandingDTO(r.Market.Productivity),
		},
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// BENCHMARK DTOs
// =============================================================================

// BenchmarkPointDTO is one point of a market curve.
type BenchmarkPointDTO struct {
	Specialty  string          `json:"specialty"`
	Metric     string          `json:"metric"`
	Year       int             `json:"year"`
	Percentile decimal.Decimal `json:"percentile"`
	Value      decimal.Decimal `json:"value"`
	Region     string          `json:"region,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// IngestBenchmarksRequest is the request body for benchmark ingestion.
type IngestBenchmarksRequest struct {
	Points []BenchmarkPointDTO `json:"points"`
}

// IngestResponse counts an ingestion.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
}

// RankResponse is the percentile of one value.
type RankResponse struct {
	Specialty  string          `json:"specialty"`
	Metric     string          `json:"metric"`
	Year       int             `json:"year"`
	Value      decimal.Decimal `json:"value"`
	Percentile decimal.Decimal `json:"percentile"`
}

func (d BenchmarkPointDTO) toPoint() compensation.BenchmarkPoint {
	return compensation.BenchmarkPoint{
		Specialty:  d.Specialty,
		Metric:     d.Metric,
		Year:       d.Year,
		Percentile: d.Percentile,
		Value:      d.Value,
		Region:     d.Region,
		Source:     d.Source,
	}
}

func toBenchmarkPointDTO(p compensation.BenchmarkPoint) BenchmarkPointDTO {
	return BenchmarkPointDTO{
		Specialty:  p.Specialty,
		Metric:     p.Metric,
		Year:       p.Year,
		Percentile: p.Percentile,
		Value:      p.Value,
		Region:     p.Region,
		Source:     p.Source,
	}
}

// =============================================================================
// ANALYTICS DTOs
// =============================================================================

// SpecialtyStatsDTO summarizes one specialty.
type SpecialtyStatsDTO struct {
	Specialty           string          `json:"specialty"`
	ProviderCount       int             `json:"provider_count"`
	TotalCompensation   decimal.Decimal `json:"total_compensation"`
	TotalWRVUs          decimal.Decimal `json:"total_wrvus"`
	AverageCompensation decimal.Decimal `json:"average_compensation"`
	AverageWRVUs        decimal.Decimal `json:"average_wrvus"`
	CompensationPerWRVU decimal.Decimal `json:"compensation_per_wrvu"`
}

// AnalyticsDTO is the specialty rollup response. Providers whose report
// could not be generated (no active contract, ...) are listed in Excluded.
type AnalyticsDTO struct {
	Period      PeriodDTO           `json:"period"`
	Specialties []SpecialtyStatsDTO `json:"specialties"`
	Overall     SpecialtyStatsDTO   `json:"overall"`
	Excluded    []BatchReportDTO    `json:"excluded,omitempty"`
}

func toSpecialtyStatsDTO(s compensation.SpecialtyStats) SpecialtyStatsDTO {
	return SpecialtyStatsDTO{
		Specialty:           s.Specialty,
		ProviderCount:       s.ProviderCount,
		TotalCompensation:   s.TotalCompensation,
		TotalWRVUs:          s.TotalWRVUs,
		AverageCompensation: s.AverageCompensation.Round(2),
		AverageWRVUs:        s.AverageWRVUs.Round(2),
		CompensationPerWRVU: s.CompensationPerWRVU.Round(2),
	}
}

// =============================================================================
// SCENARIO & MISC DTOs
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
