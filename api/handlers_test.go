/*
handlers_test.go - HTTP tests for the API handlers

Runs the full chi router over the in-memory store with httptest.
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/compensation/store"
	"github.com/warp/compensation-engine/factory"
	"github.com/warp/compensation-engine/metrics"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	registry := prometheus.NewRegistry()
	h := NewHandler(mem, Options{Recorder: metrics.New(registry)})
	h.Now = func() time.Time { return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC) }
	return &testServer{handler: h, router: NewRouter(h, registry), store: mem}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seedCardiologist stores a cardiologist on 250000 base + wRVU 4800@45 with
// 12 months of 420 wRVUs (5040 total) and two 2024 curves.
func (s *testServer) seedCardiologist(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.store.SaveProvider(ctx, compensation.Provider{
		ID: "p-1", FirstName: "Ada", LastName: "Lovelace", Specialty: "Cardiology", Role: compensation.RolePhysician,
	}))
	terms, err := factory.ParseTerms([]byte(factory.BaseWithProductivityJSON(250000, 4800, 45)))
	require.NoError(t, err)
	require.NoError(t, s.store.SaveContract(ctx, compensation.Contract{
		ID: "c-1", ProviderID: "p-1", StartDate: compensation.StartOfYear(2024), Terms: terms,
	}))

	var records []compensation.ProductivityRecord
	for m := time.January; m <= time.December; m++ {
		records = append(records, compensation.ProductivityRecord{
			ProviderID: "p-1", Period: compensation.StartOfMonth(2024, m),
			WRVUs: decimal.NewFromInt(420), Encounters: 100, Collections: decimal.NewFromInt(22000),
		})
	}
	require.NoError(t, s.store.SaveProductivity(ctx, records))

	var points []compensation.BenchmarkPoint
	for i, v := range []int64{250000, 300000, 350000} {
		points = append(points, compensation.BenchmarkPoint{Specialty: "Cardiology", Metric: compensation.MetricCompensation, Year: 2024,
			Percentile: decimal.NewFromInt(int64(25 * (i + 1))), Value: decimal.NewFromInt(v)})
	}
	for i, v := range []int64{4000, 5000, 6000} {
		points = append(points, compensation.BenchmarkPoint{Specialty: "Cardiology", Metric: compensation.MetricWRVUs, Year: 2024,
			Percentile: decimal.NewFromInt(int64(25 * (i + 1))), Value: decimal.NewFromInt(v)})
	}
	_, err = s.store.IngestBenchmarkPoints(ctx, points)
	require.NoError(t, err)
}

// =============================================================================
// PROVIDERS & CONTRACTS
// =============================================================================

func TestCreateAndGetProvider(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/providers", CreateProviderRequest{
		ID: "p-9", FirstName: "Grace", LastName: "Hopper", Specialty: "Oncology",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ProviderDTO](t, rec)
	assert.Equal(t, "physician", created.Role, "role defaults to physician")

	rec = s.do(t, http.MethodGet, "/api/providers/p-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Grace Hopper", decode[ProviderDTO](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/providers/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProvider_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/providers", CreateProviderRequest{ID: "p-9", LastName: "Hopper", Specialty: "Oncology", Role: "surgeon"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation", resp.Code)
}

func TestCreateContract(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	body := `{"id":"c-2","name":"Renewal","start_date":"2025-01-01","terms":` + factory.BaseOnlyJSON(300000) + `}`
	rec := s.do(t, http.MethodPost, "/api/providers/p-1/contracts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/providers/p-1/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contracts := decode[[]factory.ContractJSON](t, rec)
	require.Len(t, contracts, 2)
	assert.Equal(t, "c-2", contracts[1].ID)
	assert.Equal(t, "p-1", contracts[1].ProviderID)
}

func TestCreateContract_InvalidTerms(t *testing.T) {
	// GIVEN: a wRVU term without a rate
	s := newTestServer(t)
	s.seedCardiologist(t)
	body := `{"id":"c-2","start_date":"2025-01-01","terms":[{"type":"wrvu","threshold":4800}]}`

	// WHEN: posting it
	rec := s.do(t, http.MethodPost, "/api/providers/p-1/contracts", body)

	// THEN: 400 naming the field
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "terms[0].rate", details["field"])
}

func TestRecordProductivity(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	rec := s.do(t, http.MethodPost, "/api/providers/p-1/productivity", `{"records":[
		{"period":"2025-01-01","wrvus":"410.5","encounters":95,"collections":21000},
		{"period":"2025-02-01","wrvus":-1,"encounters":95,"collections":21000}
	]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/providers/p-1/productivity", `{"records":[
		{"period":"2025-01-01","wrvus":"410.5","encounters":95,"collections":21000}
	]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got, err := s.store.GetProductivity(context.Background(), "p-1", compensation.StartOfYear(2025), compensation.EndOfYear(2025))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "410.5", got[0].WRVUs.String())
}

// =============================================================================
// REPORTS
// =============================================================================

func TestGenerateReport(t *testing.T) {
	// GIVEN: a seeded cardiologist with curves
	s := newTestServer(t)
	s.seedCardiologist(t)

	// WHEN: requesting the 2024 report
	rec := s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{
		ProviderID: "p-1", StartDate: "2024-01-01", EndDate: "2024-12-31",
	})

	// THEN: totals, breakdown and market standing
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ReportDTO](t, rec)

	// 250000 + (5040 - 4800) * 45
	assert.Equal(t, "260800", report.Compensation.Total.String())
	assert.Equal(t, "10800", report.Compensation.Breakdown["wrvu"].String())
	assert.Equal(t, "5040", report.Productivity.TotalWRVUs.String())
	assert.Equal(t, 12, report.Productivity.RecordCount)
	assert.Len(t, report.Productivity.Series, 12)
	assert.Equal(t, "stable", report.Productivity.Trend)

	comp := report.Market.Compensation
	assert.Equal(t, "available", comp.Status)
	require.NotNil(t, comp.Percentile)
	assert.Equal(t, "33.3", comp.Percentile.String())
	require.NotNil(t, comp.VsMedianPct)
	assert.Equal(t, "-13.1", comp.VsMedianPct.String())

	prod := report.Market.Productivity
	require.NotNil(t, prod.Percentile)
	assert.Equal(t, "66.7", prod.Percentile.String())
	assert.Equal(t, 2024, report.Market.Year)
	assert.NotEmpty(t, report.ID)
}

func TestGenerateReport_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	tests := []struct {
		name   string
		body   ReportRequest
		status int
		code   string
	}{
		{"unknown provider", ReportRequest{ProviderID: "ghost", StartDate: "2024-01-01", EndDate: "2024-12-31"}, http.StatusNotFound, "not_found"},
		{"no active contract", ReportRequest{ProviderID: "p-1", StartDate: "2023-01-01", EndDate: "2023-12-31"}, http.StatusNotFound, "not_found"},
		{"end before start", ReportRequest{ProviderID: "p-1", StartDate: "2024-12-31", EndDate: "2024-01-01"}, http.StatusBadRequest, "validation"},
		{"unknown provider and end before start", ReportRequest{ProviderID: "ghost", StartDate: "2024-12-31", EndDate: "2024-01-01"}, http.StatusNotFound, "not_found"},
		{"bad date", ReportRequest{ProviderID: "p-1", StartDate: "01/01/2024", EndDate: "2024-12-31"}, http.StatusBadRequest, "validation"},
		{"missing provider", ReportRequest{StartDate: "2024-01-01", EndDate: "2024-12-31"}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/reports/provider", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestGenerateReport_NoMarketData(t *testing.T) {
	// GIVEN: a provider in a specialty without curves
	s := newTestServer(t)
	s.seedCardiologist(t)
	ctx := context.Background()
	require.NoError(t, s.store.SaveProvider(ctx, compensation.Provider{ID: "p-2", LastName: "Brandt", Specialty: "Dermatology", Role: compensation.RolePhysician}))
	terms, err := factory.ParseTerms([]byte(factory.BaseOnlyJSON(300000)))
	require.NoError(t, err)
	require.NoError(t, s.store.SaveContract(ctx, compensation.Contract{ID: "c-9", ProviderID: "p-2", StartDate: compensation.StartOfYear(2024), Terms: terms}))

	// WHEN: generating the report
	rec := s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{ProviderID: "p-2", StartDate: "2024-01-01", EndDate: "2024-12-31"})

	// THEN: the report succeeds with no_data and a null percentile
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ReportDTO](t, rec)
	assert.Equal(t, "no_data", report.Market.Compensation.Status)
	assert.Nil(t, report.Market.Compensation.Percentile)
	assert.Equal(t, "300000", report.Compensation.Total.String())
	assert.Contains(t, rec.Body.String(), `"percentile":null`)
}

func TestGenerateReport_ExternalFailure(t *testing.T) {
	s := newTestServer(t)
	s.handler.Reports.Data = brokenData{Memory: s.store}
	s.seedCardiologist(t)

	rec := s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{ProviderID: "p-1", StartDate: "2024-01-01", EndDate: "2024-12-31"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "external_data", decode[ErrorResponse](t, rec).Code)
}

func TestGenerateBatch(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	rec := s.do(t, http.MethodPost, "/api/reports/batch", BatchReportRequest{
		ProviderIDs: []string{"p-1", "ghost"}, StartDate: "2024-01-01", EndDate: "2024-12-31",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	results := decode[[]BatchReportDTO](t, rec)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Report)
	assert.Equal(t, "260800", results[0].Report.Compensation.Total.String())
	assert.Nil(t, results[1].Report)
	assert.Contains(t, results[1].Error, "not found")
}

func TestCalculateCompensation(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	rec := s.do(t, http.MethodPost, "/api/compensation/calculate", `{
		"provider_id":"p-1","start_date":"2024-01-01","end_date":"2024-12-31",
		"wrvus":"5000","collections":0
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[CompensationDTO](t, rec)
	assert.Equal(t, "259000", result.Total.String())
	assert.Equal(t, "c-1", result.ContractID)
	require.Len(t, result.Lines, 2)
	assert.Equal(t, "base", result.Lines[0].Type)
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func TestIngestAndQueryBenchmarks(t *testing.T) {
	s := newTestServer(t)
	points := IngestBenchmarksRequest{Points: []BenchmarkPointDTO{
		{Specialty: "Oncology", Metric: "compensation", Year: 2024, Percentile: decimal.NewFromInt(75), Value: decimal.NewFromInt(700000)},
		{Specialty: "Oncology", Metric: "compensation", Year: 2024, Percentile: decimal.NewFromInt(25), Value: decimal.NewFromInt(400000)},
		{Specialty: "Oncology", Metric: "compensation", Year: 2024, Percentile: decimal.NewFromInt(50), Value: decimal.NewFromInt(550000)},
	}}

	rec := s.do(t, http.MethodPost, "/api/benchmarks", points)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, IngestResponse{Accepted: 3}, decode[IngestResponse](t, rec))

	rec = s.do(t, http.MethodPost, "/api/benchmarks", points)
	assert.Equal(t, IngestResponse{Skipped: 3}, decode[IngestResponse](t, rec), "re-ingestion is idempotent")

	rec = s.do(t, http.MethodGet, "/api/benchmarks/Oncology/compensation/2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	curve := decode[[]BenchmarkPointDTO](t, rec)
	require.Len(t, curve, 3)
	assert.Equal(t, "25", curve[0].Percentile.String(), "ascending by percentile")

	rec = s.do(t, http.MethodGet, "/api/benchmarks/Oncology/compensation/2024/rank?value=500000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "33.3", decode[RankResponse](t, rec).Percentile.String())
}

func TestIngestBenchmarks_InvalidPointRejectsBatch(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/benchmarks", IngestBenchmarksRequest{Points: []BenchmarkPointDTO{
		{Specialty: "Oncology", Metric: "compensation", Year: 2024, Percentile: decimal.NewFromInt(50), Value: decimal.NewFromInt(1)},
		{Specialty: "Oncology", Metric: "compensation", Year: 2024, Percentile: decimal.NewFromInt(120), Value: decimal.NewFromInt(1)},
	}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	curve, err := s.store.GetBenchmarkCurve(context.Background(), "Oncology", "compensation", 2024)
	require.NoError(t, err)
	assert.Empty(t, curve)
}

func TestRankValue_Errors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/benchmarks/Oncology/compensation/2024/rank?value=1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_market_data", decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/api/benchmarks/Oncology/compensation/2024/rank?value=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/benchmarks/Oncology/compensation/latest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ANALYTICS, SCENARIOS, HEALTH
// =============================================================================

func TestAnalytics_ScenarioData(t *testing.T) {
	// GIVEN: the multi-specialty scenario
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "multi-specialty"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: rolling up 2024
	rec = s.do(t, http.MethodGet, "/api/analytics?start_date=2024-01-01&end_date=2024-12-31", nil)

	// THEN: three specialties, four providers
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[AnalyticsDTO](t, rec)
	require.Len(t, summary.Specialties, 3)
	assert.Equal(t, "Cardiology", summary.Specialties[0].Specialty)
	assert.Equal(t, 2, summary.Specialties[1].ProviderCount)
	assert.Equal(t, 4, summary.Overall.ProviderCount)
	assert.Empty(t, summary.Excluded)
}

func TestScenarios(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	for _, sc := range Scenarios() {
		t.Run(sc.ID, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
			assert.Equal(t, sc.ID, decode[ScenarioDTO](t, rec).ID)

			// Every seeded provider gets a report for the scenario year.
			rec = s.do(t, http.MethodPost, "/api/reports/batch", BatchReportRequest{StartDate: "2024-01-01", EndDate: "2024-12-31"})
			for _, res := range decode[[]BatchReportDTO](t, rec) {
				assert.Empty(t, res.Error, res.ProviderID)
			}
		})
	}

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_ContractRenewal(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, SeedScenario(context.Background(), s.store, "contract-renewal"))

	rec := s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{ProviderID: "fm-201", StartDate: "2023-01-01", EndDate: "2023-12-31"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fm-201-2023", decode[ReportDTO](t, rec).Compensation.ContractID)

	rec = s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{ProviderID: "fm-201", StartDate: "2024-01-01", EndDate: "2024-12-31"})
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ReportDTO](t, rec)
	assert.Equal(t, "fm-201-2024", report.Compensation.ContractID)
	assert.Equal(t, "increasing", report.Productivity.Trend)
}

func TestResetDatabase(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/providers", nil)
	assert.Empty(t, decode[[]ProviderDTO](t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.seedCardiologist(t)
	s.do(t, http.MethodPost, "/api/reports/provider", ReportRequest{ProviderID: "p-1", StartDate: "2024-01-01", EndDate: "2024-12-31"})

	rec := s.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Time: "2025-01-15T09:00:00Z"}, decode[HealthResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `compengine_reports_total{outcome="success"} 1`)
}

// =============================================================================
// FAKES
// =============================================================================

// brokenData fails every productivity read.
type brokenData struct {
	*store.Memory
}

func (brokenData) GetProductivity(context.Context, compensation.ProviderID, time.Time, time.Time) ([]compensation.ProductivityRecord, error) {
	return nil, errors.New("warehouse offline")
}
