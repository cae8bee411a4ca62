/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with realistic data
	for demos: providers, contracts built from factory presets, twelve
	months of productivity and market benchmark curves.

AVAILABLE SCENARIOS:
	cardiology-group:  Three cardiologists on the three standard contract shapes
	multi-specialty:   Cardiology, family medicine, orthopedics, one NP
	contract-renewal:  A 2023 contract replaced by a richer 2024 contract
	no-market-data:    A specialty with no benchmark curves (degraded market)

HOW SCENARIOS WORK:
 1. Reset the store
 2. Save providers
 3. Save contracts from preset term JSON
 4. Save monthly productivity
 5. Ingest benchmark curves (append-only)

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "cardiology-group"}

USAGE VIA CLI:
	compengine seed --scenario cardiology-group

NOTE:
	Scenarios reset the store. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioYear is the calendar year the demo data covers.
const ScenarioYear = 2024

var scenarios = []ScenarioDTO{
	{
		ID:          "cardiology-group",
		Name:        "Cardiology Group",
		Description: "Three cardiologists: salary only, salary + wRVU, full incentive",
		Category:    "compensation",
	},
	{
		ID:          "multi-specialty",
		Name:        "Multi-Specialty Practice",
		Description: "Cardiology, family medicine and orthopedics, including a nurse practitioner",
		Category:    "analytics",
	},
	{
		ID:          "contract-renewal",
		Name:        "Contract Renewal",
		Description: "2023 salary contract replaced by a 2024 productivity contract",
		Category:    "compensation",
	},
	{
		ID:          "no-market-data",
		Name:        "No Market Data",
		Description: "Specialty without benchmark curves; market section reports no_data",
		Category:    "market",
	},
}

var scenarioLoaders = map[string]func(ctx context.Context, store compensation.Store) error{
	"cardiology-group": loadCardiologyGroup,
	"multi-specialty":  loadMultiSpecialty,
	"contract-renewal": loadContractRenewal,
	"no-market-data":   loadNoMarketData,
}

// Scenarios lists the available demo scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	copy(out, scenarios)
	return out
}

// SeedScenario resets the store and loads a scenario into it.
func SeedScenario(ctx context.Context, store compensation.Store, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return &compensation.ValidationError{Field: "scenario_id", Reason: "unknown scenario " + id}
	}
	if err := store.Reset(ctx); err != nil {
		return eris.Wrap(err, "reset store")
	}
	return load(ctx, store)
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.getCurrentScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.setCurrentScenario("")
	if err := SeedScenario(r.Context(), h.Store, req.ScenarioID); err != nil {
		if compensation.IsClientError(err) {
			writeDomainError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.setCurrentScenario(req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadCardiologyGroup(ctx context.Context, store compensation.Store) error {
	providers := []compensation.Provider{
		{ID: "card-001", FirstName: "Elena", LastName: "Marsh", Specialty: "Cardiology", Role: compensation.RolePhysician},
		{ID: "card-002", FirstName: "Samuel", LastName: "Okafor", Specialty: "Cardiology", Role: compensation.RolePhysician},
		{ID: "card-003", FirstName: "Priya", LastName: "Raman", Specialty: "Cardiology", Role: compensation.RolePhysician},
	}
	contracts := []seedContract{
		{id: "card-001-2024", provider: "card-001", name: "Salaried", terms: factory.BaseOnlyJSON(480000)},
		{id: "card-002-2024", provider: "card-002", name: "Productivity", terms: factory.BaseWithProductivityJSON(400000, 7000, 52)},
		{id: "card-003-2024", provider: "card-003", name: "Full incentive", terms: factory.FullIncentiveJSON(380000, 6500, 55,
			[]factory.QualityTarget{{Metric: "hcahps", Threshold: 85, BonusAmount: 15000}, {Metric: "readmission_score", Threshold: 90, BonusAmount: 10000}}, 0.05)},
	}
	productivity := append(append(
		monthlyProductivity("card-001", 560, 5, 140),
		monthlyProductivity("card-002", 640, 8, 155)...),
		monthlyProductivity("card-003", 700, 12, 170)...)

	return seed(ctx, store, providers, contracts, productivity, cardiologyCurves())
}

func loadMultiSpecialty(ctx context.Context, store compensation.Store) error {
	providers := []compensation.Provider{
		{ID: "card-101", FirstName: "Elena", LastName: "Marsh", Specialty: "Cardiology", Role: compensation.RolePhysician},
		{ID: "fm-101", FirstName: "Daniel", LastName: "Cho", Specialty: "Family Medicine", Role: compensation.RolePhysician},
		{ID: "fm-102", FirstName: "Rosa", LastName: "Delgado", Specialty: "Family Medicine", Role: compensation.RoleNursePractitioner},
		{ID: "ortho-101", FirstName: "Marcus", LastName: "Lindqvist", Specialty: "Orthopedic Surgery", Role: compensation.RolePhysician},
	}
	contracts := []seedContract{
		{id: "card-101-2024", provider: "card-101", name: "Productivity", terms: factory.BaseWithProductivityJSON(420000, 7000, 52)},
		{id: "fm-101-2024", provider: "fm-101", name: "Productivity", terms: factory.BaseWithProductivityJSON(240000, 4800, 45)},
		{id: "fm-102-2024", provider: "fm-102", name: "Salaried", terms: factory.BaseOnlyJSON(125000)},
		{id: "ortho-101-2024", provider: "ortho-101", name: "Full incentive", terms: factory.FullIncentiveJSON(500000, 8500, 60,
			[]factory.QualityTarget{{Metric: "hcahps", Threshold: 80, BonusAmount: 20000}}, 0.04)},
	}
	productivity := append(append(append(
		monthlyProductivity("card-101", 620, 6, 150),
		monthlyProductivity("fm-101", 410, -3, 310)...),
		monthlyProductivity("fm-102", 260, 2, 280)...),
		monthlyProductivity("ortho-101", 780, 10, 120)...)

	curves := cardiologyCurves()
	curves = append(curves, curve("Family Medicine", compensation.MetricCompensation, 230000, 260000, 295000, 340000, 390000)...)
	curves = append(curves, curve("Family Medicine", compensation.MetricWRVUs, 3900, 4500, 5100, 5900, 6800)...)
	curves = append(curves, curve("Orthopedic Surgery", compensation.MetricCompensation, 450000, 540000, 650000, 780000, 920000)...)
	curves = append(curves, curve("Orthopedic Surgery", compensation.MetricWRVUs, 6500, 7600, 8900, 10400, 12100)...)

	return seed(ctx, store, providers, contracts, productivity, curves)
}

func loadContractRenewal(ctx context.Context, store compensation.Store) error {
	providers := []compensation.Provider{
		{ID: "fm-201", FirstName: "Hannah", LastName: "Whitfield", Specialty: "Family Medicine", Role: compensation.RolePhysician},
	}
	end2023 := compensation.EndOfYear(ScenarioYear - 1)
	contracts := []seedContract{
		{id: "fm-201-2023", provider: "fm-201", name: "Salaried", start: compensation.StartOfYear(ScenarioYear - 1), end: &end2023,
			terms: factory.BaseOnlyJSON(230000)},
		{id: "fm-201-2024", provider: "fm-201", name: "Renewal with incentive", terms: factory.FullIncentiveJSON(235000, 4600, 46,
			[]factory.QualityTarget{{Metric: "hcahps", Threshold: 85, BonusAmount: 6000}}, 0.08)},
	}
	productivity := append(
		monthlyProductivityForYear("fm-201", ScenarioYear-1, 360, 1, 300),
		monthlyProductivity("fm-201", 400, 9, 320)...)

	curves := curve("Family Medicine", compensation.MetricCompensation, 230000, 260000, 295000, 340000, 390000)
	curves = append(curves, curve("Family Medicine", compensation.MetricWRVUs, 3900, 4500, 5100, 5900, 6800)...)

	return seed(ctx, store, providers, contracts, productivity, curves)
}

func loadNoMarketData(ctx context.Context, store compensation.Store) error {
	providers := []compensation.Provider{
		{ID: "derm-001", FirstName: "Oliver", LastName: "Brandt", Specialty: "Dermatology", Role: compensation.RolePhysician},
	}
	contracts := []seedContract{
		{id: "derm-001-2024", provider: "derm-001", name: "Productivity", terms: factory.BaseWithProductivityJSON(350000, 6000, 48)},
	}
	return seed(ctx, store, providers, contracts, monthlyProductivity("derm-001", 540, 0, 260), nil)
}

// =============================================================================
// BUILDERS
// =============================================================================

type seedContract struct {
	id, provider, name string
	start              time.Time // zero means January 1 of ScenarioYear
	end                *time.Time
	terms              string
}

func seed(ctx context.Context, store compensation.Store, providers []compensation.Provider, contracts []seedContract,
	productivity []compensation.ProductivityRecord, curves []compensation.BenchmarkPoint) error {
	for _, p := range providers {
		if err := store.SaveProvider(ctx, p); err != nil {
			return eris.Wrapf(err, "save provider %s", p.ID)
		}
	}

	for _, sc := range contracts {
		terms, err := factory.ParseTerms([]byte(sc.terms))
		if err != nil {
			return eris.Wrapf(err, "contract %s terms", sc.id)
		}
		start := sc.start
		if start.IsZero() {
			start = compensation.StartOfYear(ScenarioYear)
		}
		c := compensation.Contract{
			ID:         compensation.ContractID(sc.id),
			ProviderID: compensation.ProviderID(sc.provider),
			Name:       sc.name,
			StartDate:  start,
			EndDate:    sc.end,
			Terms:      terms,
		}
		if err := store.SaveContract(ctx, c); err != nil {
			return eris.Wrapf(err, "save contract %s", sc.id)
		}
	}

	if err := store.SaveProductivity(ctx, productivity); err != nil {
		return eris.Wrap(err, "save productivity")
	}

	if len(curves) > 0 {
		if _, err := store.IngestBenchmarkPoints(ctx, curves); err != nil {
			return eris.Wrap(err, "ingest benchmarks")
		}
	}
	return nil
}

func monthlyProductivity(providerID string, startWRVUs, monthlyStep, encounters int) []compensation.ProductivityRecord {
	return monthlyProductivityForYear(providerID, ScenarioYear, startWRVUs, monthlyStep, encounters)
}

// monthlyProductivityForYear builds twelve monthly records whose wRVUs move
// by monthlyStep each month. Collections are 52.50 per wRVU.
func monthlyProductivityForYear(providerID string, year, startWRVUs, monthlyStep, encounters int) []compensation.ProductivityRecord {
	perWRVU := decimal.RequireFromString("52.50")
	records := make([]compensation.ProductivityRecord, 0, 12)
	for m := 0; m < 12; m++ {
		wrvus := decimal.NewFromInt(int64(startWRVUs + m*monthlyStep))
		records = append(records, compensation.ProductivityRecord{
			ID:          fmt.Sprintf("%s-%d-%02d", providerID, year, m+1),
			ProviderID:  compensation.ProviderID(providerID),
			Period:      compensation.StartOfMonth(year, time.Month(m+1)),
			WRVUs:       wrvus,
			Encounters:  encounters + m%3,
			Collections: wrvus.Mul(perWRVU),
		})
	}
	return records
}

func cardiologyCurves() []compensation.BenchmarkPoint {
	points := curve("Cardiology", compensation.MetricCompensation, 420000, 500000, 580000, 680000, 800000)
	return append(points, curve("Cardiology", compensation.MetricWRVUs, 5800, 6900, 8000, 9400, 11000)...)
}

// curve builds the p10/p25/p50/p75/p90 points of a ScenarioYear curve.
func curve(specialty, metric string, p10, p25, p50, p75, p90 int64) []compensation.BenchmarkPoint {
	values := []int64{p10, p25, p50, p75, p90}
	percentiles := []int64{10, 25, 50, 75, 90}
	points := make([]compensation.BenchmarkPoint, len(values))
	for i := range values {
		points[i] = compensation.BenchmarkPoint{
			Specialty:  specialty,
			Metric:     metric,
			Year:       ScenarioYear,
			Percentile: decimal.NewFromInt(percentiles[i]),
			Value:      decimal.NewFromInt(values[i]),
			Region:     "National",
			Source:     "Demo survey",
		}
	}
	return points
}
