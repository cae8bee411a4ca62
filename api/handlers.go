/*
handlers.go - HTTP API handlers for the compensation engine

PURPOSE:
  Exposes the compensation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Providers:
    GET    /api/providers                      List providers
    POST   /api/providers                      Create or update a provider
    GET    /api/providers/{id}                 Provider details
    GET    /api/providers/{id}/contracts       Contracts of a provider
    POST   /api/providers/{id}/contracts       Add a contract (terms as JSON)
    POST   /api/providers/{id}/productivity    Add productivity records

  Reports:
    POST   /api/reports/provider               One provider report
    POST   /api/reports/batch                  Reports for many providers
    POST   /api/compensation/calculate         Compensation from given inputs

  Benchmarks:
    POST   /api/benchmarks                                   Append points
    GET    /api/benchmarks/{specialty}/{metric}/{year}       Curve
    GET    /api/benchmarks/{specialty}/{metric}/{year}/rank  Percentile of ?value=

  Analytics:
    GET    /api/analytics?start_date=&end_date=  Specialty rollup

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (ValidationError on anything malformed)
  3. Call the engine
  4. Serialize response via DTOs

ERROR HANDLING:
  Engine errors map to HTTP status by category:
  - 400: ValidationError, invalid period
  - 404: Provider or active contract not found, no market data
  - 502: ExternalDataError (a data source failed)
  - 500: Anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options tunes the engine behind the handler. Zero values keep the
// engine defaults.
type Options struct {
	Logger                     *zap.Logger
	Recorder                   compensation.Recorder
	ExpectedCollectionsPerWRVU decimal.Decimal
	CompensationMetric         string
	ProductivityMetric         string
	BatchConcurrency           int
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      compensation.Store
	Calculator *compensation.Calculator
	Reports    *compensation.ReportAssembler
	Benchmarks *compensation.BenchmarkService
	Logger     *zap.Logger
	Now        func() time.Time

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler wires the engine components over one store.
func NewHandler(store compensation.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var recorder compensation.Recorder = compensation.NopRecorder{}
	if opts.Recorder != nil {
		recorder = opts.Recorder
	}

	calc := compensation.NewCalculator(store)
	calc.Evaluator = compensation.NewTermEvaluator(opts.ExpectedCollectionsPerWRVU)

	reports := compensation.NewReportAssembler(store)
	reports.Calculator = calc
	reports.Logger = logger
	reports.Recorder = recorder
	if opts.CompensationMetric != "" {
		reports.CompensationMetric = opts.CompensationMetric
	}
	if opts.ProductivityMetric != "" {
		reports.ProductivityMetric = opts.ProductivityMetric
	}
	if opts.BatchConcurrency > 0 {
		reports.BatchConcurrency = opts.BatchConcurrency
	}

	benchmarks := compensation.NewBenchmarkService(store)
	benchmarks.Logger = logger
	benchmarks.Recorder = recorder

	return &Handler{
		Store:      store,
		Calculator: calc,
		Reports:    reports,
		Benchmarks: benchmarks,
		Logger:     logger,
		Now:        time.Now,
	}
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: h.Now().UTC().Format(time.RFC3339)})
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// ListProviders returns all providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Store.ListProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}

	dtos := make([]ProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProvider returns a single provider.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProvider(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(*p))
}

// CreateProvider creates or replaces a provider.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req CreateProviderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := compensation.Provider{
		ID:        compensation.ProviderID(req.ID),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Specialty: req.Specialty,
		Role:      compensation.Role(req.Role),
	}
	if p.Role == "" {
		p.Role = compensation.RolePhysician
	}
	if err := validateProvider(p); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveProvider(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

func validateProvider(p compensation.Provider) error {
	switch {
	case p.ID == "":
		return &compensation.ValidationError{Field: "id", Reason: "is required"}
	case p.LastName == "":
		return &compensation.ValidationError{Field: "last_name", Reason: "is required"}
	case p.Specialty == "":
		return &compensation.ValidationError{Field: "specialty", Reason: "is required"}
	case !p.Role.Valid():
		return &compensation.ValidationError{Field: "role", Reason: "unknown role " + string(p.Role)}
	}
	return nil
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns the contracts of a provider, oldest first.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	contracts, err := h.Store.ListContracts(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]factory.ContractJSON, len(contracts))
	for i, c := range contracts {
		dtos[i] = factory.ContractToJSON(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract stores a contract for the provider in the URL.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	var req factory.ContractJSON
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProviderID != "" && req.ProviderID != string(p.ID) {
		writeDomainError(w, &compensation.ValidationError{Field: "provider_id", Reason: "does not match URL"})
		return
	}
	req.ProviderID = string(p.ID)

	contract, err := factory.ContractFromJSON(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveContract(r.Context(), contract); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ContractToJSON(contract))
}

// =============================================================================
// PRODUCTIVITY HANDLERS
// =============================================================================

// RecordProductivity appends productivity records for a provider.
func (h *Handler) RecordProductivity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProvider(w, r)
	if !ok {
		return
	}

	var req RecordProductivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	records := make([]compensation.ProductivityRecord, 0, len(req.Records))
	for i, dto := range req.Records {
		record, err := productivityFromDTO(p.ID, dto)
		if err != nil {
			var verr *compensation.ValidationError
			if errors.As(err, &verr) {
				verr.Field = "records[" + strconv.Itoa(i) + "]." + verr.Field
			}
			writeDomainError(w, err)
			return
		}
		records = append(records, record)
	}

	if err := h.Store.SaveProductivity(r.Context(), records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save productivity", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"recorded": len(records)})
}

func productivityFromDTO(providerID compensation.ProviderID, dto ProductivityRecordDTO) (compensation.ProductivityRecord, error) {
	period, err := factory.ParseDate("period", dto.Period)
	if err != nil {
		return compensation.ProductivityRecord{}, err
	}
	switch {
	case dto.WRVUs.IsNegative():
		return compensation.ProductivityRecord{}, &compensation.ValidationError{Field: "wrvus", Reason: "must not be negative"}
	case dto.Encounters < 0:
		return compensation.ProductivityRecord{}, &compensation.ValidationError{Field: "encounters", Reason: "must not be negative"}
	case dto.Collections.IsNegative():
		return compensation.ProductivityRecord{}, &compensation.ValidationError{Field: "collections", Reason: "must not be negative"}
	}
	return compensation.ProductivityRecord{
		ID:          dto.ID,
		ProviderID:  providerID,
		Period:      period,
		WRVUs:       dto.WRVUs,
		Encounters:  dto.Encounters,
		Collections: dto.Collections,
	}, nil
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GenerateReport builds one provider report.
// POST /api/reports/provider
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProviderID == "" {
		writeDomainError(w, &compensation.ValidationError{Field: "provider_id", Reason: "is required"})
		return
	}
	period, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	report, err := h.Reports.Generate(r.Context(), compensation.ProviderID(req.ProviderID), period, req.Quality)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToReportDTO(report))
}

// GenerateBatch builds reports for several providers over one period.
// Failures are reported per provider; the response is always 200.
// POST /api/reports/batch
func (h *Handler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	period, err := parsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := req.ProviderIDs
	if len(ids) == 0 {
		providers, err := h.Store.ListProviders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
			return
		}
		for _, p := range providers {
			ids = append(ids, string(p.ID))
		}
	}

	results := h.batch(r, ids, period)
	dtos := make([]BatchReportDTO, len(results))
	for i, res := range results {
		dtos[i] = toBatchDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CalculateCompensation evaluates the active contract against given inputs.
// POST /api/compensation/calculate
func (h *Handler) CalculateCompensation(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProviderID == "" {
		writeDomainError(w, &compensation.ValidationError{Field: "provider_id", Reason: "is required"})
		return
	}
	period, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.Calculator.Calculate(r.Context(), compensation.ProviderID(req.ProviderID), period, compensation.Inputs{
		WRVUs:          req.WRVUs,
		Collections:    req.Collections,
		QualityMetrics: req.Quality,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompensationDTO(result))
}

// =============================================================================
// BENCHMARK HANDLERS
// =============================================================================

// IngestBenchmarks appends market data points.
// POST /api/benchmarks
func (h *Handler) IngestBenchmarks(w http.ResponseWriter, r *http.Request) {
	var req IngestBenchmarksRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	points := make([]compensation.BenchmarkPoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = p.toPoint()
	}

	result, err := h.Benchmarks.Ingest(r.Context(), points)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IngestResponse{Accepted: result.Accepted, Skipped: result.Skipped})
}

// GetBenchmarkCurve returns a curve ascending by percentile. An unknown
// curve is an empty list, not an error.
func (h *Handler) GetBenchmarkCurve(w http.ResponseWriter, r *http.Request) {
	specialty, metric, year, ok := curveParams(w, r)
	if !ok {
		return
	}

	curve, err := h.Benchmarks.Curve(r.Context(), specialty, metric, year)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BenchmarkPointDTO, len(curve))
	for i, p := range curve {
		dtos[i] = toBenchmarkPointDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RankValue returns the percentile of ?value= on a curve.
func (h *Handler) RankValue(w http.ResponseWriter, r *http.Request) {
	specialty, metric, year, ok := curveParams(w, r)
	if !ok {
		return
	}
	value, err := decimal.NewFromString(r.URL.Query().Get("value"))
	if err != nil {
		writeDomainError(w, &compensation.ValidationError{Field: "value", Reason: "expected a number"})
		return
	}

	percentile, err := h.Benchmarks.Rank(r.Context(), specialty, metric, year, value)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RankResponse{
		Specialty:  specialty,
		Metric:     metric,
		Year:       year,
		Value:      value,
		Percentile: percentile.Round(1),
	})
}

func curveParams(w http.ResponseWriter, r *http.Request) (string, string, int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		writeDomainError(w, &compensation.ValidationError{Field: "year", Reason: "expected a positive integer"})
		return "", "", 0, false
	}
	return chi.URLParam(r, "specialty"), chi.URLParam(r, "metric"), year, true
}

// =============================================================================
// ANALYTICS
// =============================================================================

// GetAnalytics generates every provider's report for the period and rolls
// them up by specialty.
// GET /api/analytics?start_date=2024-01-01&end_date=2024-12-31
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	providers, err := h.Store.ListProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}
	ids := make([]string, len(providers))
	for i, p := range providers {
		ids[i] = string(p.ID)
	}

	var reports []compensation.ProviderReport
	var excluded []BatchReportDTO
	for _, res := range h.batch(r, ids, period) {
		if res.Err != nil {
			excluded = append(excluded, toBatchDTO(res))
			continue
		}
		reports = append(reports, *res.Report)
	}

	summary := compensation.Analyze(reports)
	specialties := make([]SpecialtyStatsDTO, len(summary.Specialties))
	for i, s := range summary.Specialties {
		specialties[i] = toSpecialtyStatsDTO(s)
	}
	writeJSON(w, http.StatusOK, AnalyticsDTO{
		Period: PeriodDTO{
			StartDate: period.Start.Format(dateLayout),
			EndDate:   period.End.Format(dateLayout),
		},
		Specialties: specialties,
		Overall:     toSpecialtyStatsDTO(summary.Overall),
		Excluded:    excluded,
	})
}

func (h *Handler) batch(r *http.Request, ids []string, period compensation.Period) []compensation.BatchResult {
	requests := make([]compensation.ReportRequest, len(ids))
	for i, id := range ids {
		requests[i] = compensation.ReportRequest{ProviderID: compensation.ProviderID(id), Period: period}
	}
	return h.Reports.GenerateBatch(r.Context(), requests)
}

func toBatchDTO(res compensation.BatchResult) BatchReportDTO {
	dto := BatchReportDTO{ProviderID: string(res.ProviderID)}
	if res.Err != nil {
		dto.Error = res.Err.Error()
		return dto
	}
	report := ToReportDTO(*res.Report)
	dto.Report = &report
	return dto
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data. Development and demo use only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

// requireProvider loads the provider named by the {id} URL parameter,
// writing 404 when it does not exist.
func (h *Handler) requireProvider(w http.ResponseWriter, r *http.Request) (*compensation.Provider, bool) {
	id := chi.URLParam(r, "id")
	p, err := h.Store.GetProvider(r.Context(), compensation.ProviderID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get provider", err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Provider not found", nil)
		return nil, false
	}
	return p, true
}

func parsePeriod(start, end string) (compensation.Period, error) {
	p, err := parseDates(start, end)
	if err != nil {
		return compensation.Period{}, err
	}
	return compensation.NewPeriod(p.Start, p.End)
}

// parseDates parses both bounds but leaves ordering to the engine, which
// reports an unknown provider before a reversed period.
func parseDates(start, end string) (compensation.Period, error) {
	s, err := factory.ParseDate("start_date", start)
	if err != nil {
		return compensation.Period{}, err
	}
	e, err := factory.ParseDate("end_date", end)
	if err != nil {
		return compensation.Period{}, err
	}
	return compensation.Period{Start: s, End: e}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps an engine error to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *compensation.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   verr.Error(),
			Code:    "validation",
			Details: map[string]string{"field": verr.Field, "reason": verr.Reason},
		})
	case errors.Is(err, compensation.ErrNoMarketData):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No market data", Code: "no_market_data"})
	case compensation.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case compensation.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case compensation.IsExternal(err):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Data source unavailable", Code: "external_data", Details: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

func (h *Handler) getCurrentScenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}
