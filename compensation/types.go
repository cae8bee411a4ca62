/*
Package compensation provides the physician compensation calculation and
reporting engine.

PURPOSE:
  This package contains the deterministic pipeline that turns a provider's
  contract, productivity records and market benchmark data into a single
  report. Persistence is not its concern: every read goes through the
  DataAccess interface (store.go) and every value it returns is a plain
  struct suitable for JSON responses or downstream document rendering.

KEY CONCEPTS IN THIS FILE (types.go):
  - Provider: The clinician being compensated (physician, NP, PA)
  - Contract: Time-bounded set of compensation terms for one provider
  - ProductivityRecord: One bucket (usually a month) of wRVUs/encounters/collections
  - BenchmarkPoint: One (percentile, value) point of a market curve

DESIGN PRINCIPLES:
  1. Precision: Money, wRVUs and percentiles use decimal.Decimal
  2. Purity: Calculation functions read nothing but their arguments
  3. Type Safety: Strong typing for IDs prevents mixing provider/contract IDs
  4. No hidden state: contracts are fetched fresh on every call, never cached

SEE ALSO:
  - term.go: Compensation terms and their evaluation
  - calculator.go: Active contract resolution and breakdowns
  - productivity.go: Productivity aggregation and trend
  - benchmark.go: Market curves and percentile rank
  - report.go: Report assembly
*/
package compensation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProviderID string
type ContractID string

// =============================================================================
// PROVIDER
// =============================================================================

// Role is the clinical role of a provider.
type Role string

const (
	RolePhysician          Role = "physician"
	RoleNursePractitioner  Role = "nurse_practitioner"
	RolePhysicianAssistant Role = "physician_assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePhysician, RoleNursePractitioner, RolePhysicianAssistant:
		return true
	}
	return false
}

// Provider is the identity of a compensated clinician.
// It is read-only for the duration of a report generation.
type Provider struct {
	ID        ProviderID
	FirstName string
	LastName  string
	Specialty string
	Role      Role
}

// Name returns the display name ("First Last").
func (p Provider) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract belongs to exactly one provider. EndDate nil means open-ended.
// A contract with no terms is valid and yields zero compensation.
type Contract struct {
	ID         ContractID
	ProviderID ProviderID
	Name       string
	StartDate  time.Time
	EndDate    *time.Time
	Terms      []Term
}

// IsActive returns true if the contract covers the given date:
// StartDate <= date AND (EndDate is nil OR EndDate >= date).
func (c Contract) IsActive(at time.Time) bool {
	day := Day(at)
	if day.Before(Day(c.StartDate)) {
		return false
	}
	if c.EndDate != nil && day.After(Day(*c.EndDate)) {
		return false
	}
	return true
}

// =============================================================================
// PRODUCTIVITY
// =============================================================================

// ProductivityRecord is one reporting bucket of provider output.
// Created by an external ingestion process; read-only to the engine.
type ProductivityRecord struct {
	ID          string
	ProviderID  ProviderID
	Period      time.Time // bucket start, usually the first of the month
	WRVUs       decimal.Decimal
	Encounters  int
	Collections decimal.Decimal
}

// =============================================================================
// MARKET BENCHMARKS
// =============================================================================

// Well-known benchmark metrics.
const (
	MetricCompensation = "compensation"
	MetricWRVUs        = "wrvus"
)

// BenchmarkPoint is one point of a benchmark curve.
// The natural key is (Specialty, Metric, Year, Percentile).
type BenchmarkPoint struct {
	Specialty  string
	Metric     string
	Year       int
	Percentile decimal.Decimal
	Value      decimal.Decimal

	// Provenance from the market data file; not part of the key.
	Region string
	Source string
}

// BenchmarkKey identifies one benchmark curve.
type BenchmarkKey struct {
	Specialty string
	Metric    string
	Year      int
}

// Key returns the curve this point belongs to.
func (p BenchmarkPoint) Key() BenchmarkKey {
	return BenchmarkKey{Specialty: p.Specialty, Metric: p.Metric, Year: p.Year}
}

// NaturalKey identifies a point for deduplication. Percentile is held in
// its normalized decimal form, so 50 and 50.0 collide.
type NaturalKey struct {
	BenchmarkKey
	Percentile string
}

// NaturalKey returns the deduplication key of the point.
func (p BenchmarkPoint) NaturalKey() NaturalKey {
	return NaturalKey{BenchmarkKey: p.Key(), Percentile: p.Percentile.String()}
}

// IngestResult counts the outcome of a benchmark ingestion.
type IngestResult struct {
	Accepted int
	Skipped  int
}
