/*
store.go - Data access interface consumed by the engine

PURPOSE:
  Defines the narrow boundary between the engine and whatever holds
  providers, contracts, productivity and benchmark data. The engine only
  reads, with one exception: benchmark ingestion, which is append-only.

KEY INTERFACES:
  DataAccess: What the engine itself calls (five operations)
  Directory:  Writes and listings used by the API and demo seeding
  Store:      Both, implemented by every backend

ABSENCE VS FAILURE:
  A missing provider or contract is (nil, nil), not an error. Errors are
  reserved for the data source failing. The engine turns absence into a
  NotFoundError and failures into an ExternalDataError.

APPEND-ONLY BENCHMARKS:
  IngestBenchmarkPoints never overwrites. A point whose natural key
  (specialty, metric, year, percentile) already exists is skipped and
  counted, so retrying an ingestion is harmless.

IMPLEMENTATIONS:
  - compensation/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: Embedded SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package compensation

import (
	"context"
	"time"
)

// =============================================================================
// DATA ACCESS - What the engine reads
// =============================================================================

// DataAccess is the engine's only view of persisted data.
// Implementations must be safe for concurrent use.
type DataAccess interface {
	// GetProvider returns the provider, or nil if it does not exist.
	GetProvider(ctx context.Context, id ProviderID) (*Provider, error)

	// GetActiveContract returns the contract active at asOf, or nil.
	// See ActiveContract for the selection rule.
	GetActiveContract(ctx context.Context, providerID ProviderID, asOf time.Time) (*Contract, error)

	// GetProductivity returns records whose Period falls in [start, end].
	GetProductivity(ctx context.Context, providerID ProviderID, start, end time.Time) ([]ProductivityRecord, error)

	// GetBenchmarkCurve returns every point for the key, in any order.
	GetBenchmarkCurve(ctx context.Context, specialty, metric string, year int) ([]BenchmarkPoint, error)

	// IngestBenchmarkPoints appends points, skipping natural-key duplicates.
	IngestBenchmarkPoints(ctx context.Context, points []BenchmarkPoint) (IngestResult, error)
}

// =============================================================================
// DIRECTORY - Writes and listings outside the engine
// =============================================================================

// Directory manages the entities the engine reads.
type Directory interface {
	SaveProvider(ctx context.Context, p Provider) error
	ListProviders(ctx context.Context) ([]Provider, error)

	SaveContract(ctx context.Context, c Contract) error
	ListContracts(ctx context.Context, providerID ProviderID) ([]Contract, error)

	SaveProductivity(ctx context.Context, records []ProductivityRecord) error

	// Reset removes all data. Development and demo use only.
	Reset(ctx context.Context) error
}

// Store is a complete backend.
type Store interface {
	DataAccess
	Directory
}

// =============================================================================
// ACTIVE CONTRACT RULE
// =============================================================================

// ActiveContract picks the contract active at asOf:
// StartDate <= asOf AND (EndDate nil OR EndDate >= asOf). When several
// overlap, the latest StartDate wins; equal start dates fall back to the
// larger contract ID so the choice never depends on input order.
// Returns nil if none is active.
func ActiveContract(contracts []Contract, asOf time.Time) *Contract {
	var best *Contract
	for i := range contracts {
		c := &contracts[i]
		if !c.IsActive(asOf) {
			continue
		}
		if best == nil || laterContract(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil
	}
	found := *best
	return &found
}

func laterContract(a, b *Contract) bool {
	as, bs := Day(a.StartDate), Day(b.StartDate)
	if !as.Equal(bs) {
		return as.After(bs)
	}
	return a.ID > b.ID
}
