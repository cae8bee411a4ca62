/*
Package sqlite provides a SQLite-backed compensation.Store.

PURPOSE:
  Embedded persistence for single-node deployments and demos. The same
  schema is served by store/postgres for server deployments; only dialect
  details differ.

KEY TABLES:
  providers:        Provider identity
  contracts:        Contracts; terms are JSON in terms_json (factory schema)
  productivity:     One row per provider per reporting bucket
  benchmark_points: Market curve points, append-only

APPEND-ONLY BENCHMARKS:
  idx_benchmark_natural_key makes (specialty, metric, year, percentile)
  unique. Ingestion uses INSERT OR IGNORE inside one transaction; a row that
  was ignored is counted as skipped. Rows are never updated.

VALUE ENCODING:
  Dates are TEXT "YYYY-MM-DD" (sortable). Decimals are TEXT so amounts
  round-trip exactly; percentiles are normalized with decimal.String() so
  "50" and "50.0" share a key.

WAL MODE:
  Files are opened with WAL so report reads don't block ingestion.
  ":memory:" is pinned to one connection: each pooled connection would
  otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/compensation.db")
  if err != nil {
      return err
  }
  defer store.Close()
  assembler := compensation.NewReportAssembler(store)

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

const dateLayout = "2006-01-02"

// Store implements compensation.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ compensation.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "failed to migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		specialty TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_providers_specialty
		ON providers(specialty);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT,
		terms_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Active contract lookup (hot path)
	CREATE INDEX IF NOT EXISTS idx_contracts_provider_start
		ON contracts(provider_id, start_date DESC);

	CREATE TABLE IF NOT EXISTS productivity (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
		period TEXT NOT NULL,
		wrvus TEXT NOT NULL,
		encounters INTEGER NOT NULL DEFAULT 0,
		collections TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_productivity_provider_period
		ON productivity(provider_id, period);

	CREATE TABLE IF NOT EXISTS benchmark_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		specialty TEXT NOT NULL,
		metric TEXT NOT NULL,
		year INTEGER NOT NULL,
		percentile TEXT NOT NULL,
		value TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Append-only dedupe on the natural key
	CREATE UNIQUE INDEX IF NOT EXISTS idx_benchmark_natural_key
		ON benchmark_points(specialty, metric, year, percentile);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DATA ACCESS (compensation.DataAccess interface)
// =============================================================================

// GetProvider retrieves a provider by ID.
func (s *Store) GetProvider(ctx context.Context, id compensation.ProviderID) (*compensation.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p compensation.Provider
	var role string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, specialty, role FROM providers WHERE id = ?",
		string(id),
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &role)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get provider %s", id)
	}
	p.Role = compensation.Role(role)
	return &p, nil
}

// GetActiveContract returns the contract active at asOf. Latest start date
// wins; equal start dates fall back to the larger ID.
func (s *Store) GetActiveContract(ctx context.Context, providerID compensation.ProviderID, asOf time.Time) (*compensation.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := compensation.Day(asOf).Format(dateLayout)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, name, start_date, end_date, terms_json
		FROM contracts
		WHERE provider_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC, id DESC
		LIMIT 1`,
		string(providerID), day, day,
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query active contract")
	}
	defer rows.Close()

	contracts, err := scanContracts(rows)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	return &contracts[0], nil
}

// GetProductivity returns records in [start, end], ascending by period.
func (s *Store) GetProductivity(ctx context.Context, providerID compensation.ProviderID, start, end time.Time) ([]compensation.ProductivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, period, wrvus, encounters, collections
		FROM productivity
		WHERE provider_id = ? AND period >= ? AND period <= ?
		ORDER BY period, id`,
		string(providerID),
		compensation.Day(start).Format(dateLayout),
		compensation.Day(end).Format(dateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query productivity")
	}
	defer rows.Close()

	var records []compensation.ProductivityRecord
	for rows.Next() {
		var r compensation.ProductivityRecord
		var period, wrvus, collections string
		if err := rows.Scan(&r.ID, &r.ProviderID, &period, &wrvus, &r.Encounters, &collections); err != nil {
			return nil, eris.Wrap(err, "failed to scan productivity")
		}
		if r.Period, err = time.Parse(dateLayout, period); err != nil {
			return nil, eris.Wrapf(err, "productivity %s: bad period", r.ID)
		}
		if r.WRVUs, err = decimal.NewFromString(wrvus); err != nil {
			return nil, eris.Wrapf(err, "productivity %s: bad wrvus", r.ID)
		}
		if r.Collections, err = decimal.NewFromString(collections); err != nil {
			return nil, eris.Wrapf(err, "productivity %s: bad collections", r.ID)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetBenchmarkCurve returns every point of a curve.
func (s *Store) GetBenchmarkCurve(ctx context.Context, specialty, metric string, year int) ([]compensation.BenchmarkPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT specialty, metric, year, percentile, value, region, source
		FROM benchmark_points
		WHERE specialty = ? AND metric = ? AND year = ?
		ORDER BY id`,
		specialty, metric, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to query benchmark curve")
	}
	defer rows.Close()

	var points []compensation.BenchmarkPoint
	for rows.Next() {
		var p compensation.BenchmarkPoint
		var percentile, value string
		if err := rows.Scan(&p.Specialty, &p.Metric, &p.Year, &percentile, &value, &p.Region, &p.Source); err != nil {
			return nil, eris.Wrap(err, "failed to scan benchmark point")
		}
		if p.Percentile, err = decimal.NewFromString(percentile); err != nil {
			return nil, eris.Wrap(err, "bad benchmark percentile")
		}
		if p.Value, err = decimal.NewFromString(value); err != nil {
			return nil, eris.Wrap(err, "bad benchmark value")
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// IngestBenchmarkPoints appends points in one transaction, skipping
// natural-key duplicates.
func (s *Store) IngestBenchmarkPoints(ctx context.Context, points []compensation.BenchmarkPoint) (compensation.IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result compensation.IngestResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range points {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO benchmark_points
			(specialty, metric, year, percentile, value, region, source, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Specialty, p.Metric, p.Year, p.Percentile.String(), p.Value.String(), p.Region, p.Source, now,
		)
		if err != nil {
			return compensation.IngestResult{}, eris.Wrap(err, "failed to insert benchmark point")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return compensation.IngestResult{}, eris.Wrap(err, "failed to read rows affected")
		}
		if n == 0 {
			result.Skipped++
		} else {
			result.Accepted++
		}
	}

	if err := tx.Commit(); err != nil {
		return compensation.IngestResult{}, eris.Wrap(err, "failed to commit benchmark points")
	}
	return result, nil
}

// =============================================================================
// DIRECTORY (compensation.Directory interface)
// =============================================================================

// SaveProvider creates or updates a provider.
func (s *Store) SaveProvider(ctx context.Context, p compensation.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO providers (id, first_name, last_name, specialty, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			specialty = excluded.specialty,
			role = excluded.role`,
		string(p.ID), p.FirstName, p.LastName, p.Specialty, string(p.Role),
		time.Now().UTC().Format(time.RFC3339),
	)
	return eris.Wrap(err, "failed to save provider")
}

// ListProviders returns all providers ordered by ID.
func (s *Store) ListProviders(ctx context.Context) ([]compensation.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, first_name, last_name, specialty, role FROM providers ORDER BY id",
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list providers")
	}
	defer rows.Close()

	var providers []compensation.Provider
	for rows.Next() {
		var p compensation.Provider
		var role string
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &role); err != nil {
			return nil, eris.Wrap(err, "failed to scan provider")
		}
		p.Role = compensation.Role(role)
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// SaveContract creates or replaces a contract.
func (s *Store) SaveContract(ctx context.Context, c compensation.Contract) error {
	termsJSON, err := factory.MarshalTerms(c.Terms)
	if err != nil {
		return eris.Wrap(err, "failed to encode terms")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, provider_id, name, start_date, end_date, terms_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_id = excluded.provider_id,
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			terms_json = excluded.terms_json`,
		string(c.ID), string(c.ProviderID), c.Name,
		compensation.Day(c.StartDate).Format(dateLayout),
		nullDate(c.EndDate),
		string(termsJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	return eris.Wrap(err, "failed to save contract")
}

// ListContracts returns a provider's contracts ordered by start date.
func (s *Store) ListContracts(ctx context.Context, providerID compensation.ProviderID) ([]compensation.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, name, start_date, end_date, terms_json
		FROM contracts WHERE provider_id = ? ORDER BY start_date, id`,
		string(providerID),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to list contracts")
	}
	defer rows.Close()
	return scanContracts(rows)
}

// SaveProductivity inserts or replaces records by ID in one transaction.
// Records without an ID get a generated one.
func (s *Store) SaveProductivity(ctx context.Context, records []compensation.ProductivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO productivity (id, provider_id, period, wrvus, encounters, collections, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				provider_id = excluded.provider_id,
				period = excluded.period,
				wrvus = excluded.wrvus,
				encounters = excluded.encounters,
				collections = excluded.collections`,
			r.ID, string(r.ProviderID),
			compensation.Day(r.Period).Format(dateLayout),
			r.WRVUs.String(), r.Encounters, r.Collections.String(), now,
		)
		if err != nil {
			return eris.Wrapf(err, "failed to save productivity %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "failed to commit productivity")
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"benchmark_points", "productivity", "contracts", "providers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "failed to clear %s", table)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanContracts decodes contract rows. A stored term that no longer
// validates surfaces as *compensation.ValidationError.
func scanContracts(rows *sql.Rows) ([]compensation.Contract, error) {
	var contracts []compensation.Contract
	for rows.Next() {
		var c compensation.Contract
		var start, termsJSON string
		var end sql.NullString
		if err := rows.Scan(&c.ID, &c.ProviderID, &c.Name, &start, &end, &termsJSON); err != nil {
			return nil, eris.Wrap(err, "failed to scan contract")
		}

		var err error
		if c.StartDate, err = time.Parse(dateLayout, start); err != nil {
			return nil, eris.Wrapf(err, "contract %s: bad start_date", c.ID)
		}
		if end.Valid && end.String != "" {
			endDate, err := time.Parse(dateLayout, end.String)
			if err != nil {
				return nil, eris.Wrapf(err, "contract %s: bad end_date", c.ID)
			}
			c.EndDate = &endDate
		}
		if c.Terms, err = factory.ParseTerms([]byte(termsJSON)); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: compensation.Day(*t).Format(dateLayout), Valid: true}
}
