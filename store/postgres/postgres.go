/*
Package postgres provides a PostgreSQL-backed compensation.Store using pgx.

PURPOSE:
  Server deployments where several API instances share one database. Schema
  and semantics mirror store/sqlite.

APPEND-ONLY BENCHMARKS:
  benchmark_points has a UNIQUE (specialty, metric, year, percentile)
  constraint. Ingestion runs INSERT ... ON CONFLICT DO NOTHING in a single
  transaction; a zero RowsAffected is a skipped duplicate. Percentile is
  NUMERIC, so 50 and 50.0 collide.

VALUE ENCODING:
  Dates and decimals cross the wire as text (to_char / ::text, $n::date /
  $n::numeric) so amounts stay exact without a numeric codec on either side.

TESTING:
  The store only needs the Pool interface, which pgxmock.PgxPoolIface
  satisfies.
*/
package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/warp/compensation-engine/compensation"
	"github.com/warp/compensation-engine/factory"
)

const dateLayout = "2006-01-02"

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements compensation.Store on PostgreSQL.
type Store struct {
	pool Pool
}

var _ compensation.Store = (*Store)(nil)

// New connects, pings and migrates. maxConns <= 0 keeps the default of 10.
func New(ctx context.Context, connString string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	store := NewWithPool(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool wraps an existing pool. The caller has already migrated.
func NewWithPool(pool Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

const migration = `
CREATE TABLE IF NOT EXISTS providers (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	specialty  TEXT NOT NULL,
	role       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contracts (
	id          TEXT PRIMARY KEY,
	provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
	name        TEXT NOT NULL DEFAULT '',
	start_date  DATE NOT NULL,
	end_date    DATE,
	terms_json  JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_contracts_provider_start ON contracts(provider_id, start_date DESC);

CREATE TABLE IF NOT EXISTS productivity (
	id          TEXT PRIMARY KEY,
	provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
	period      DATE NOT NULL,
	wrvus       NUMERIC NOT NULL,
	encounters  INTEGER NOT NULL DEFAULT 0,
	collections NUMERIC NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_productivity_provider_period ON productivity(provider_id, period);

CREATE TABLE IF NOT EXISTS benchmark_points (
	id         BIGSERIAL PRIMARY KEY,
	specialty  TEXT NOT NULL,
	metric     TEXT NOT NULL,
	year       INTEGER NOT NULL,
	percentile NUMERIC NOT NULL,
	value      NUMERIC NOT NULL,
	region     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (specialty, metric, year, percentile)
);
`

// Migrate creates the schema if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// =============================================================================
// DATA ACCESS
// =============================================================================

func (s *Store) GetProvider(ctx context.Context, id compensation.ProviderID) (*compensation.Provider, error) {
	var p compensation.Provider
	var pid, role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, specialty, role FROM providers WHERE id = $1`,
		string(id),
	).Scan(&pid, &p.FirstName, &p.LastName, &p.Specialty, &role)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get provider %s", id)
	}
	p.ID = compensation.ProviderID(pid)
	p.Role = compensation.Role(role)
	return &p, nil
}

const contractColumns = `id, provider_id, name, to_char(start_date, 'YYYY-MM-DD'),
	COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''), terms_json::text`

func (s *Store) GetActiveContract(ctx context.Context, providerID compensation.ProviderID, asOf time.Time) (*compensation.Contract, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE provider_id = $1 AND start_date <= $2::date AND (end_date IS NULL OR end_date >= $2::date)
		ORDER BY start_date DESC, id DESC
		LIMIT 1`,
		string(providerID), compensation.Day(asOf).Format(dateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query active contract")
	}
	contracts, err := scanContracts(rows)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	return &contracts[0], nil
}

func (s *Store) GetProductivity(ctx context.Context, providerID compensation.ProviderID, start, end time.Time) ([]compensation.ProductivityRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider_id, to_char(period, 'YYYY-MM-DD'), wrvus::text, encounters, collections::text
		FROM productivity
		WHERE provider_id = $1 AND period BETWEEN $2::date AND $3::date
		ORDER BY period, id`,
		string(providerID),
		compensation.Day(start).Format(dateLayout),
		compensation.Day(end).Format(dateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query productivity")
	}
	defer rows.Close()

	var records []compensation.ProductivityRecord
	for rows.Next() {
		var r compensation.ProductivityRecord
		var pid, period, wrvus, collections string
		if err := rows.Scan(&r.ID, &pid, &period, &wrvus, &r.Encounters, &collections); err != nil {
			return nil, eris.Wrap(err, "postgres: scan productivity")
		}
		r.ProviderID = compensation.ProviderID(pid)
		if r.Period, err = time.Parse(dateLayout, period); err != nil {
			return nil, eris.Wrapf(err, "postgres: productivity %s period", r.ID)
		}
		if r.WRVUs, err = decimal.NewFromString(wrvus); err != nil {
			return nil, eris.Wrapf(err, "postgres: productivity %s wrvus", r.ID)
		}
		if r.Collections, err = decimal.NewFromString(collections); err != nil {
			return nil, eris.Wrapf(err, "postgres: productivity %s collections", r.ID)
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate productivity")
}

func (s *Store) GetBenchmarkCurve(ctx context.Context, specialty, metric string, year int) ([]compensation.BenchmarkPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT specialty, metric, year, percentile::text, value::text, region, source
		FROM benchmark_points
		WHERE specialty = $1 AND metric = $2 AND year = $3
		ORDER BY percentile`,
		specialty, metric, year,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query benchmark curve")
	}
	defer rows.Close()

	var points []compensation.BenchmarkPoint
	for rows.Next() {
		var p compensation.BenchmarkPoint
		var percentile, value string
		if err := rows.Scan(&p.Specialty, &p.Metric, &p.Year, &percentile, &value, &p.Region, &p.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan benchmark point")
		}
		if p.Percentile, err = decimal.NewFromString(percentile); err != nil {
			return nil, eris.Wrap(err, "postgres: benchmark percentile")
		}
		if p.Value, err = decimal.NewFromString(value); err != nil {
			return nil, eris.Wrap(err, "postgres: benchmark value")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate benchmark curve")
}

func (s *Store) IngestBenchmarkPoints(ctx context.Context, points []compensation.BenchmarkPoint) (compensation.IngestResult, error) {
	var result compensation.IngestResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, eris.Wrap(err, "postgres: begin ingest")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range points {
		tag, err := tx.Exec(ctx, `
			INSERT INTO benchmark_points (specialty, metric, year, percentile, value, region, source)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
			ON CONFLICT (specialty, metric, year, percentile) DO NOTHING`,
			p.Specialty, p.Metric, p.Year, p.Percentile.String(), p.Value.String(), p.Region, p.Source,
		)
		if err != nil {
			return compensation.IngestResult{}, eris.Wrap(err, "postgres: insert benchmark point")
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
		} else {
			result.Accepted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return compensation.IngestResult{}, eris.Wrap(err, "postgres: commit ingest")
	}
	return result, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) SaveProvider(ctx context.Context, p compensation.Provider) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO providers (id, first_name, last_name, specialty, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			specialty = EXCLUDED.specialty,
			role = EXCLUDED.role`,
		string(p.ID), p.FirstName, p.LastName, p.Specialty, string(p.Role),
	)
	return eris.Wrap(err, "postgres: save provider")
}

func (s *Store) ListProviders(ctx context.Context) ([]compensation.Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, first_name, last_name, specialty, role FROM providers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var providers []compensation.Provider
	for rows.Next() {
		var p compensation.Provider
		var id, role string
		if err := rows.Scan(&id, &p.FirstName, &p.LastName, &p.Specialty, &role); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		p.ID = compensation.ProviderID(id)
		p.Role = compensation.Role(role)
		providers = append(providers, p)
	}
	return providers, eris.Wrap(rows.Err(), "postgres: iterate providers")
}

func (s *Store) SaveContract(ctx context.Context, c compensation.Contract) error {
	termsJSON, err := factory.MarshalTerms(c.Terms)
	if err != nil {
		return eris.Wrap(err, "postgres: encode terms")
	}
	var end *string
	if c.EndDate != nil {
		e := compensation.Day(*c.EndDate).Format(dateLayout)
		end = &e
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO contracts (id, provider_id, name, start_date, end_date, terms_json)
		VALUES ($1, $2, $3, $4::date, $5::date, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			provider_id = EXCLUDED.provider_id,
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			terms_json = EXCLUDED.terms_json`,
		string(c.ID), string(c.ProviderID), c.Name,
		compensation.Day(c.StartDate).Format(dateLayout), end, string(termsJSON),
	)
	return eris.Wrap(err, "postgres: save contract")
}

func (s *Store) ListContracts(ctx context.Context, providerID compensation.ProviderID) ([]compensation.Contract, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM contracts WHERE provider_id = $1 ORDER BY start_date, id`,
		string(providerID),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contracts")
	}
	return scanContracts(rows)
}

func (s *Store) SaveProductivity(ctx context.Context, records []compensation.ProductivityRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin productivity")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO productivity (id, provider_id, period, wrvus, encounters, collections)
			VALUES ($1, $2, $3::date, $4::numeric, $5, $6::numeric)
			ON CONFLICT (id) DO UPDATE SET
				provider_id = EXCLUDED.provider_id,
				period = EXCLUDED.period,
				wrvus = EXCLUDED.wrvus,
				encounters = EXCLUDED.encounters,
				collections = EXCLUDED.collections`,
			r.ID, string(r.ProviderID), compensation.Day(r.Period).Format(dateLayout),
			r.WRVUs.String(), r.Encounters, r.Collections.String(),
		); err != nil {
			return eris.Wrapf(err, "postgres: save productivity %s", r.ID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit productivity")
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE benchmark_points, productivity, contracts, providers`)
	return eris.Wrap(err, "postgres: reset")
}

// =============================================================================
// HELPERS
// =============================================================================

func scanContracts(rows pgx.Rows) ([]compensation.Contract, error) {
	defer rows.Close()

	var contracts []compensation.Contract
	for rows.Next() {
		var id, pid, name, start, end, termsJSON string
		if err := rows.Scan(&id, &pid, &name, &start, &end, &termsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contract")
		}
		c := compensation.Contract{ID: compensation.ContractID(id), ProviderID: compensation.ProviderID(pid), Name: name}

		var err error
		if c.StartDate, err = time.Parse(dateLayout, start); err != nil {
			return nil, eris.Wrapf(err, "postgres: contract %s start_date", id)
		}
		if end != "" {
			endDate, err := time.Parse(dateLayout, end)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: contract %s end_date", id)
			}
			c.EndDate = &endDate
		}
		if c.Terms, err = factory.ParseTerms([]byte(termsJSON)); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, eris.Wrap(rows.Err(), "postgres: iterate contracts")
}
