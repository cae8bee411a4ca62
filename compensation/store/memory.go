// Package store provides in-process compensation.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/compensation-engine/compensation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	providers    map[compensation.ProviderID]compensation.Provider
	contracts    map[compensation.ProviderID][]compensation.Contract
	productivity map[compensation.ProviderID][]compensation.ProductivityRecord
	curves       map[compensation.BenchmarkKey][]compensation.BenchmarkPoint
	benchmarkIdx map[compensation.NaturalKey]bool
}

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

var _ compensation.Store = (*Memory)(nil)

func (m *Memory) resetLocked() {
	m.providers = make(map[compensation.ProviderID]compensation.Provider)
	m.contracts = make(map[compensation.ProviderID][]compensation.Contract)
	m.productivity = make(map[compensation.ProviderID][]compensation.ProductivityRecord)
	m.curves = make(map[compensation.BenchmarkKey][]compensation.BenchmarkPoint)
	m.benchmarkIdx = make(map[compensation.NaturalKey]bool)
}

// =============================================================================
// DATA ACCESS
// =============================================================================

func (m *Memory) GetProvider(_ context.Context, id compensation.ProviderID) (*compensation.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) GetActiveContract(_ context.Context, providerID compensation.ProviderID, asOf time.Time) (*compensation.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := compensation.ActiveContract(m.contracts[providerID], asOf)
	if found == nil {
		return nil, nil
	}
	found.Terms = copyTerms(found.Terms)
	return found, nil
}

// GetProductivity returns records in [start, end], ascending by period.
func (m *Memory) GetProductivity(_ context.Context, providerID compensation.ProviderID, start, end time.Time) ([]compensation.ProductivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	period := compensation.Period{Start: start, End: end}
	var result []compensation.ProductivityRecord
	for _, r := range m.productivity[providerID] {
		if period.Contains(r.Period) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *Memory) GetBenchmarkCurve(_ context.Context, specialty, metric string, year int) ([]compensation.BenchmarkPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points := m.curves[compensation.BenchmarkKey{Specialty: specialty, Metric: metric, Year: year}]
	result := make([]compensation.BenchmarkPoint, len(points))
	copy(result, points)
	return result, nil
}

// IngestBenchmarkPoints appends points. Append-only: a natural-key
// duplicate is skipped, never overwritten.
func (m *Memory) IngestBenchmarkPoints(_ context.Context, points []compensation.BenchmarkPoint) (compensation.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result compensation.IngestResult
	for _, p := range points {
		key := p.NaturalKey()
		if m.benchmarkIdx[key] {
			result.Skipped++
			continue
		}
		m.benchmarkIdx[key] = true
		m.curves[p.Key()] = append(m.curves[p.Key()], p)
		result.Accepted++
	}
	return result, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) SaveProvider(_ context.Context, p compensation.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return nil
}

// ListProviders returns providers sorted by ID.
func (m *Memory) ListProviders(_ context.Context) ([]compensation.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]compensation.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveContract inserts or replaces a contract by ID.
func (m *Memory) SaveContract(_ context.Context, c compensation.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.Terms = copyTerms(c.Terms)
	contracts := m.contracts[c.ProviderID]
	for i := range contracts {
		if contracts[i].ID == c.ID {
			contracts[i] = c
			return nil
		}
	}
	m.contracts[c.ProviderID] = append(contracts, c)
	return nil
}

// ListContracts returns the provider's contracts ordered by start date.
func (m *Memory) ListContracts(_ context.Context, providerID compensation.ProviderID) ([]compensation.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := m.contracts[providerID]
	result := make([]compensation.Contract, len(contracts))
	for i, c := range contracts {
		c.Terms = copyTerms(c.Terms)
		result[i] = c
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	return result, nil
}

// SaveProductivity stores records, keeping each provider's slice sorted by
// period. Records without an ID get one; an existing ID is replaced.
func (m *Memory) SaveProductivity(_ context.Context, records []compensation.ProductivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.removeRecordLocked(r.ProviderID, r.ID)

		recs := m.productivity[r.ProviderID]
		i := sort.Search(len(recs), func(i int) bool {
			return recs[i].Period.After(r.Period)
		})
		recs = append(recs, compensation.ProductivityRecord{})
		copy(recs[i+1:], recs[i:])
		recs[i] = r
		m.productivity[r.ProviderID] = recs
	}
	return nil
}

func (m *Memory) removeRecordLocked(providerID compensation.ProviderID, id string) {
	recs := m.productivity[providerID]
	for i := range recs {
		if recs[i].ID == id {
			m.productivity[providerID] = append(recs[:i], recs[i+1:]...)
			return
		}
	}
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

func copyTerms(terms []compensation.Term) []compensation.Term {
	if terms == nil {
		return nil
	}
	out := make([]compensation.Term, len(terms))
	copy(out, terms)
	return out
}
