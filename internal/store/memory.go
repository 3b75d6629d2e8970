package store

import (
	"context"
	"sync"

	"github.com/joelkehle/normanpd/internal/incident"
)

// MemoryStore is an in-process API used for dry runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	byCase map[string]incident.Record
	order  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCase: map[string]incident.Record{}}
}

func (m *MemoryStore) Create(context.Context) error { return nil }

func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCase = map[string]incident.Record{}
	m.order = nil
	return nil
}

func (m *MemoryStore) InsertMany(_ context.Context, records []incident.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, r := range records {
		if _, ok := m.byCase[r.CaseNumber]; ok {
			continue
		}
		m.byCase[r.CaseNumber] = r
		m.order = append(m.order, r.CaseNumber)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) AggregateByCategory(context.Context) ([]incident.CategoryCount, error) {
	return incident.CountByCategory(m.snapshot()), nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCase), nil
}

func (m *MemoryStore) Get(_ context.Context, caseNumber string) (incident.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byCase[caseNumber]
	if !ok {
		return incident.Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) List(_ context.Context, filter Filter) ([]incident.Record, error) {
	var out []incident.Record
	for _, r := range m.snapshot() {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// snapshot returns the stored records in insertion order.
func (m *MemoryStore) snapshot() []incident.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]incident.Record, 0, len(m.order))
	for _, c := range m.order {
		out = append(out, m.byCase[c])
	}
	return out
}

var _ API = (*MemoryStore)(nil)
