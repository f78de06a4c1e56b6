// Package cache holds Summarize read-through caches. Entries are scoped to a
// per-employee generation; invalidating an employee bumps the generation so
// every older entry, and any in-flight Set made against it, is dropped.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
)

type memEntry struct {
	gen     int64
	stats   report.SummaryStats
	expires time.Time
}

// Memory is a process-local cache for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	gens    map[string]int64
	entries map[string]map[string]memEntry
}

// NewMemory returns a Memory cache. A zero ttl keeps entries until the
// employee is invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		gens:    make(map[string]int64),
		entries: make(map[string]map[string]memEntry),
	}
}

func (m *Memory) Get(ctx context.Context, employeeID, key string) (report.SummaryStats, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.gens[employeeID]
	e, ok := m.entries[employeeID][key]
	if !ok || e.gen != gen {
		return report.SummaryStats{}, gen, false, nil
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries[employeeID], key)
		return report.SummaryStats{}, gen, false, nil
	}
	return e.stats, gen, true, nil
}

func (m *Memory) Set(ctx context.Context, employeeID, key string, gen int64, stats report.SummaryStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gens[employeeID] != gen {
		return nil
	}
	byKey, ok := m.entries[employeeID]
	if !ok {
		byKey = make(map[string]memEntry)
		m.entries[employeeID] = byKey
	}
	byKey[key] = memEntry{gen: gen, stats: stats, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gens[employeeID]++
	delete(m.entries, employeeID)
	return nil
}
