package journal

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
)

// MemoryStore is an in-memory run journal.
type MemoryStore struct {
	runs    []Run
	trades  map[string][]ledger.Trade
	maxSize int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory journal keeping at most maxSize runs.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]Run, 0, maxSize),
		trades:  make(map[string][]ledger.Trade),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// RecordRun adds a run to the journal.
func (m *MemoryStore) RecordRun(ctx context.Context, result *backtest.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := runOf(result, m.now())
	if _, dup := m.trades[run.ID]; dup {
		return core.Errorf(core.ErrStorageFailed, "run %s already recorded", run.ID)
	}
	m.runs = append(m.runs, run)
	m.trades[run.ID] = append([]ledger.Trade(nil), result.Trades...)

	// Trim if over capacity (remove oldest)
	if len(m.runs) > m.maxSize {
		for _, old := range m.runs[:len(m.runs)-m.maxSize] {
			delete(m.trades, old.ID)
		}
		m.runs = m.runs[len(m.runs)-m.maxSize:]
	}
	return nil
}

// GetRun retrieves a run by ID.
func (m *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].ID == id {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, core.Errorf(core.ErrNoData, "run %s", id)
}

// ListRuns returns runs matching the filter, newest first.
func (m *MemoryStore) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Run
	for i := len(m.runs) - 1; i >= 0; i-- {
		if filter.matches(m.runs[i]) {
			result = append(result, m.runs[i])
		}
	}
	return page(result, filter), nil
}

// Trades returns the trades recorded for a run.
func (m *MemoryStore) Trades(ctx context.Context, id string) ([]ledger.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades, ok := m.trades[id]
	if !ok {
		return nil, core.Errorf(core.ErrNoData, "run %s", id)
	}
	return append([]ledger.Trade(nil), trades...), nil
}

// Count returns the count of matching runs.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		if filter.matches(run) {
			count++
		}
	}
	return count, nil
}

// Close is a no-op; the runs go with the process.
func (m *MemoryStore) Close() error { return nil }
