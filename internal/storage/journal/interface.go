// Package journal records completed backtest runs so they can be listed
// and compared later.
package journal

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
)

// Store defines the interface for run persistence.
type Store interface {
	// RecordRun persists a result with its fills, trades and equity curve.
	RecordRun(ctx context.Context, result *backtest.Result) error

	// GetRun retrieves a run summary by its ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns retrieves run summaries matching the filter, newest first.
	ListRuns(ctx context.Context, filter ListFilter) ([]Run, error)

	// Trades returns the merged trades recorded for a run.
	Trades(ctx context.Context, id string) ([]ledger.Trade, error)

	// Count returns the number of runs matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// Close releases the store.
	Close() error
}

// DefaultMemorySize bounds the runs an in-process journal keeps.
const DefaultMemorySize = 1000

// Open creates the journal named by kind: "sqlite" at path, or "memory".
func Open(kind, path string, logger *zap.Logger) (Store, error) {
	switch kind {
	case "", "sqlite":
		db, err := OpenSQLite(path, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryStore(DefaultMemorySize), nil
	}
	return nil, core.Errorf(core.ErrConfigInvalid, "unknown journal type %q", kind)
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Strategy string
	Limit    int
	Offset   int
}

// Run is the journal's summary row for one backtest.
type Run struct {
	ID            string
	Strategy      string
	Symbols       []string
	Start         time.Time
	End           time.Time
	Seed          uint64
	Capital       float64
	EndingBalance float64
	NetProfit     float64
	TotalReturn   float64
	MaxDrawdown   float64
	Sharpe        float64 // NaN when undefined
	TotalTrades   int
	RecordedAt    time.Time
}

func runOf(r *backtest.Result, now time.Time) Run {
	return Run{
		ID:            r.RunID.String(),
		Strategy:      r.Strategy,
		Symbols:       append([]string(nil), r.Symbols...),
		Start:         r.StartDate,
		End:           r.EndDate,
		Seed:          r.Config.Seed,
		Capital:       r.Config.Capital,
		EndingBalance: r.Stats.EndingBalance,
		NetProfit:     r.Stats.TotalNetProfit,
		TotalReturn:   r.Stats.TotalReturn,
		MaxDrawdown:   r.Stats.MaxDrawdown,
		Sharpe:        r.Stats.SharpeRatio,
		TotalTrades:   r.Stats.TotalTrades,
		RecordedAt:    now,
	}
}

func (f ListFilter) matches(r Run) bool {
	return f.Strategy == "" || r.Strategy == f.Strategy
}

func page[T any](items []T, f ListFilter) []T {
	if f.Offset >= len(items) {
		return []T{}
	}
	items = items[f.Offset:]
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
