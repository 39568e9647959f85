package backtest

import (
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/tradesim/internal/ledger"
)

// RunConfig parameterizes one backtest run
type RunConfig struct {
	Start       time.Time // Zero means the first available bar
	End         time.Time // Zero means the last available bar
	Capital     float64
	Margin      float64
	Commission  ledger.Commission
	UseAdj      bool
	Seed        uint64
	MergeTrades bool
}

// Result holds the complete backtest output
type Result struct {
	RunID       uuid.UUID
	Strategy    string
	Description string
	Symbols     []string
	Config      RunConfig
	StartDate   time.Time // Effective start after warm-up
	EndDate     time.Time
	Raw         []ledger.RawEntry
	Trades      []ledger.Trade
	Equity      []ledger.EquityRow
	Stats       Stats
	Duration    time.Duration
}

// Fills counts fill events, or only the clamped ones when clampedOnly is set.
func (r *Result) Fills(clampedOnly bool) int {
	var n int
	for _, e := range r.Raw {
		if !clampedOnly || e.Clamped() {
			n++
		}
	}
	return n
}
