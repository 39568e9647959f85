package ledger

import (
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Position is one open lot of a symbol. Shares are signed: positive for
// long, negative for short.
type Position struct {
	ID         int
	Symbol     string
	Direction  core.Direction
	EntryDate  time.Time
	EntryPrice float64
	Shares     int

	round int
}

// Quantity returns the unsigned share count.
func (p Position) Quantity() int {
	return abs(p.Shares)
}

// CostBasis returns the entry notional of the lot.
func (p Position) CostBasis() float64 {
	return float64(p.Quantity()) * p.EntryPrice
}

// UnrealizedPnL returns the P&L of the lot marked at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Shares)
}

// Value returns the mark-to-market value of the lot at price: its cost
// basis plus unrealized P&L.
func (p Position) Value(price float64) float64 {
	return p.CostBasis() + p.UnrealizedPnL(price)
}

// Trade is a closed leg, or a merged round trip, of a position.
type Trade struct {
	Symbol     string
	Direction  core.Direction
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   time.Time
	ExitPrice  float64
	Shares     int
	PnL        float64
	PctReturn  float64
	BarsHeld   int
	RoundTrip  int
}

// IsWin reports whether the trade was profitable.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// RawEntry is one fill event in the raw trade log.
type RawEntry struct {
	Seq        int
	Date       time.Time
	Symbol     string
	Action     core.Action
	Direction  core.Direction
	Price      float64
	Shares     int
	Requested  int
	Commission float64
	PnL        float64
	Cash       float64
}

// Clamped reports whether the fill was smaller than requested.
func (r RawEntry) Clamped() bool {
	return r.Shares < r.Requested
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
