// Package ledger implements the trade simulation accounting engine: the
// shared account, per-symbol trade logs, the merged round-trip view and the
// daily balance curve.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/newthinker/tradesim/internal/core"
)

// Account is the cash and margin state of one simulation run. Every
// TradeLog sharing an Account draws on the same buying power. Cash is kept
// as an exact decimal so that debits and credits reconcile to the cent
// across thousands of fills.
type Account struct {
	capital  float64
	margin   decimal.Decimal
	cash     decimal.Decimal
	exposure decimal.Decimal // cost basis of all open lots
	seq      int
}

// NewAccount creates an account funded with capital. Margin is the
// multiplier on equity defining the maximum notional exposure and must be
// at least 1.
func NewAccount(capital, margin float64) (*Account, error) {
	if capital <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("capital must be positive, got %f", capital))
	}
	if margin < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("margin must be at least 1, got %f", margin))
	}
	return &Account{
		capital: capital,
		margin:  decimal.NewFromFloat(margin),
		cash:    decimal.NewFromFloat(capital),
	}, nil
}

// Capital returns the starting capital.
func (a *Account) Capital() float64 {
	return a.capital
}

// Margin returns the margin multiplier.
func (a *Account) Margin() float64 {
	return a.margin.InexactFloat64()
}

// Cash returns the cash balance. It goes negative when margin is in use.
func (a *Account) Cash() float64 {
	return a.cash.InexactFloat64()
}

// Exposure returns the total cost basis of open lots.
func (a *Account) Exposure() float64 {
	return a.exposure.InexactFloat64()
}

// BuyingPower returns the notional still purchasable without pushing the
// cost basis of open lots over (cash + cost basis) × margin. It is never
// negative.
func (a *Account) BuyingPower() float64 {
	bp := a.buyingPower()
	if bp.IsNegative() {
		return 0
	}
	return bp.InexactFloat64()
}

// buyingPower is cash × margin + exposure × (margin − 1).
func (a *Account) buyingPower() decimal.Decimal {
	return a.cash.Mul(a.margin).Add(a.exposure.Mul(a.margin.Sub(decimal.NewFromInt(1))))
}

// WithinMargin reports whether the open cost basis respects the margin limit.
func (a *Account) WithinMargin() bool {
	limit := a.cash.Add(a.exposure).Mul(a.margin)
	return a.exposure.LessThanOrEqual(limit)
}

func (a *Account) open(cost, fee decimal.Decimal) {
	a.cash = a.cash.Sub(cost).Sub(fee)
	a.exposure = a.exposure.Add(cost)
}

func (a *Account) close(cost, pnl, fee decimal.Decimal) {
	a.cash = a.cash.Add(cost).Add(pnl).Sub(fee)
	a.exposure = a.exposure.Sub(cost)
}

func (a *Account) nextSeq() int {
	a.seq++
	return a.seq
}
