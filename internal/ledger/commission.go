package ledger

import "github.com/shopspring/decimal"

// Commission is a fixed cost policy applied to every fill.
type Commission struct {
	PerTrade float64
	PerShare float64
}

// Fee returns the commission for a fill of shares.
func (c Commission) Fee(shares int) float64 {
	return c.fee(shares).InexactFloat64()
}

func (c Commission) fee(shares int) decimal.Decimal {
	if shares <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(c.PerTrade).
		Add(decimal.NewFromFloat(c.PerShare).Mul(decimal.NewFromInt(int64(shares))))
}
