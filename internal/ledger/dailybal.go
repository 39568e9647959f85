package ledger

import (
	"sort"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Balance is one equity-curve row. High and Low are the account value
// marked at the bars' highs and lows; Equity is cash plus open positions
// marked at the close.
type Balance struct {
	Date   time.Time
	High   float64
	Low    float64
	Equity float64
}

// EquityRow is a Balance with its drawdown from the running equity peak,
// as a non-positive fraction.
type EquityRow struct {
	Balance
	Drawdown float64
}

// DailyBal accumulates one balance row per simulated bar.
type DailyBal struct {
	rows []Balance
}

// NewDailyBal creates an empty equity curve.
func NewDailyBal() *DailyBal {
	return &DailyBal{}
}

// Append adds the row for date. Dates must be strictly increasing.
func (d *DailyBal) Append(date time.Time, high, low, equity float64) error {
	if n := len(d.rows); n > 0 && !date.After(d.rows[n-1].Date) {
		return core.Errorf(core.ErrMalformedSeries,
			"balance date %s not after %s",
			date.Format(core.DateLayout), d.rows[n-1].Date.Format(core.DateLayout))
	}
	d.rows = append(d.rows, Balance{Date: date, High: high, Low: low, Equity: equity})
	return nil
}

// Len returns the number of rows.
func (d *DailyBal) Len() int {
	return len(d.rows)
}

// Dates returns the calendar the curve covers.
func (d *DailyBal) Dates() []time.Time {
	out := make([]time.Time, len(d.rows))
	for i, r := range d.rows {
		out[i] = r.Date
	}
	return out
}

// Log returns the assembled equity curve.
func (d *DailyBal) Log() []EquityRow {
	out := make([]EquityRow, len(d.rows))
	var peak float64
	for i, r := range d.rows {
		if i == 0 || r.Equity > peak {
			peak = r.Equity
		}
		var dd float64
		if peak > 0 {
			dd = (r.Equity - peak) / peak
		}
		out[i] = EquityRow{Balance: r, Drawdown: dd}
	}
	return out
}

// BarsHeld returns a copy of trades with BarsHeld set to the number of
// curve bars after entry up to and including exit.
func (d *DailyBal) BarsHeld(trades []Trade) []Trade {
	out := make([]Trade, len(trades))
	for i, t := range trades {
		entry := sort.Search(len(d.rows), func(j int) bool { return d.rows[j].Date.After(t.EntryDate) })
		exit := sort.Search(len(d.rows), func(j int) bool { return d.rows[j].Date.After(t.ExitDate) })
		t.BarsHeld = max(exit-entry, 0)
		out[i] = t
	}
	return out
}
