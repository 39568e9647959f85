package portfolio_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
)

var day0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

// panelOf builds a panel where closes[symbol][i] is the close on day(i).
// A zero close means the symbol has no bar that day.
func panelOf(t *testing.T, symbols []string, closes map[string][]float64) *series.Panel {
	t.Helper()
	var all []*series.Series
	for _, s := range symbols {
		ser := &series.Series{Symbol: s}
		for i, c := range closes[s] {
			if c == 0 {
				continue
			}
			ser.Bars = append(ser.Bars, core.Bar{
				Date: day(i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c, AdjClose: c,
			})
		}
		all = append(all, ser)
	}
	p, err := series.Align(all...)
	require.NoError(t, err)
	return p
}

func TestNew_Invalid(t *testing.T) {
	_, err := portfolio.New(nil, 1000, 1)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = portfolio.New([]string{"A", "A"}, 1000, 1)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	_, err = portfolio.New([]string{"A"}, -5, 1)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestRebalance_EqualWeights(t *testing.T) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	panel := panelOf(t, symbols, map[string][]float64{
		"AAA": {30},
		"BBB": {70},
		"CCC": {110},
		"DDD": {13},
	})
	pf, err := portfolio.New(symbols, 40000, 1)
	require.NoError(t, err)

	w := portfolio.NewWeights(symbols...)
	for _, s := range symbols {
		require.NoError(t, w.Set(s, 0.25))
	}
	row := panel.Row(0)
	fills, err := pf.Rebalance(row.Date, row, w)
	require.NoError(t, err)
	require.Len(t, fills, 4)

	for _, s := range symbols {
		tlog, err := pf.TradeLog(s)
		require.NoError(t, err)
		price, _ := row.Value(s, "close")
		notional := tlog.Value(price)
		assert.LessOrEqual(t, notional, 10000.0, s)
		assert.Greater(t, notional, 10000.0-price, s)
	}
	assert.GreaterOrEqual(t, pf.Account().Cash(), 0.0)
	assert.True(t, pf.Account().WithinMargin())
}

func TestRebalance_SellsBeforeBuys(t *testing.T) {
	symbols := []string{"OLD", "NEW"}
	panel := panelOf(t, symbols, map[string][]float64{
		"OLD": {100, 100},
		"NEW": {50, 50},
	})
	pf, err := portfolio.New(symbols, 10000, 1)
	require.NoError(t, err)

	r0 := panel.Row(0)
	filled, err := pf.AdjustPercent(r0.Date, 100, 1, "OLD", r0)
	require.NoError(t, err)
	require.Equal(t, 100, filled)
	require.InDelta(t, 0, pf.Account().Cash(), 1e-9)

	// NEW comes first in weight order; the pass still sells OLD first.
	w := portfolio.NewWeights("NEW", "OLD")
	require.NoError(t, w.Set("NEW", 1))
	r1 := panel.Row(1)
	fills, err := pf.Rebalance(r1.Date, r1, w)
	require.NoError(t, err)
	assert.Equal(t, -100, fills["OLD"])
	assert.Equal(t, 200, fills["NEW"])

	for _, e := range pf.LogRaw() {
		assert.False(t, e.Clamped(), "no fill may be clamped: %+v", e)
	}
	raw := pf.LogRaw()
	require.Len(t, raw, 3)
	assert.Equal(t, core.ActionSell, raw[1].Action)
	assert.Equal(t, core.ActionBuy, raw[2].Action)
}

func TestBuyBeforeSell_Clamps(t *testing.T) {
	acct, err := ledger.NewAccount(10000, 1)
	require.NoError(t, err)
	old := ledger.NewTradeLog("OLD", acct)
	nu := ledger.NewTradeLog("NEW", acct)

	require.Equal(t, 100, old.Buy(day(0), 100, 100))

	// Buying first finds no buying power.
	assert.Equal(t, 0, nu.Buy(day(1), 50, 200))
	assert.Equal(t, 100, old.SellAll(day(1), 100))
	assert.Equal(t, 0, nu.Quantity())
}

func TestRebalance_MissingSymbolSkipped(t *testing.T) {
	symbols := []string{"AAA", "IPO"}
	panel := panelOf(t, symbols, map[string][]float64{
		"AAA": {10, 10},
		"IPO": {0, 20},
	})
	pf, err := portfolio.New(symbols, 10000, 1)
	require.NoError(t, err)

	r0 := panel.Row(0)
	_, err = pf.GetRowColumnValue(r0, "IPO", "close")
	assert.True(t, errors.Is(err, core.ErrMissingSymbolData))

	w := portfolio.NewWeights(symbols...)
	require.NoError(t, w.Set("AAA", 0.5))
	require.NoError(t, w.Set("IPO", 0.5))
	fills, err := pf.Rebalance(r0.Date, r0, w)
	require.NoError(t, err)
	assert.Equal(t, 500, fills["AAA"])
	_, ok := fills["IPO"]
	assert.False(t, ok)

	prices := pf.Prices(r0, "close", "high")
	assert.Contains(t, prices, "AAA")
	assert.NotContains(t, prices, "IPO")

	r1 := panel.Row(1)
	fills, err = pf.Rebalance(r1.Date, r1, w)
	require.NoError(t, err)
	assert.Equal(t, 250, fills["IPO"])
}

func TestRebalance_Rejects(t *testing.T) {
	panel := panelOf(t, []string{"AAA"}, map[string][]float64{"AAA": {10}})
	pf, err := portfolio.New([]string{"AAA"}, 1000, 1)
	require.NoError(t, err)
	row := panel.Row(0)

	w := portfolio.NewWeights("AAA")
	require.NoError(t, w.Set("AAA", 1.5))
	_, err = pf.Rebalance(row.Date, row, w)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid), "weights above margin")

	require.NoError(t, w.Set("AAA", -0.1))
	_, err = pf.Rebalance(row.Date, row, w)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	assert.Error(t, w.Set("ZZZ", 0.1))
}

func TestAdjustPercent(t *testing.T) {
	panel := panelOf(t, []string{"AAA"}, map[string][]float64{"AAA": {10, 12, 12}})
	pf, err := portfolio.New([]string{"AAA"}, 1000, 1)
	require.NoError(t, err)

	r := panel.Row(0)
	n, err := pf.AdjustPercent(r.Date, 10, 0.5, "AAA", r)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	// Equity is 500 + 50*12 = 1100; half is 550, floor(550/12) = 45.
	r = panel.Row(1)
	n, err = pf.AdjustPercent(r.Date, 12, 0.5, "AAA", r)
	require.NoError(t, err)
	assert.Equal(t, -5, n)

	r = panel.Row(2)
	n, err = pf.AdjustPercent(r.Date, 12, 0, "AAA", r)
	require.NoError(t, err)
	assert.Equal(t, -45, n)
	assert.Equal(t, 0, pf.NumOpenTrades())

	_, err = pf.AdjustPercent(r.Date, 12, 0.5, "ZZZ", r)
	assert.True(t, errors.Is(err, core.ErrSymbolNotFound))
}

func TestAdjustPercent_NonFinitePrice(t *testing.T) {
	panel := panelOf(t, []string{"AAA"}, map[string][]float64{"AAA": {10, 12}})
	pf, err := portfolio.New([]string{"AAA"}, 1000, 1)
	require.NoError(t, err)

	r := panel.Row(0)
	_, err = pf.AdjustPercent(r.Date, 10, 0.5, "AAA", r)
	require.NoError(t, err)

	r = panel.Row(1)
	for _, price := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0} {
		n, err := pf.AdjustPercent(r.Date, price, 0, "AAA", r)
		assert.True(t, errors.Is(err, core.ErrMissingSymbolData), "price %v: %v", price, err)
		assert.Equal(t, 0, n)
	}
	assert.Equal(t, 1, pf.NumOpenTrades())
}

func TestRecordDailyBalanceAndLogs(t *testing.T) {
	symbols := []string{"AAA", "BBB"}
	panel := panelOf(t, symbols, map[string][]float64{
		"AAA": {10, 11, 0, 12},
		"BBB": {20, 20, 20, 25},
	})
	pf, err := portfolio.New(symbols, 10000, 1)
	require.NoError(t, err)

	w := portfolio.NewWeights(symbols...)
	require.NoError(t, w.Set("AAA", 0.5))
	require.NoError(t, w.Set("BBB", 0.5))

	for i := 0; i < panel.Len(); i++ {
		row := panel.Row(i)
		if i == 0 {
			_, err := pf.Rebalance(row.Date, row, w)
			require.NoError(t, err)
		}
		if i == panel.Len()-1 {
			pf.CloseAll(row.Date, row)
		}
		require.NoError(t, pf.RecordDailyBalance(row.Date, row))
	}

	curve := pf.DailyBal().Log()
	require.Len(t, curve, 4)
	// Day 2 marks AAA at its last close of 11.
	assert.InDelta(t, 500*11+250*20, curve[2].Equity, 1e-9)
	assert.InDelta(t, 10000+500*2+250*5, curve[3].Equity, 1e-9)
	for _, c := range curve {
		assert.LessOrEqual(t, c.Low, c.Equity)
		assert.GreaterOrEqual(t, c.High, c.Equity)
	}

	trades := pf.Log(true)
	require.Len(t, trades, 2)
	var pnl float64
	for _, tr := range trades {
		pnl += tr.PnL
		assert.Equal(t, 3, tr.BarsHeld)
	}
	assert.InDelta(t, 2250, pnl, 1e-9)

	raw := pf.LogRaw()
	for i := 1; i < len(raw); i++ {
		assert.Less(t, raw[i-1].Seq, raw[i].Seq)
	}
	assert.Equal(t, 0, pf.NumOpenTrades())
}
