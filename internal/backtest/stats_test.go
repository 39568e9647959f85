package backtest

import (
	"encoding/json"
	"math"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/ledger"
)

var statsDay0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func curve(values ...float64) []ledger.EquityRow {
	out := make([]ledger.EquityRow, len(values))
	for i, v := range values {
		out[i] = ledger.EquityRow{Balance: ledger.Balance{
			Date: statsDay0.AddDate(0, 0, i), High: v, Low: v, Equity: v,
		}}
	}
	return out
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, nil, nil, 1000)
	if s.TotalTrades != 0 {
		t.Error("expected 0 trades for empty input")
	}
	for name, v := range map[string]float64{
		"sharpe":   s.SharpeRatio,
		"cagr":     s.AnnualReturn,
		"win_rate": s.WinRate,
		"drawdown": s.MaxDrawdown,
	} {
		if !math.IsNaN(v) {
			t.Errorf("%s = %v, want NaN", name, v)
		}
	}
}

func TestCompute_SingleBar(t *testing.T) {
	s := Compute([]float64{10}, nil, curve(1000), 1000)
	if !math.IsNaN(s.SharpeRatio) || !math.IsNaN(s.AnnualReturn) || !math.IsNaN(s.BuyAndHold) {
		t.Errorf("annualized metrics need two points: %+v", s)
	}
	if s.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0", s.MaxDrawdown)
	}

	m := s.Map()
	if m["sharpe_ratio"] != nil {
		t.Errorf("sharpe_ratio = %v, want nil", m["sharpe_ratio"])
	}
	if _, err := json.Marshal(m); err != nil {
		t.Fatalf("metrics must serialize: %v", err)
	}

	undefined := s.Undefined()
	if !slices.Contains(undefined, "sharpe_ratio") || !slices.Contains(undefined, "annual_return") {
		t.Errorf("Undefined() = %v, want sharpe_ratio and annual_return", undefined)
	}
	if slices.Contains(undefined, "max_closed_out_drawdown") || slices.Contains(undefined, "trades") {
		t.Errorf("Undefined() = %v lists defined metrics", undefined)
	}
}

func TestCompute_LeavesInputsUnchanged(t *testing.T) {
	benchmark := []float64{10, 9, 12, 11}
	trades := []ledger.Trade{
		{Symbol: "SPY", EntryDate: statsDay0, ExitDate: statsDay0.AddDate(0, 0, 2), PnL: -30, BarsHeld: 3},
		{Symbol: "SPY", EntryDate: statsDay0.AddDate(0, 0, 2), ExitDate: statsDay0.AddDate(0, 0, 3), PnL: 120, BarsHeld: 2},
	}
	equity := curve(1000, 970, 1100, 1090)
	equity[1].Drawdown = -0.03

	wantBenchmark := slices.Clone(benchmark)
	wantTrades := slices.Clone(trades)
	wantEquity := slices.Clone(equity)

	Compute(benchmark, trades, equity, 1000)

	if !reflect.DeepEqual(benchmark, wantBenchmark) {
		t.Errorf("benchmark modified: %v", benchmark)
	}
	if !reflect.DeepEqual(trades, wantTrades) {
		t.Errorf("trades modified: %+v", trades)
	}
	if !reflect.DeepEqual(equity, wantEquity) {
		t.Errorf("equity modified: %+v", equity)
	}
}

func TestCompute_WinRate(t *testing.T) {
	trades := []ledger.Trade{
		{PnL: 100, BarsHeld: 2}, // win
		{PnL: 50, BarsHeld: 4},  // win
		{PnL: -30, BarsHeld: 1}, // loss
		{PnL: 20, BarsHeld: 1},  // win
	}

	s := Compute(nil, trades, curve(1000, 1140), 1000)

	if s.TotalTrades != 4 {
		t.Errorf("TotalTrades = %d, want 4", s.TotalTrades)
	}
	if s.WinningTrades != 3 || s.LosingTrades != 1 {
		t.Errorf("wins/losses = %d/%d, want 3/1", s.WinningTrades, s.LosingTrades)
	}
	if s.WinRate != 0.75 {
		t.Errorf("WinRate = %f, want 0.75", s.WinRate)
	}
	if s.GrossProfit != 170 || s.GrossLoss != -30 {
		t.Errorf("gross = %v/%v, want 170/-30", s.GrossProfit, s.GrossLoss)
	}
	if math.Abs(s.ProfitFactor-170.0/30) > 1e-12 {
		t.Errorf("ProfitFactor = %f", s.ProfitFactor)
	}
	if s.LargestWin != 100 || s.LargestLoss != -30 {
		t.Errorf("largest = %v/%v", s.LargestWin, s.LargestLoss)
	}
	if s.MaxConsecutiveWins != 2 || s.MaxConsecutiveLosses != 1 {
		t.Errorf("streaks = %d/%d, want 2/1", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)
	}
	if s.AvgBarsHeld != 2 {
		t.Errorf("AvgBarsHeld = %f, want 2", s.AvgBarsHeld)
	}
	if math.Abs(s.TotalReturn-0.14) > 1e-12 {
		t.Errorf("TotalReturn = %f, want 0.14", s.TotalReturn)
	}
}

func TestCompute_NoLosses(t *testing.T) {
	s := Compute(nil, []ledger.Trade{{PnL: 5}}, curve(100, 105), 100)
	if !math.IsNaN(s.ProfitFactor) {
		t.Errorf("ProfitFactor = %v, want NaN without losses", s.ProfitFactor)
	}
	if !math.IsNaN(s.AvgLoss) {
		t.Errorf("AvgLoss = %v, want NaN", s.AvgLoss)
	}
}

func TestCompute_Drawdown(t *testing.T) {
	// Peak at 1200, trough at 960, DD = -20%
	eq := curve(1000, 1200, 960, 1100)
	eq[2].Low = 900

	s := Compute(nil, nil, eq, 1000)

	if math.Abs(s.MaxDrawdown+0.2) > 1e-12 {
		t.Errorf("MaxDrawdown = %v, want -0.2", s.MaxDrawdown)
	}
	if math.Abs(s.MaxIntradayDrawdown+0.25) > 1e-12 {
		t.Errorf("MaxIntradayDrawdown = %v, want -0.25", s.MaxIntradayDrawdown)
	}
}

func TestCompute_Ratios(t *testing.T) {
	eq := curve(100, 101, 100, 102, 101, 103)
	s := Compute([]float64{50, 55}, nil, eq, 100)

	if s.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %v, want positive for a rising curve", s.SharpeRatio)
	}
	if s.SortinoRatio <= s.SharpeRatio {
		t.Errorf("Sortino (%v) should exceed Sharpe (%v) with small downside", s.SortinoRatio, s.SharpeRatio)
	}
	if math.Abs(s.BuyAndHold-0.1) > 1e-12 {
		t.Errorf("BuyAndHold = %v, want 0.1", s.BuyAndHold)
	}
	if s.AnnualReturn <= 0 {
		t.Errorf("AnnualReturn = %v, want positive", s.AnnualReturn)
	}
}

func TestCompute_TimeInMarket(t *testing.T) {
	eq := curve(100, 100, 100, 100)
	trades := []ledger.Trade{{EntryDate: eq[1].Date, ExitDate: eq[3].Date}}

	s := Compute(nil, trades, eq, 100)
	if s.PctTimeInMarket != 0.5 {
		t.Errorf("PctTimeInMarket = %v, want 0.5", s.PctTimeInMarket)
	}
}

func TestSummarize(t *testing.T) {
	a := &Result{Strategy: "a", Stats: Compute(nil, nil, curve(100, 110), 100)}
	b := &Result{Strategy: "b", Stats: Compute(nil, nil, curve(100), 100)}

	sum := Summarize([]*Result{a, b}, "total_return", "sharpe_ratio")
	if len(sum.Values) != 2 || len(sum.Values[0]) != 2 {
		t.Fatalf("unexpected shape %v", sum.Values)
	}
	if sum.Values[1][1] != nil {
		t.Errorf("short run sharpe should be nil, got %v", sum.Values[1][1])
	}
	if v, ok := sum.Values[0][0].(float64); !ok || math.Abs(v-0.1) > 1e-12 {
		t.Errorf("total_return = %v, want 0.1", sum.Values[0][0])
	}
}
