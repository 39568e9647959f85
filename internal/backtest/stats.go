package backtest

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
)

// TradingDays is the number of bars per year used to annualize.
const TradingDays = 252

// Stats holds performance statistics. Metrics that need more history than
// the run produced are NaN.
type Stats struct {
	Start            time.Time
	End              time.Time
	BeginningBalance float64
	EndingBalance    float64
	TotalNetProfit   float64
	GrossProfit      float64
	GrossLoss        float64
	ProfitFactor     float64
	TotalReturn      float64 // Fraction of beginning balance
	AnnualReturn     float64 // Compound annual growth rate
	BuyAndHold       float64 // Benchmark close-to-close return

	MaxDrawdown         float64 // Closed-out, negative fraction
	MaxIntradayDrawdown float64 // From the balance lows
	AnnualizedStdDev    float64
	SharpeRatio         float64
	SortinoRatio        float64

	TotalTrades          int
	WinningTrades        int
	LosingTrades         int
	WinRate              float64
	AvgWin               float64
	AvgLoss              float64
	AvgTrade             float64
	LargestWin           float64
	LargestLoss          float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AvgBarsHeld          float64
	TradesPerYear        float64
	PctTimeInMarket      float64
}

// Compute derives the statistics of a run from the benchmark closes, the
// closed trades and the equity curve. It does not modify its inputs.
func Compute(benchmark []float64, trades []ledger.Trade, equity []ledger.EquityRow, capital float64) Stats {
	nan := math.NaN()
	s := Stats{
		BeginningBalance:    capital,
		EndingBalance:       capital,
		ProfitFactor:        nan,
		AnnualReturn:        nan,
		BuyAndHold:          nan,
		AnnualizedStdDev:    nan,
		SharpeRatio:         nan,
		SortinoRatio:        nan,
		WinRate:             nan,
		AvgWin:              nan,
		AvgLoss:             nan,
		AvgTrade:            nan,
		LargestWin:          nan,
		LargestLoss:         nan,
		AvgBarsHeld:         nan,
		TradesPerYear:       nan,
		PctTimeInMarket:     nan,
		MaxDrawdown:         nan,
		MaxIntradayDrawdown: nan,
	}

	if n := len(benchmark); n >= 2 && benchmark[0] > 0 {
		s.BuyAndHold = benchmark[n-1]/benchmark[0] - 1
	}

	years := nan
	if len(equity) > 0 {
		s.Start = equity[0].Date
		s.End = equity[len(equity)-1].Date
		s.EndingBalance = equity[len(equity)-1].Equity
		s.MaxDrawdown, s.MaxIntradayDrawdown = drawdowns(equity)
		if len(equity) >= 2 {
			years = s.End.Sub(s.Start).Hours() / 24 / 365.25
		}
	}
	s.TotalNetProfit = s.EndingBalance - capital
	s.TotalReturn = s.TotalNetProfit / capital
	if years > 0 && s.EndingBalance > 0 {
		s.AnnualReturn = math.Pow(s.EndingBalance/capital, 1/years) - 1
	}

	returns := dailyReturns(equity)
	if len(returns) >= 2 {
		mean, std := stat.MeanStdDev(returns, nil)
		s.AnnualizedStdDev = std * math.Sqrt(TradingDays)
		if std > 0 {
			s.SharpeRatio = mean / std * math.Sqrt(TradingDays)
		}
		if dd := downsideDeviation(returns); dd > 0 {
			s.SortinoRatio = mean / dd * math.Sqrt(TradingDays)
		}
	}

	tradeStats(&s, trades)
	if years > 0 {
		s.TradesPerYear = float64(s.TotalTrades) / years
	}
	if len(equity) > 0 {
		s.PctTimeInMarket = timeInMarket(trades, equity)
	}
	return s
}

func tradeStats(s *Stats, trades []ledger.Trade) {
	s.TotalTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	var wins, losses, pnls, bars []float64
	var runW, runL int
	for _, t := range trades {
		pnls = append(pnls, t.PnL)
		bars = append(bars, float64(t.BarsHeld))
		if t.IsWin() {
			wins = append(wins, t.PnL)
			s.GrossProfit += t.PnL
			runW, runL = runW+1, 0
		} else {
			losses = append(losses, t.PnL)
			s.GrossLoss += t.PnL
			runW, runL = 0, runL+1
		}
		s.MaxConsecutiveWins = max(s.MaxConsecutiveWins, runW)
		s.MaxConsecutiveLosses = max(s.MaxConsecutiveLosses, runL)
	}

	s.WinningTrades = len(wins)
	s.LosingTrades = len(losses)
	s.WinRate = float64(len(wins)) / float64(len(trades))
	s.AvgTrade = stat.Mean(pnls, nil)
	s.AvgBarsHeld = stat.Mean(bars, nil)
	if len(wins) > 0 {
		s.AvgWin = stat.Mean(wins, nil)
		s.LargestWin = maxOf(wins)
	}
	if len(losses) > 0 {
		s.AvgLoss = stat.Mean(losses, nil)
		s.LargestLoss = minOf(losses)
	}
	if s.GrossLoss < 0 {
		s.ProfitFactor = s.GrossProfit / -s.GrossLoss
	}
}

// drawdowns returns the deepest close-to-peak and low-to-peak declines.
func drawdowns(equity []ledger.EquityRow) (closed, intraday float64) {
	var peak float64
	for i, r := range equity {
		if i == 0 || r.Equity > peak {
			peak = r.Equity
		}
		if peak <= 0 {
			continue
		}
		closed = min(closed, (r.Equity-peak)/peak)
		intraday = min(intraday, (r.Low-peak)/peak)
	}
	return closed, intraday
}

func dailyReturns(equity []ledger.EquityRow) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, equity[i].Equity/prev-1)
	}
	return out
}

func downsideDeviation(returns []float64) float64 {
	sq := make([]float64, len(returns))
	for i, r := range returns {
		if r < 0 {
			sq[i] = r * r
		}
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

// timeInMarket is the fraction of curve bars on which some trade was open
// at the close.
func timeInMarket(trades []ledger.Trade, equity []ledger.EquityRow) float64 {
	var in int
	for _, r := range equity {
		for _, t := range trades {
			if !r.Date.Before(t.EntryDate) && r.Date.Before(t.ExitDate) {
				in++
				break
			}
		}
	}
	return float64(in) / float64(len(equity))
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = max(m, x)
	}
	return m
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = min(m, x)
	}
	return m
}

// Metric names in report order.
var MetricNames = []string{
	"start", "end", "beginning_balance", "ending_balance", "total_net_profit",
	"gross_profit", "gross_loss", "profit_factor", "total_return", "annual_return",
	"buy_and_hold_return", "max_closed_out_drawdown", "max_intraday_drawdown",
	"annualized_std_dev", "sharpe_ratio", "sortino_ratio", "trades", "winning_trades",
	"losing_trades", "win_rate", "avg_win", "avg_loss", "avg_trade", "largest_win",
	"largest_loss", "max_consecutive_wins", "max_consecutive_losses", "avg_bars_held",
	"trades_per_year", "pct_time_in_market",
}

// Undefined returns the names of metrics that had too little history to
// compute, in MetricNames order.
func (s Stats) Undefined() []string {
	m := s.Map()
	var out []string
	for _, name := range MetricNames {
		if m[name] == nil {
			out = append(out, name)
		}
	}
	return out
}

// Map returns the metrics keyed by name. NaN becomes nil so the mapping
// serializes with null sentinels.
func (s Stats) Map() map[string]any {
	f := func(v float64) any {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	}
	date := func(t time.Time) any {
		if t.IsZero() {
			return nil
		}
		return t.Format(core.DateLayout)
	}
	return map[string]any{
		"start":                   date(s.Start),
		"end":                     date(s.End),
		"beginning_balance":       f(s.BeginningBalance),
		"ending_balance":          f(s.EndingBalance),
		"total_net_profit":        f(s.TotalNetProfit),
		"gross_profit":            f(s.GrossProfit),
		"gross_loss":              f(s.GrossLoss),
		"profit_factor":           f(s.ProfitFactor),
		"total_return":            f(s.TotalReturn),
		"annual_return":           f(s.AnnualReturn),
		"buy_and_hold_return":     f(s.BuyAndHold),
		"max_closed_out_drawdown": f(s.MaxDrawdown),
		"max_intraday_drawdown":   f(s.MaxIntradayDrawdown),
		"annualized_std_dev":      f(s.AnnualizedStdDev),
		"sharpe_ratio":            f(s.SharpeRatio),
		"sortino_ratio":           f(s.SortinoRatio),
		"trades":                  s.TotalTrades,
		"winning_trades":          s.WinningTrades,
		"losing_trades":           s.LosingTrades,
		"win_rate":                f(s.WinRate),
		"avg_win":                 f(s.AvgWin),
		"avg_loss":                f(s.AvgLoss),
		"avg_trade":               f(s.AvgTrade),
		"largest_win":             f(s.LargestWin),
		"largest_loss":            f(s.LargestLoss),
		"max_consecutive_wins":    s.MaxConsecutiveWins,
		"max_consecutive_losses":  s.MaxConsecutiveLosses,
		"avg_bars_held":           f(s.AvgBarsHeld),
		"trades_per_year":         f(s.TradesPerYear),
		"pct_time_in_market":      f(s.PctTimeInMarket),
	}
}
