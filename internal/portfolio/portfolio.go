// Package portfolio coordinates per-symbol trade logs over one shared
// account and turns target weights into fills.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/newthinker/tradesim/internal/series"
)

// Portfolio owns one TradeLog per symbol, all drawing on the same account.
type Portfolio struct {
	account *ledger.Account
	symbols []string
	logs    map[string]*ledger.TradeLog
	last    map[string]float64
	dbal    *ledger.DailyBal
	logger  *zap.Logger
}

type options struct {
	logger     *zap.Logger
	commission ledger.Commission
}

// Option configures a Portfolio.
type Option func(*options)

// WithLogger sets the logger shared with the trade logs.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCommission sets the commission applied by every trade log.
func WithCommission(c ledger.Commission) Option {
	return func(o *options) {
		o.commission = c
	}
}

// New creates a portfolio over symbols with a fresh account.
func New(symbols []string, capital, margin float64, opts ...Option) (*Portfolio, error) {
	if len(symbols) == 0 {
		return nil, core.Errorf(core.ErrConfigInvalid, "portfolio needs at least one symbol")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	account, err := ledger.NewAccount(capital, margin)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{
		account: account,
		logs:    make(map[string]*ledger.TradeLog, len(symbols)),
		last:    make(map[string]float64, len(symbols)),
		dbal:    ledger.NewDailyBal(),
		logger:  o.logger,
	}
	for _, s := range symbols {
		if _, ok := p.logs[s]; ok {
			return nil, core.Errorf(core.ErrConfigInvalid, "duplicate symbol %s", s)
		}
		p.symbols = append(p.symbols, s)
		p.logs[s] = ledger.NewTradeLog(s, account,
			ledger.WithLogger(o.logger),
			ledger.WithCommission(o.commission))
	}
	return p, nil
}

// Account returns the shared account.
func (p *Portfolio) Account() *ledger.Account { return p.account }

// Symbols returns the portfolio symbols in construction order.
func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// DailyBal returns the equity curve recorded so far.
func (p *Portfolio) DailyBal() *ledger.DailyBal { return p.dbal }

// TradeLog returns the log of symbol.
func (p *Portfolio) TradeLog(symbol string) (*ledger.TradeLog, error) {
	tlog, ok := p.logs[symbol]
	if !ok {
		return nil, core.Errorf(core.ErrSymbolNotFound, "%s is not in the portfolio", symbol)
	}
	return tlog, nil
}

// NumOpenTrades returns the open lot count across all symbols.
func (p *Portfolio) NumOpenTrades() int {
	var n int
	for _, tlog := range p.logs {
		n += tlog.NumOpenTrades()
	}
	return n
}

// GetRowColumnValue returns field of symbol on row. It fails with
// ErrMissingSymbolData when the symbol has no bar on the date or the
// value is not finite; callers skip the symbol for that bar.
func (p *Portfolio) GetRowColumnValue(row *series.Row, symbol, field string) (float64, error) {
	v, ok := row.Value(symbol, field)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.Errorf(core.ErrMissingSymbolData, "%s %s on %s", symbol, field, row.Date.Format(core.DateLayout))
	}
	return v, nil
}

// Prices returns the requested fields for every portfolio symbol that has
// all of them on row.
func (p *Portfolio) Prices(row *series.Row, fields ...string) map[string]map[string]float64 {
	if len(fields) == 0 {
		fields = []string{"close"}
	}
	out := make(map[string]map[string]float64)
	for _, s := range p.symbols {
		vals := make(map[string]float64, len(fields))
		for _, f := range fields {
			v, err := p.GetRowColumnValue(row, s, f)
			if err != nil {
				vals = nil
				break
			}
			vals[f] = v
		}
		if vals != nil {
			out[s] = vals
		}
	}
	return out
}

// observe remembers the latest close of every symbol present on row.
func (p *Portfolio) observe(row *series.Row) {
	for _, s := range p.symbols {
		if v, err := p.GetRowColumnValue(row, s, "close"); err == nil {
			p.last[s] = v
		}
	}
}

// mark returns the price used to value symbol: field on row, else the last
// seen close, else the average entry price.
func (p *Portfolio) mark(row *series.Row, symbol, field string) float64 {
	if v, err := p.GetRowColumnValue(row, symbol, field); err == nil {
		return v
	}
	if v, ok := p.last[symbol]; ok {
		return v
	}
	tlog := p.logs[symbol]
	if q := tlog.Quantity(); q > 0 {
		return tlog.CostBasis() / float64(q)
	}
	return 0
}

func (p *Portfolio) equityAt(row *series.Row, field string) float64 {
	eq := p.account.Cash()
	for _, s := range p.symbols {
		eq += p.logs[s].Value(p.mark(row, s, field))
	}
	return eq
}

// Equity returns cash plus every open position marked at row's closes.
func (p *Portfolio) Equity(row *series.Row) float64 {
	p.observe(row)
	return p.equityAt(row, "close")
}

// targetShares is the whole share count closest to weight × equity without
// exceeding it.
func (p *Portfolio) targetShares(tlog *ledger.TradeLog, price, weight, equity float64) int {
	return tlog.CalcShares(price, weight*equity)
}

func checkWeight(symbol string, weight float64) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return core.Errorf(core.ErrConfigInvalid, "weight %v for %s", weight, symbol)
	}
	return nil
}

// AdjustPercent moves symbol toward weight of total equity at price and
// returns the signed shares filled. Share counts round down, so the
// position never exceeds its target. A weight of zero closes the position.
func (p *Portfolio) AdjustPercent(date time.Time, price, weight float64, symbol string, row *series.Row) (int, error) {
	tlog, err := p.TradeLog(symbol)
	if err != nil {
		return 0, err
	}
	if err := checkWeight(symbol, weight); err != nil {
		return 0, err
	}
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, core.Errorf(core.ErrMissingSymbolData, "%s price %v on %s", symbol, price, date.Format(core.DateLayout))
	}

	p.observe(row)
	p.last[symbol] = price
	if weight == 0 {
		return -tlog.SellAll(date, price), nil
	}

	diff := p.targetShares(tlog, price, weight, p.equityAt(row, "close")) - tlog.Quantity()
	switch {
	case diff > 0:
		return tlog.Buy(date, price, diff), nil
	case diff < 0:
		return -tlog.Sell(date, price, -diff), nil
	}
	return 0, nil
}

type order struct {
	symbol string
	price  float64
	diff   int
}

// Rebalance brings every symbol in w to its weight at row's closes and
// returns the signed fills. Targets are sized from the equity at the start
// of the pass; all sells run before any buy so freed cash funds the buys.
// Symbols without a usable close on row are left unchanged.
func (p *Portfolio) Rebalance(date time.Time, row *series.Row, w *Weights) (map[string]int, error) {
	if sum := w.Sum(); sum > p.account.Margin()+1e-9 {
		return nil, core.Errorf(core.ErrConfigInvalid, "weights sum to %.4f, margin is %.4f", sum, p.account.Margin())
	}

	p.observe(row)
	equity := p.equityAt(row, "close")

	var sells, buys []order
	for _, s := range w.Symbols() {
		tlog, err := p.TradeLog(s)
		if err != nil {
			return nil, err
		}
		weight := w.Get(s)
		if err := checkWeight(s, weight); err != nil {
			return nil, err
		}
		price, err := p.GetRowColumnValue(row, s, "close")
		if err != nil {
			p.logger.Debug("rebalance skipped symbol", zap.Error(err))
			continue
		}
		target := 0
		if weight > 0 {
			target = p.targetShares(tlog, price, weight, equity)
		}
		diff := target - tlog.Quantity()
		switch {
		case diff < 0:
			sells = append(sells, order{s, price, diff})
		case diff > 0:
			buys = append(buys, order{s, price, diff})
		}
	}

	fills := make(map[string]int, len(sells)+len(buys))
	for _, o := range sells {
		fills[o.symbol] = -p.logs[o.symbol].Sell(date, o.price, -o.diff)
	}
	for _, o := range buys {
		fills[o.symbol] = p.logs[o.symbol].Buy(date, o.price, o.diff)
	}
	return fills, nil
}

// CloseAll sells every open position at row's closes, falling back to the
// last seen close for symbols missing on row.
func (p *Portfolio) CloseAll(date time.Time, row *series.Row) int {
	p.observe(row)
	var n int
	for _, s := range p.symbols {
		tlog := p.logs[s]
		if tlog.NumOpenTrades() == 0 {
			continue
		}
		n += tlog.SellAll(date, p.mark(row, s, "close"))
	}
	return n
}

// RecordDailyBalance appends the account balance marked at row's highs,
// lows and closes. Symbols missing on row keep their last close.
func (p *Portfolio) RecordDailyBalance(date time.Time, row *series.Row) error {
	p.observe(row)
	hi, lo := p.account.Cash(), p.account.Cash()
	for _, s := range p.symbols {
		tlog := p.logs[s]
		if tlog.NumOpenTrades() == 0 {
			continue
		}
		a := tlog.Value(p.mark(row, s, "high"))
		b := tlog.Value(p.mark(row, s, "low"))
		hi += max(a, b)
		lo += min(a, b)
	}
	if err := p.dbal.Append(date, hi, lo, p.equityAt(row, "close")); err != nil {
		return fmt.Errorf("record daily balance: %w", err)
	}
	return nil
}

// LogRaw returns every fill across symbols in execution order.
func (p *Portfolio) LogRaw() []ledger.RawEntry {
	var out []ledger.RawEntry
	for _, s := range p.symbols {
		out = append(out, p.logs[s].LogRaw()...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Log returns closed trades across symbols ordered by entry date then
// symbol order, with bars held filled from the equity curve.
func (p *Portfolio) Log(merge bool) []ledger.Trade {
	var out []ledger.Trade
	for _, s := range p.symbols {
		out = append(out, p.logs[s].Log(merge)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryDate.Before(out[j].EntryDate) })
	return p.dbal.BarsHeld(out)
}
