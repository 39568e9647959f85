// Package period_extremes scales into a symbol on new period lows while it
// trades above its long moving average and exits on a new period high.
package period_extremes

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

type PeriodExtremes struct {
	symbol       string
	period       int
	maxPositions int
	regimePeriod int
}

func New(symbol string, period, maxPositions int) *PeriodExtremes {
	return &PeriodExtremes{
		symbol:       symbol,
		period:       period,
		maxPositions: maxPositions,
		regimePeriod: 200,
	}
}

func Factory() strategy.Strategy {
	return New("SPY", 7, 4)
}

func (s *PeriodExtremes) Name() string { return "period_extremes" }

func (s *PeriodExtremes) Description() string {
	return fmt.Sprintf("%d-day extremes on %s, up to %d lots", s.period, s.symbol, s.maxPositions)
}

func (s *PeriodExtremes) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{Symbols: []string{s.symbol}}
}

func (s *PeriodExtremes) Init(cfg strategy.Config) error {
	if len(cfg.Symbols) > 1 {
		return fmt.Errorf("period_extremes trades one symbol, got %d", len(cfg.Symbols))
	}
	if len(cfg.Symbols) == 1 {
		s.symbol = strings.ToUpper(cfg.Symbols[0])
	}
	var err error
	if s.period, err = strategy.Int(cfg.Params, "period", s.period); err != nil {
		return err
	}
	if s.maxPositions, err = strategy.Int(cfg.Params, "max_positions", s.maxPositions); err != nil {
		return err
	}
	if s.regimePeriod, err = strategy.Int(cfg.Params, "regime_period", s.regimePeriod); err != nil {
		return err
	}
	if s.period < 2 || s.maxPositions < 1 || s.regimePeriod < 2 {
		return fmt.Errorf("period_extremes: invalid period=%d max_positions=%d regime_period=%d",
			s.period, s.maxPositions, s.regimePeriod)
	}
	return nil
}

func (s *PeriodExtremes) Prepare(p *series.Panel) error {
	cols := map[string]func([]float64) []float64{
		"regime":      func(v []float64) []float64 { return indicator.Crossover(v, 1, s.regimePeriod) },
		"period_high": func(v []float64) []float64 { return indicator.RollingMax(v, s.period) },
		"period_low":  func(v []float64) []float64 { return indicator.RollingMin(v, s.period) },
	}
	for name, fn := range cols {
		if err := p.AddIndicator(s.symbol, "close", name, series.Unary(fn)); err != nil {
			return err
		}
	}
	return nil
}

func (s *PeriodExtremes) OnBar(b *strategy.Bar) error {
	pf := b.Portfolio
	tlog, err := pf.TradeLog(s.symbol)
	if err != nil {
		return err
	}
	vals := pf.Prices(b.Row, "close", "regime", "period_high", "period_low")[s.symbol]
	if vals == nil {
		return nil
	}
	price := vals["close"]
	open := tlog.NumOpenTrades()

	switch {
	case open > 0 && (price == vals["period_high"] || b.Last):
		n := tlog.SellAll(b.Date, price)
		b.Logger.Debug("sell", zap.Time("date", b.Date), zap.String("symbol", s.symbol),
			zap.Int("shares", n), zap.Float64("price", price))

	case open < s.maxPositions && vals["regime"] > 0 && price == vals["period_low"] && !b.Last:
		cash := tlog.CalcBuyingPower() / float64(s.maxPositions-open)
		n := tlog.Buy(b.Date, price, tlog.CalcShares(price, cash))
		b.Logger.Debug("buy", zap.Time("date", b.Date), zap.String("symbol", s.symbol),
			zap.Int("shares", n), zap.Float64("price", price))
	}
	return nil
}
