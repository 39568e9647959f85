package ma_crossover

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

// MACrossover holds one symbol fully invested while its fast moving
// average is above the slow one.
type MACrossover struct {
	symbol     string
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(symbol string, fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		symbol:     symbol,
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Factory returns the registry factory with the classic 50/200 periods.
func Factory() strategy.Strategy {
	return New("SPY", 50, 200)
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover %s (%d/%d)", m.symbol, m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{Symbols: []string{m.symbol}}
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	if len(cfg.Symbols) > 1 {
		return fmt.Errorf("ma_crossover trades one symbol, got %d", len(cfg.Symbols))
	}
	if len(cfg.Symbols) == 1 {
		m.symbol = strings.ToUpper(cfg.Symbols[0])
	}
	var err error
	if m.fastPeriod, err = strategy.Int(cfg.Params, "fast_period", m.fastPeriod); err != nil {
		return err
	}
	if m.slowPeriod, err = strategy.Int(cfg.Params, "slow_period", m.slowPeriod); err != nil {
		return err
	}
	if m.fastPeriod < 1 || m.slowPeriod <= m.fastPeriod {
		return fmt.Errorf("ma_crossover: need 1 <= fast (%d) < slow (%d)", m.fastPeriod, m.slowPeriod)
	}
	return nil
}

func (m *MACrossover) Prepare(p *series.Panel) error {
	return p.AddIndicator(m.symbol, "close", "regime", series.Unary(func(v []float64) []float64 {
		return indicator.Crossover(v, m.fastPeriod, m.slowPeriod)
	}))
}

func (m *MACrossover) OnBar(b *strategy.Bar) error {
	pf := b.Portfolio
	tlog, err := pf.TradeLog(m.symbol)
	if err != nil {
		return err
	}
	price, err := pf.GetRowColumnValue(b.Row, m.symbol, "close")
	if err != nil {
		return nil
	}
	regime, err := pf.GetRowColumnValue(b.Row, m.symbol, "regime")
	if err != nil {
		return nil
	}

	switch {
	case tlog.NumOpenTrades() > 0 && (regime < 0 || b.Last):
		n := tlog.SellAll(b.Date, price)
		b.Logger.Debug("death cross", zap.Time("date", b.Date), zap.Int("shares", n), zap.Float64("price", price))
	case tlog.NumOpenTrades() == 0 && regime > 0 && !b.Last:
		n := tlog.Buy(b.Date, price, tlog.MaxShares(price))
		b.Logger.Debug("golden cross", zap.Time("date", b.Date), zap.Int("shares", n), zap.Float64("price", price))
	}
	return nil
}
