// Package relative_momentum holds the top tier of a symbol universe ranked
// by trailing momentum, rebalanced monthly.
package relative_momentum

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

type RelativeMomentum struct {
	symbols      []string
	topTier      int
	absolute     bool
	regimeFilter bool
	regimeSymbol string
	schedule     string
	lookback     *strategy.Lookback
}

func New(symbols []string, topTier, lookback int) *RelativeMomentum {
	return &RelativeMomentum{
		symbols:      symbols,
		topTier:      topTier,
		regimeSymbol: "SPY",
		lookback:     strategy.NewLookback(lookback),
	}
}

func Factory() strategy.Strategy {
	return New([]string{"SPY", "QQQ", "EFA", "EEM", "TLT", "GLD"}, 3, 0)
}

func (s *RelativeMomentum) Name() string { return "relative_momentum" }

func (s *RelativeMomentum) Description() string {
	return fmt.Sprintf("Top %d of %d by momentum", s.topTier, len(s.symbols))
}

func (s *RelativeMomentum) RequiredData() strategy.DataRequirements {
	req := strategy.DataRequirements{Symbols: s.symbols, Schedule: s.schedule}
	if s.regimeFilter {
		req.Reference = []string{s.regimeSymbol}
	}
	return req
}

func (s *RelativeMomentum) Init(cfg strategy.Config) error {
	if len(cfg.Symbols) > 0 {
		s.symbols = make([]string, len(cfg.Symbols))
		for i, sym := range cfg.Symbols {
			s.symbols[i] = strings.ToUpper(sym)
		}
	}
	p := cfg.Params
	var err error
	if s.topTier, err = strategy.Int(p, "top_tier", s.topTier); err != nil {
		return err
	}
	lb, err := strategy.Int(p, "lookback", s.lookback.Months())
	if err != nil {
		return err
	}
	if s.absolute, err = strategy.Bool(p, "use_absolute_mom", s.absolute); err != nil {
		return err
	}
	if s.regimeFilter, err = strategy.Bool(p, "use_regime_filter", s.regimeFilter); err != nil {
		return err
	}
	if s.regimeSymbol, err = strategy.Symbol(p, "regime_symbol", s.regimeSymbol); err != nil {
		return err
	}
	if s.schedule, err = strategy.String(p, "schedule", s.schedule); err != nil {
		return err
	}
	if s.topTier < 1 || s.topTier > len(s.symbols) {
		return fmt.Errorf("relative_momentum: top_tier %d outside 1..%d", s.topTier, len(s.symbols))
	}
	if lb < 0 {
		return fmt.Errorf("relative_momentum: negative lookback %d", lb)
	}
	s.lookback = strategy.NewLookback(lb)
	return nil
}

func (s *RelativeMomentum) Prepare(p *series.Panel) error {
	lo, hi := s.lookback.Range()
	if err := strategy.AddMomentum(p, s.symbols, lo, hi); err != nil {
		return err
	}
	if !s.regimeFilter {
		return nil
	}
	return p.AddIndicator(s.regimeSymbol, "close", "regime", series.Unary(func(v []float64) []float64 {
		return indicator.Crossover(v, 1, 200)
	}))
}

func (s *RelativeMomentum) OnBar(b *strategy.Bar) error {
	if !strategy.RebalanceDay(b, s.schedule) && !b.Last {
		return nil
	}
	pf := b.Portfolio
	lb := s.lookback.Current(b.Rand)
	field := strategy.MomentumField(lb)

	w := portfolio.NewWeights(s.symbols...)
	scores := make([]portfolio.Score, 0, len(s.symbols))
	for _, sym := range s.symbols {
		mom, err := pf.GetRowColumnValue(b.Row, sym, field)
		if err != nil {
			b.Logger.Debug("momentum unavailable", zap.Error(err))
			continue
		}
		scores = append(scores, portfolio.Score{Symbol: sym, Value: mom})
	}

	riskOff := false
	if s.regimeFilter {
		regime, err := pf.GetRowColumnValue(b.Row, s.regimeSymbol, "regime")
		riskOff = err == nil && regime < 0
	}
	if !b.Last && !riskOff {
		for _, sym := range portfolio.TopN(scores, s.topTier) {
			if err := w.Set(sym, 1/float64(s.topTier)); err != nil {
				return err
			}
		}
	}
	if s.absolute {
		for _, sc := range scores {
			if sc.Value < 0 {
				_ = w.Set(sc.Symbol, 0)
			}
		}
	}

	fills, err := pf.Rebalance(b.Date, b.Row, w)
	if err != nil {
		return err
	}
	s.lookback.Used()
	b.Logger.Debug("rebalanced", zap.Time("date", b.Date), zap.Int("lookback", lb), zap.Any("fills", fills))
	return nil
}
