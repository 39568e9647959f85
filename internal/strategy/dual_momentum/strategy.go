// Package dual_momentum implements global equities momentum: hold US
// stocks or international stocks, whichever is stronger, while US stocks
// beat T-bills; otherwise hold bonds.
package dual_momentum

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

type DualMomentum struct {
	us, exus, bonds, tbill string
	absolute               bool
	schedule               string
	lookback               *strategy.Lookback
}

func New(us, exus, bonds, tbill string, lookback int) *DualMomentum {
	return &DualMomentum{
		us:       us,
		exus:     exus,
		bonds:    bonds,
		tbill:    tbill,
		lookback: strategy.NewLookback(lookback),
	}
}

func Factory() strategy.Strategy {
	return New("SPY", "EFA", "AGG", "BIL", 12)
}

func (s *DualMomentum) Name() string { return "dual_momentum" }

func (s *DualMomentum) Description() string {
	return fmt.Sprintf("Dual momentum %s/%s vs %s, bonds %s", s.us, s.exus, s.tbill, s.bonds)
}

func (s *DualMomentum) symbols() []string {
	return []string{s.us, s.exus, s.bonds, s.tbill}
}

func (s *DualMomentum) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{Symbols: s.symbols(), Schedule: s.schedule}
}

func (s *DualMomentum) Init(cfg strategy.Config) error {
	p := cfg.Params
	var err error
	for key, dst := range map[string]*string{"us": &s.us, "exus": &s.exus, "bonds": &s.bonds, "tbill": &s.tbill} {
		if *dst, err = strategy.Symbol(p, key, *dst); err != nil {
			return err
		}
	}
	seen := make(map[string]bool)
	for _, sym := range s.symbols() {
		if sym == "" || seen[sym] {
			return fmt.Errorf("dual_momentum: symbols must be distinct and non-empty, got %v", s.symbols())
		}
		seen[sym] = true
	}

	lb, err := strategy.Int(p, "lookback", s.lookback.Months())
	if err != nil {
		return err
	}
	if lb < 0 {
		return fmt.Errorf("dual_momentum: negative lookback %d", lb)
	}
	s.lookback = strategy.NewLookback(lb)
	if s.absolute, err = strategy.Bool(p, "use_absolute_mom", s.absolute); err != nil {
		return err
	}
	if s.schedule, err = strategy.String(p, "schedule", s.schedule); err != nil {
		return err
	}
	return nil
}

func (s *DualMomentum) Prepare(p *series.Panel) error {
	lo, hi := s.lookback.Range()
	return strategy.AddMomentum(p, s.symbols(), lo, hi)
}

func (s *DualMomentum) OnBar(b *strategy.Bar) error {
	if !strategy.RebalanceDay(b, s.schedule) && !b.Last {
		return nil
	}
	pf := b.Portfolio
	lb := s.lookback.Current(b.Rand)
	field := strategy.MomentumField(lb)

	mom := make(map[string]float64, 4)
	for _, sym := range s.symbols() {
		v, err := pf.GetRowColumnValue(b.Row, sym, field)
		if err != nil {
			// Without all four readings the allocation is left alone.
			b.Logger.Debug("momentum unavailable", zap.Error(err))
			return nil
		}
		mom[sym] = v
	}

	w := portfolio.NewWeights(s.symbols()...)
	if !b.Last {
		pick := s.bonds
		if mom[s.us] > mom[s.tbill] {
			pick = s.us
			if mom[s.exus] >= mom[s.us] {
				pick = s.exus
			}
		}
		if !s.absolute || mom[pick] >= 0 {
			_ = w.Set(pick, 1)
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
