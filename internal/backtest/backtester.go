package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/metrics"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/strategy"
)

// Backtester replays strategies over historical data
type Backtester struct {
	source  series.Source
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the run logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records run outcomes in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(b *Backtester) {
		b.metrics = reg
	}
}

// New creates a new Backtester reading bars from source
func New(source series.Source, opts ...Option) *Backtester {
	b := &Backtester{
		source: source,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes one strategy in a single forward pass. Any error aborts the
// whole run; no partial result is returned.
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, cfg RunConfig) (*Result, error) {
	began := time.Now()
	res, err := b.run(ctx, strat, cfg)
	if b.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.RecordRun(strat.Name(), status, time.Since(began).Seconds())
		if err == nil {
			b.record(res)
		}
	}
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(began)
	return res, nil
}

func (b *Backtester) run(ctx context.Context, strat strategy.Strategy, cfg RunConfig) (*Result, error) {
	req := strat.RequiredData()
	if len(req.Symbols) == 0 {
		return nil, core.Errorf(core.ErrConfigInvalid, "%s trades no symbols", strat.Name())
	}

	panel, err := b.load(ctx, cfg, union(req.Symbols, req.Reference))
	if err != nil {
		return nil, err
	}
	if err := strat.Prepare(panel); err != nil {
		return nil, core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s prepare: %w", strat.Name(), err))
	}
	if err := portfolio.Calendar(panel, req.Schedule); err != nil {
		return nil, err
	}
	start, err := panel.Finalize(cfg.Start)
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := b.logger.With(zap.String("run_id", runID.String()), zap.String("strategy", strat.Name()))
	pf, err := portfolio.New(req.Symbols, cfg.Capital, cfg.Margin,
		portfolio.WithLogger(log), portfolio.WithCommission(cfg.Commission))
	if err != nil {
		return nil, err
	}

	log.Info("run started",
		zap.Time("start", start), zap.Int("bars", panel.Len()), zap.Strings("symbols", req.Symbols))

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	last := panel.Len() - 1
	for i := 0; i <= last; i++ {
		row := panel.Row(i)
		bar := &strategy.Bar{
			Index:     i,
			Date:      row.Date,
			Row:       row,
			Last:      i == last,
			Portfolio: pf,
			Rand:      rng,
			Logger:    log,
		}
		if err := strat.OnBar(bar); err != nil {
			return nil, core.WrapError(core.ErrStrategyFailed,
				fmt.Errorf("%s on %s: %w", strat.Name(), row.Date.Format(core.DateLayout), err))
		}
		if bar.Last {
			pf.CloseAll(row.Date, row)
		}
		if err := pf.RecordDailyBalance(row.Date, row); err != nil {
			return nil, err
		}
	}

	equity := pf.DailyBal().Log()
	trades := pf.Log(cfg.MergeTrades)
	res := &Result{
		RunID:       runID,
		Strategy:    strat.Name(),
		Description: strat.Description(),
		Symbols:     req.Symbols,
		Config:      cfg,
		StartDate:   start,
		EndDate:     panel.Row(last).Date,
		Raw:         pf.LogRaw(),
		Trades:      trades,
		Equity:      equity,
		Stats:       Compute(benchmark(panel, req.Symbols[0]), trades, equity, cfg.Capital),
	}
	if undefined := res.Stats.Undefined(); len(undefined) > 0 {
		log.Debug("metrics undefined",
			zap.String("reason", core.ErrInsufficientHistory.Code),
			zap.Strings("metrics", undefined))
	}
	log.Info("run finished",
		zap.Float64("ending_balance", res.Stats.EndingBalance),
		zap.Int("trades", res.Stats.TotalTrades))
	return res, nil
}

// load fetches, trims and aligns the series of symbols.
func (b *Backtester) load(ctx context.Context, cfg RunConfig, symbols []string) (*series.Panel, error) {
	all := make([]*series.Series, 0, len(symbols))
	for _, sym := range symbols {
		s, err := b.source.FetchHistory(ctx, sym)
		if err != nil {
			return nil, err
		}
		s, err = s.SelectTradePeriod(cfg.Start, cfg.End, cfg.UseAdj)
		if err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	return series.Align(all...)
}

func (b *Backtester) record(res *Result) {
	for _, e := range res.Raw {
		b.metrics.RecordFill(res.Strategy, string(e.Action), e.Clamped())
	}
	b.metrics.AddBars(res.Strategy, len(res.Equity))
	dd := res.Stats.MaxDrawdown
	if math.IsNaN(dd) {
		dd = 0
	}
	b.metrics.SetOutcome(res.Strategy, res.Stats.EndingBalance, dd)
}

// benchmark returns the finite closes of symbol over the run.
func benchmark(p *series.Panel, symbol string) []float64 {
	var out []float64
	for _, v := range p.SymbolColumn(symbol, "close") {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
