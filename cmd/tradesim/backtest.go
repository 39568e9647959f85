package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/ledger"
	"github.com/newthinker/tradesim/internal/logger"
	"github.com/newthinker/tradesim/internal/metrics"
	"github.com/newthinker/tradesim/internal/report"
	"github.com/newthinker/tradesim/internal/series"
	"github.com/newthinker/tradesim/internal/storage/artifact"
	"github.com/newthinker/tradesim/internal/storage/journal"
	"github.com/newthinker/tradesim/internal/strategy"
)

var (
	backtestSymbols []string
	backtestFrom    string
	backtestTo      string
	backtestSeed    uint64
	backtestTrades  string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy...]",
	Short: "Run backtests and show performance statistics",
	Long: `Run one or more strategies against historical data. With no arguments
every strategy enabled in the config is run. Results are summarized side by
side, and archived and journaled when those are configured.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringSliceVar(&backtestSymbols, "symbols", nil, "override the strategy's symbols")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "start date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "end date YYYY-MM-DD (overrides config)")
	backtestCmd.Flags().Uint64Var(&backtestSeed, "seed", 0, "random seed (overrides config when non-zero)")
	backtestCmd.Flags().StringVar(&backtestTrades, "trades", "", "write the trades of the last run to this CSV file")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if backtestFrom != "" {
		cfg.Backtest.Start = backtestFrom
	}
	if backtestTo != "" {
		cfg.Backtest.End = backtestTo
	}
	if backtestSeed != 0 {
		cfg.Backtest.Seed = backtestSeed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCfg, err := runConfig(cfg)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = enabledStrategies(cfg)
	}
	if len(names) == 0 {
		return fmt.Errorf("no strategy given and none enabled in config")
	}

	reg := metrics.NewRegistry()
	bt := backtest.New(series.NewCSVSource(cfg.Data.Dir),
		backtest.WithLogger(log),
		backtest.WithMetrics(reg),
	)

	var store artifact.Store
	if cfg.Archive.Type != "" {
		store, err = artifact.Open(cfg.Archive.Type, cfg.Archive.Path, artifact.S3Config(cfg.Archive.S3))
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
	}

	jrnl, err := openJournal(cfg, log)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer jrnl.Close()

	strategies := newRegistry()
	var results []*backtest.Result
	for _, name := range names {
		sc := cfg.Strategies[name]
		scfg := strategy.Config{Enabled: true, Symbols: sc.Symbols, Params: sc.Params}
		if len(backtestSymbols) > 0 {
			scfg.Symbols = backtestSymbols
		}

		strat, err := strategies.New(name, scfg)
		if err != nil {
			return err
		}

		res, err := bt.Run(ctx, strat, runCfg)
		if err != nil {
			log.Error("backtest failed", zap.String("strategy", name), zap.Error(err))
			return err
		}
		log.Info("backtest complete",
			zap.String("strategy", name),
			zap.String("run_id", res.RunID.String()),
			zap.Int("trades", len(res.Trades)),
			zap.Float64("ending_balance", res.Stats.EndingBalance),
			zap.Duration("duration", res.Duration),
		)

		if store != nil {
			keys, err := report.Archive(ctx, store, res)
			if err != nil {
				return fmt.Errorf("archiving %s: %w", name, err)
			}
			log.Info("run archived", zap.String("prefix", report.Prefix(res)), zap.Int("files", len(keys)))
		}
		if err := jrnl.RecordRun(ctx, res); err != nil {
			return fmt.Errorf("journaling %s: %w", name, err)
		}
		results = append(results, res)
	}

	if cfg.Metrics.Textfile != "" {
		if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("metrics textfile not written", zap.Error(err))
		}
	}

	if backtestTrades != "" {
		if err := writeTrades(backtestTrades, results[len(results)-1].Trades); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	runs, err := jrnl.ListRuns(ctx, journal.ListFilter{Limit: len(results)})
	if err != nil {
		return err
	}
	if err := printRuns(out, runs); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return report.WriteSummary(out, backtest.Summarize(results))
}

// openJournal returns the configured journal, or an in-process one holding
// just this invocation's runs when journaling is disabled.
func openJournal(cfg *config.Config, log *zap.Logger) (journal.Store, error) {
	if !cfg.Journal.Enabled {
		return journal.NewMemoryStore(journal.DefaultMemorySize), nil
	}
	return journal.Open(cfg.Journal.Type, cfg.Journal.Path, log)
}

func runConfig(cfg *config.Config) (backtest.RunConfig, error) {
	start, end, err := cfg.Backtest.Period()
	if err != nil {
		return backtest.RunConfig{}, err
	}
	return backtest.RunConfig{
		Start:   start,
		End:     end,
		Capital: cfg.Backtest.Capital,
		Margin:  cfg.Backtest.Margin,
		Commission: ledger.Commission{
			PerTrade: cfg.Commission.PerTrade,
			PerShare: cfg.Commission.PerShare,
		},
		UseAdj:      cfg.Data.UseAdj,
		Seed:        cfg.Backtest.Seed,
		MergeTrades: cfg.Backtest.MergeTrades,
	}, nil
}

func enabledStrategies(cfg *config.Config) []string {
	var names []string
	for name, sc := range cfg.Strategies {
		if sc.Enabled {
			names = append(names, strings.ToLower(name))
		}
	}
	sort.Strings(names)
	return names
}

func writeTrades(path string, trades []ledger.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteTrades(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
