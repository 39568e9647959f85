package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/strategy"
	"github.com/newthinker/tradesim/internal/strategy/dual_momentum"
	"github.com/newthinker/tradesim/internal/strategy/ma_crossover"
	"github.com/newthinker/tradesim/internal/strategy/period_extremes"
	"github.com/newthinker/tradesim/internal/strategy/relative_momentum"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tradesim",
	Short: "tradesim - daily-bar trade simulation and accounting",
	Long: `tradesim replays strategies over daily price history, keeps a
margin-aware trade ledger and reports performance statistics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig reads --config, or falls back to defaults, and validates.
func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	if debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newRegistry() *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register("ma_crossover", ma_crossover.Factory)
	reg.Register("period_extremes", period_extremes.Factory)
	reg.Register("relative_momentum", relative_momentum.Factory)
	reg.Register("dual_momentum", dual_momentum.Factory)
	return reg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
