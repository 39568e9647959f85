package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/storage/journal"
)

var (
	runsStrategy string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List journaled backtest runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsStrategy, "strategy", "", "only runs of this strategy")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Journal.Type == "memory" {
		return core.Errorf(core.ErrConfigInvalid, "a memory journal does not outlive its backtest; use sqlite")
	}
	jrnl, err := journal.Open(cfg.Journal.Type, cfg.Journal.Path, nil)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	runs, err := jrnl.ListRuns(context.Background(), journal.ListFilter{
		Strategy: runsStrategy,
		Limit:    runsLimit,
	})
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

func printRuns(out io.Writer, runs []journal.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTRATEGY\tSTART\tEND\tTRADES\tNET PROFIT\tMAX DD\tSHARPE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f%%\t%s\n",
			r.ID, r.Strategy,
			r.Start.Format(core.DateLayout), r.End.Format(core.DateLayout),
			r.TotalTrades, r.NetProfit, r.MaxDrawdown*100, ratio(r.Sharpe))
	}
	return w.Flush()
}

func ratio(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
