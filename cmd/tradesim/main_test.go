package main

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/storage/journal"
	"github.com/newthinker/tradesim/internal/strategy"
)

func TestNewRegistry(t *testing.T) {
	names := newRegistry().Names()
	want := []string{"dual_momentum", "ma_crossover", "period_extremes", "relative_momentum"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	for _, name := range want {
		if _, err := newRegistry().New(name, strategy.Config{Enabled: true}); err != nil {
			t.Errorf("New(%q) with defaults: %v", name, err)
		}
	}
}

func TestEnabledStrategies(t *testing.T) {
	cfg := config.Defaults()
	cfg.Strategies = map[string]config.StrategyConfig{
		"relative_momentum": {Enabled: true},
		"ma_crossover":      {Enabled: true},
		"dual_momentum":     {Enabled: false},
	}
	got := enabledStrategies(cfg)
	if len(got) != 2 || got[0] != "ma_crossover" || got[1] != "relative_momentum" {
		t.Errorf("got %v", got)
	}
}

func TestRunConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Backtest.Start = "2020-01-02"
	cfg.Commission.PerTrade = 1.5

	rc, err := runConfig(cfg)
	if err != nil {
		t.Fatalf("runConfig: %v", err)
	}
	if rc.Start.Format("2006-01-02") != "2020-01-02" || !rc.End.IsZero() {
		t.Errorf("period = %v..%v", rc.Start, rc.End)
	}
	if rc.Capital != 100000 || rc.Seed != 1 || !rc.MergeTrades || rc.Commission.PerTrade != 1.5 {
		t.Errorf("unexpected run config: %+v", rc)
	}

	cfg.Backtest.End = "not-a-date"
	if _, err := runConfig(cfg); err == nil {
		t.Error("expected error for bad end date")
	}
}

func TestOpenJournal(t *testing.T) {
	cfg := config.Defaults()

	jrnl, err := openJournal(cfg, nil)
	if err != nil {
		t.Fatalf("openJournal: %v", err)
	}
	if _, ok := jrnl.(*journal.MemoryStore); !ok {
		t.Errorf("disabled journal = %T, want *journal.MemoryStore", jrnl)
	}

	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(t.TempDir(), "runs.db")
	jrnl, err = openJournal(cfg, nil)
	if err != nil {
		t.Fatalf("openJournal: %v", err)
	}
	defer jrnl.Close()
	if _, ok := jrnl.(*journal.SQLite); !ok {
		t.Errorf("sqlite journal = %T, want *journal.SQLite", jrnl)
	}
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	err := printRuns(&buf, []journal.Run{{
		ID:          "run-1",
		Strategy:    "ma_crossover",
		Start:       time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC),
		TotalTrades: 3,
		NetProfit:   1234.5,
		MaxDrawdown: -0.125,
		Sharpe:      math.NaN(),
	}})
	if err != nil {
		t.Fatalf("printRuns: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"STRATEGY", "run-1", "2020-01-02", "1234.50", "-12.50%", " -"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
