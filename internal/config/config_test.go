package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/tradesim/internal/core"
)

func TestLoad_FromFile(t *testing.T) {
	content := []byte(`
backtest:
  capital: 10000
  margin: 2
  start: "2015-01-01"

commission:
  per_trade: 1.5

strategies:
  period_extremes:
    enabled: true
    symbols: [SPY]
    params:
      period: 7
      max_positions: 4

archive:
  type: localfs
  path: "/tmp/tradesim/runs"
`)

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backtest.Capital != 10000 || cfg.Backtest.Margin != 2 {
		t.Errorf("unexpected backtest config %+v", cfg.Backtest)
	}
	if cfg.Archive.Type != "localfs" {
		t.Errorf("expected localfs, got %s", cfg.Archive.Type)
	}
	if !cfg.Backtest.MergeTrades || cfg.Backtest.Seed != 1 {
		t.Errorf("expected defaults for unset keys, got %+v", cfg.Backtest)
	}
	if cfg.Data.Dir != "data" {
		t.Errorf("expected default data dir, got %q", cfg.Data.Dir)
	}

	pe, ok := cfg.Strategies["period_extremes"]
	if !ok || !pe.Enabled || len(pe.Symbols) != 1 {
		t.Fatalf("unexpected strategy config %+v", cfg.Strategies)
	}
	if pe.Params["period"] != 7 {
		t.Errorf("expected period 7, got %v (%T)", pe.Params["period"], pe.Params["period"])
	}

	start, end, err := cfg.Backtest.Period()
	if err != nil {
		t.Fatalf("period: %v", err)
	}
	if start.Year() != 2015 || !end.IsZero() {
		t.Errorf("unexpected period %v - %v", start, end)
	}
}

func TestLoad_DotEnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	env := []byte("TRADESIM_TEST_BUCKET=research-runs\n")
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), env, 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TRADESIM_TEST_BUCKET") })

	content := []byte(`
archive:
  type: s3
  s3:
    bucket: "${TRADESIM_TEST_BUCKET}"
`)
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Archive.S3.Bucket != "research-runs" {
		t.Errorf("expected bucket from .env, got %q", cfg.Archive.S3.Bucket)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Backtest.Capital != 100000 {
		t.Errorf("expected default capital 100000, got %v", cfg.Backtest.Capital)
	}
	if cfg.Backtest.Margin != 1 {
		t.Errorf("expected default margin 1, got %v", cfg.Backtest.Margin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config { return *Defaults() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr *core.Error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"zero capital", func(c *Config) { c.Backtest.Capital = 0 }, core.ErrConfigInvalid},
		{"margin below one", func(c *Config) { c.Backtest.Margin = 0.5 }, core.ErrConfigInvalid},
		{"bad date", func(c *Config) { c.Backtest.Start = "2020/01/01" }, core.ErrConfigInvalid},
		{"start after end", func(c *Config) {
			c.Backtest.Start, c.Backtest.End = "2021-01-01", "2020-01-01"
		}, core.ErrConfigInvalid},
		{"negative commission", func(c *Config) { c.Commission.PerShare = -0.01 }, core.ErrConfigInvalid},
		{"unknown archive", func(c *Config) { c.Archive.Type = "ftp" }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Archive.Type = "s3" }, core.ErrConfigMissing},
		{"localfs without path", func(c *Config) { c.Archive.Type = "localfs" }, core.ErrConfigMissing},
		{"journal without path", func(c *Config) {
			c.Journal.Enabled, c.Journal.Path = true, ""
		}, core.ErrConfigMissing},
		{"memory journal", func(c *Config) {
			c.Journal.Enabled, c.Journal.Type, c.Journal.Path = true, "memory", ""
		}, nil},
		{"unknown journal", func(c *Config) { c.Journal.Type = "postgres" }, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %s", err, tt.wantErr.Code)
			}
		})
	}
}
