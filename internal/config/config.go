package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/newthinker/tradesim/internal/core"
)

type Config struct {
	Log        LogConfig                 `mapstructure:"log"`
	Data       DataConfig                `mapstructure:"data"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Commission CommissionConfig          `mapstructure:"commission"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Archive    ArchiveConfig             `mapstructure:"archive"`
	Journal    JournalConfig             `mapstructure:"journal"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type DataConfig struct {
	Dir    string `mapstructure:"dir"`
	UseAdj bool   `mapstructure:"use_adj"`
}

type BacktestConfig struct {
	Capital     float64 `mapstructure:"capital"`
	Margin      float64 `mapstructure:"margin"`
	Start       string  `mapstructure:"start"` // YYYY-MM-DD, empty for the first bar
	End         string  `mapstructure:"end"`   // YYYY-MM-DD, empty for the last bar
	Seed        uint64  `mapstructure:"seed"`
	MergeTrades bool    `mapstructure:"merge_trades"`
}

type CommissionConfig struct {
	PerTrade float64 `mapstructure:"per_trade"`
	PerShare float64 `mapstructure:"per_share"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Symbols []string       `mapstructure:"symbols"`
	Params  map[string]any `mapstructure:"params"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// JournalConfig holds the run journal settings. A memory journal lives for
// one process; sqlite persists to Path.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"` // "sqlite" or "memory"
	Path    string `mapstructure:"path"` // For sqlite
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // Empty disables export
}

// Period parses the configured start and end dates.
func (b BacktestConfig) Period() (start, end time.Time, err error) {
	if b.Start != "" {
		if start, err = time.Parse(core.DateLayout, b.Start); err != nil {
			return start, end, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backtest.start: %w", err))
		}
	}
	if b.End != "" {
		if end, err = time.Parse(core.DateLayout, b.End); err != nil {
			return start, end, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("backtest.end: %w", err))
		}
	}
	return start, end, nil
}

// Load reads configuration from file. A .env file next to it, if any, is
// loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("backtest.capital", d.Backtest.Capital)
	v.SetDefault("backtest.margin", d.Backtest.Margin)
	v.SetDefault("backtest.seed", d.Backtest.Seed)
	v.SetDefault("backtest.merge_trades", d.Backtest.MergeTrades)
	v.SetDefault("journal.type", d.Journal.Type)
	v.SetDefault("journal.path", d.Journal.Path)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Dir: "data",
		},
		Backtest: BacktestConfig{
			Capital:     100000,
			Margin:      1,
			Seed:        1,
			MergeTrades: true,
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: "tradesim.db",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Backtest validation
	if c.Backtest.Capital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("capital must be positive, got %v", c.Backtest.Capital))
	}
	if c.Backtest.Margin < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("margin must be at least 1, got %v", c.Backtest.Margin))
	}
	start, end, err := c.Backtest.Period()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("start %s must be before end %s", c.Backtest.Start, c.Backtest.End))
	}

	if c.Commission.PerTrade < 0 || c.Commission.PerShare < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission cannot be negative, got %+v", c.Commission))
	}

	// Archive validation - if type set, check config exists
	switch c.Archive.Type {
	case "":
	case "localfs":
		if c.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("archive path required when type is localfs"))
		}
	case "s3":
		if c.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Archive.Type))
	}

	switch c.Journal.Type {
	case "memory":
	case "", "sqlite":
		if c.Journal.Enabled && c.Journal.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("journal path required when journal is enabled"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown journal type %q", c.Journal.Type))
	}

	return nil
}
