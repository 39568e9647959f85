package strategy

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
)

// Config holds strategy configuration
type Config struct {
	Enabled bool
	Symbols []string
	Params  map[string]any
}

// DataRequirements specifies what data a strategy needs
type DataRequirements struct {
	Symbols   []string // Traded symbols
	Reference []string // Fetched for indicators only, never traded
	Schedule  string   // Optional cron rebalance schedule
}

// Bar is what a strategy sees on one simulated day. Row holds only values
// known at that day's close.
type Bar struct {
	Index     int
	Date      time.Time
	Row       *series.Row
	Last      bool
	Portfolio *portfolio.Portfolio
	Rand      *rand.Rand
	Logger    *zap.Logger
}

// Strategy drives the engine: it adds indicator columns before the run and
// issues buys, sells and rebalances bar by bar.
type Strategy interface {
	Name() string
	Description() string
	Init(cfg Config) error
	RequiredData() DataRequirements
	Prepare(p *series.Panel) error
	OnBar(b *Bar) error
}
