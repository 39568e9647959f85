package strategy

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/newthinker/tradesim/internal/indicator"
	"github.com/newthinker/tradesim/internal/portfolio"
	"github.com/newthinker/tradesim/internal/series"
)

// Lookback bounds, in months, for momentum drivers.
const (
	MinLookback = 3
	MaxLookback = 12
)

// MomentumField names the momentum column for a lookback in months.
func MomentumField(months int) string {
	return fmt.Sprintf("mom%d", months)
}

// AddMomentum adds a momentum column per lookback in [lo, hi] for every
// symbol.
func AddMomentum(p *series.Panel, symbols []string, lo, hi int) error {
	for _, s := range symbols {
		for lb := lo; lb <= hi; lb++ {
			months := lb
			err := p.AddIndicator(s, "close", MomentumField(lb), func(dates []time.Time, values []float64) []float64 {
				return indicator.Momentum(dates, values, months)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookback picks the momentum lookback for each rebalance. A fixed
// lookback is used as is; otherwise a random one in [MinLookback,
// MaxLookback] is drawn and kept for that many rebalances.
type Lookback struct {
	fixed   int
	current int
	left    int
}

// NewLookback returns a chooser; months of zero means random.
func NewLookback(months int) *Lookback {
	return &Lookback{fixed: months, current: months}
}

// Months returns the fixed lookback, zero when it is drawn at random.
func (l *Lookback) Months() int { return l.fixed }

// Current returns the lookback for the next rebalance, drawing a new one
// from r when the previous draw is used up.
func (l *Lookback) Current(r *rand.Rand) int {
	if l.fixed > 0 {
		return l.fixed
	}
	if l.left == 0 {
		l.current = MinLookback + r.IntN(MaxLookback-MinLookback+1)
		l.left = l.current
	}
	return l.current
}

// Used records that a rebalance consumed the current lookback.
func (l *Lookback) Used() {
	if l.fixed == 0 && l.left > 0 {
		l.left--
	}
}

// Range returns the lookbacks that need columns.
func (l *Lookback) Range() (int, int) {
	if l.fixed > 0 {
		return l.fixed, l.fixed
	}
	return MinLookback, MaxLookback
}

// RebalanceDay reports whether b falls on a rebalance date: the cron
// schedule's flag when one is set, else the first trading day of the month.
func RebalanceDay(b *Bar, schedule string) bool {
	if schedule != "" {
		return b.Row.Flag(portfolio.FlagRebalance)
	}
	return b.Row.Flag(portfolio.FlagFirstDayOfMonth)
}
