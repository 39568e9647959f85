package portfolio

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series"
)

// Calendar flag names.
const (
	FlagFirstDayOfWeek  = "first_dotw"
	FlagFirstDayOfMonth = "first_dotm"
	FlagFirstDayOfYear  = "first_doty"
	FlagRebalance       = "rebalance"
)

// Calendar adds rebalance-scheduling flags derived only from each date and
// the one before it. The first row opens every period. When schedule is a
// standard five-field cron expression, FlagRebalance marks the first bar on
// or after each scheduled instant.
func Calendar(p *series.Panel, schedule string) error {
	dates := p.Dates()
	n := len(dates)
	week := make([]bool, n)
	month := make([]bool, n)
	year := make([]bool, n)

	for i, d := range dates {
		if i == 0 {
			week[i], month[i], year[i] = true, true, true
			continue
		}
		prev := dates[i-1]
		py, pw := prev.ISOWeek()
		cy, cw := d.ISOWeek()
		week[i] = py != cy || pw != cw
		month[i] = prev.Month() != d.Month() || prev.Year() != d.Year()
		year[i] = prev.Year() != d.Year()
	}

	for name, values := range map[string][]bool{
		FlagFirstDayOfWeek:  week,
		FlagFirstDayOfMonth: month,
		FlagFirstDayOfYear:  year,
	} {
		if err := p.SetFlag(name, values); err != nil {
			return err
		}
	}

	if schedule == "" {
		return nil
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("rebalance schedule %q: %w", schedule, err))
	}
	rebalance := make([]bool, n)
	for i, d := range dates {
		if i == 0 {
			rebalance[i] = true
			continue
		}
		rebalance[i] = !sched.Next(dates[i-1]).After(d)
	}
	return p.SetFlag(FlagRebalance, rebalance)
}
