// Package series holds the price data contract consumed by the engine: one
// ordered bar sequence per symbol, and the aligned multi-symbol panel the
// simulation iterates.
package series

import (
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Series is the ordered bar sequence of one symbol.
type Series struct {
	Symbol string
	Bars   []core.Bar
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Closes returns the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the date index.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// Validate reports unsorted or duplicate dates and non-finite prices.
func (s *Series) Validate() error {
	for _, b := range s.Bars {
		if !b.IsFinite() {
			return core.Errorf(core.ErrMalformedSeries,
				"%s: non-finite price on %s (open=%v high=%v low=%v close=%v)",
				s.Symbol, b.Date.Format(core.DateLayout), b.Open, b.High, b.Low, b.Close)
		}
	}
	return s.ValidateOrder()
}

// ValidateOrder reports unsorted or duplicate dates. Raw data may still
// carry non-finite leading rows; those are trimmed by Panel.Finalize.
func (s *Series) ValidateOrder() error {
	for i, b := range s.Bars {
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1].Date
		if b.Date.Equal(prev) {
			return core.Errorf(core.ErrMalformedSeries,
				"%s: duplicate date %s", s.Symbol, b.Date.Format(core.DateLayout))
		}
		if b.Date.Before(prev) {
			return core.Errorf(core.ErrMalformedSeries,
				"%s: date %s out of order after %s",
				s.Symbol, b.Date.Format(core.DateLayout), prev.Format(core.DateLayout))
		}
	}
	return nil
}

// AdjustPrices returns a copy with open, high, low and close back-adjusted
// by the adj_close/close ratio of each bar.
func (s *Series) AdjustPrices() *Series {
	out := &Series{Symbol: s.Symbol, Bars: make([]core.Bar, len(s.Bars))}
	for i, b := range s.Bars {
		if b.Close != 0 && b.AdjClose != 0 {
			ratio := b.AdjClose / b.Close
			b.Open *= ratio
			b.High *= ratio
			b.Low *= ratio
			b.Close = b.AdjClose
		}
		out.Bars[i] = b
	}
	return out
}

// WarmupDays is how far before the requested start SelectTradePeriod keeps
// bars so long-term indicators are valid by the start date.
const WarmupDays = 365

// SelectTradePeriod slices the bars to trade between start and end,
// clamping both to the available data and keeping WarmupDays of history
// before start. Prices are back-adjusted first when useAdj is set.
func (s *Series) SelectTradePeriod(start, end time.Time, useAdj bool) (*Series, error) {
	if len(s.Bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "%s: empty series", s.Symbol)
	}
	src := s
	if useAdj {
		src = s.AdjustPrices()
	}

	first, last := src.Bars[0].Date, src.Bars[len(src.Bars)-1].Date
	if start.IsZero() || start.Before(first) {
		start = first
	}
	if end.IsZero() || end.After(last) {
		end = last
	}
	if end.Before(start) {
		return nil, core.Errorf(core.ErrNoData, "%s: no bars between %s and %s",
			s.Symbol, start.Format(core.DateLayout), end.Format(core.DateLayout))
	}

	from := start.AddDate(0, 0, -WarmupDays)
	out := &Series{Symbol: s.Symbol}
	for _, b := range src.Bars {
		if b.Date.Before(from) || b.Date.After(end) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out, nil
}
