package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Row is one date of the aligned calendar. A symbol without a bar on the
// date has no fields in the row.
type Row struct {
	Date    time.Time
	fields  map[string]map[string]float64
	columns map[string]float64
	flags   map[string]bool
}

// Has reports whether symbol has a bar on this row's date.
func (r *Row) Has(symbol string) bool {
	_, ok := r.fields[symbol]
	return ok
}

// Value returns a per-symbol field. ok is false when the symbol or the
// field is absent.
func (r *Row) Value(symbol, field string) (float64, bool) {
	f, ok := r.fields[symbol]
	if !ok {
		return 0, false
	}
	v, ok := f[field]
	return v, ok
}

// Column returns a row-wide column such as a regime filter.
func (r *Row) Column(name string) (float64, bool) {
	v, ok := r.columns[name]
	return v, ok
}

// Flag returns a calendar flag; absent flags are false.
func (r *Row) Flag(name string) bool {
	return r.flags[name]
}

// Panel aligns several symbols onto one calendar: the sorted union of
// their dates.
type Panel struct {
	symbols []string
	rows    []*Row
}

// Align outer-joins the series into a panel. Symbol order follows the
// arguments.
func Align(series ...*Series) (*Panel, error) {
	if len(series) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no series to align")
	}

	p := &Panel{}
	byDate := make(map[time.Time]*Row)
	seen := make(map[string]bool)
	for _, s := range series {
		if seen[s.Symbol] {
			return nil, core.Errorf(core.ErrMalformedSeries, "duplicate symbol %s", s.Symbol)
		}
		seen[s.Symbol] = true
		p.symbols = append(p.symbols, s.Symbol)

		if err := s.ValidateOrder(); err != nil {
			return nil, err
		}
		for _, b := range s.Bars {
			row, ok := byDate[b.Date]
			if !ok {
				row = &Row{
					Date:    b.Date,
					fields:  make(map[string]map[string]float64),
					columns: make(map[string]float64),
					flags:   make(map[string]bool),
				}
				byDate[b.Date] = row
				p.rows = append(p.rows, row)
			}
			f := make(map[string]float64, len(core.PriceFields))
			for _, name := range core.PriceFields {
				f[name], _ = b.Field(name)
			}
			row.fields[s.Symbol] = f
		}
	}

	sort.Slice(p.rows, func(i, j int) bool { return p.rows[i].Date.Before(p.rows[j].Date) })
	return p, nil
}

// Symbols returns the panel symbols in alignment order.
func (p *Panel) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// Len returns the number of rows.
func (p *Panel) Len() int {
	return len(p.rows)
}

// Row returns row i.
func (p *Panel) Row(i int) *Row {
	return p.rows[i]
}

// Dates returns the calendar.
func (p *Panel) Dates() []time.Time {
	out := make([]time.Time, len(p.rows))
	for i, r := range p.rows {
		out[i] = r.Date
	}
	return out
}

// SymbolColumn returns field of symbol for every row, NaN where absent.
func (p *Panel) SymbolColumn(symbol, field string) []float64 {
	out := make([]float64, len(p.rows))
	for i, r := range p.rows {
		v, ok := r.Value(symbol, field)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// IndicatorFunc computes an output column from an input column. It must
// return a slice of the same length and use only values at or before each
// index.
type IndicatorFunc func(dates []time.Time, values []float64) []float64

// Unary adapts a function of the values alone.
func Unary(fn func(values []float64) []float64) IndicatorFunc {
	return func(_ []time.Time, values []float64) []float64 {
		return fn(values)
	}
}

// AddIndicator computes output from input over the rows where symbol has a
// bar and stores it as a per-symbol field.
func (p *Panel) AddIndicator(symbol, input, output string, fn IndicatorFunc) error {
	var rows []*Row
	var dates []time.Time
	var values []float64
	for _, r := range p.rows {
		v, ok := r.Value(symbol, input)
		if !ok {
			continue
		}
		rows = append(rows, r)
		dates = append(dates, r.Date)
		values = append(values, v)
	}
	if len(rows) == 0 {
		return core.Errorf(core.ErrSymbolNotFound, "%s has no %s values", symbol, input)
	}

	out := fn(dates, values)
	if len(out) != len(rows) {
		return fmt.Errorf("indicator %s for %s returned %d values, want %d", output, symbol, len(out), len(rows))
	}
	for i, r := range rows {
		r.fields[symbol][output] = out[i]
	}
	return nil
}

// SetColumn stores a row-wide column.
func (p *Panel) SetColumn(name string, values []float64) error {
	if len(values) != len(p.rows) {
		return fmt.Errorf("column %s has %d values, want %d", name, len(values), len(p.rows))
	}
	for i, r := range p.rows {
		r.columns[name] = values[i]
	}
	return nil
}

// SetFlag stores a calendar flag.
func (p *Panel) SetFlag(name string, values []bool) error {
	if len(values) != len(p.rows) {
		return fmt.Errorf("flag %s has %d values, want %d", name, len(values), len(p.rows))
	}
	for i, r := range p.rows {
		r.flags[name] = values[i]
	}
	return nil
}

// Finalize drops the rows before the first row on or after start where
// every symbol has a bar and every field and column is finite, and returns
// that row's date as the effective start. A non-finite price on a later row
// is fatal.
func (p *Panel) Finalize(start time.Time) (time.Time, error) {
	first := -1
	for i, r := range p.rows {
		if r.Date.Before(start) {
			continue
		}
		if p.complete(r) {
			first = i
			break
		}
	}
	if first < 0 {
		return time.Time{}, core.Errorf(core.ErrNoData,
			"no complete row on or after %s", start.Format(core.DateLayout))
	}
	p.rows = p.rows[first:]

	for _, r := range p.rows {
		for _, sym := range p.symbols {
			f, ok := r.fields[sym]
			if !ok {
				continue
			}
			for _, name := range []string{"open", "high", "low", "close"} {
				if v := f[name]; !finite(v) {
					return time.Time{}, core.Errorf(core.ErrMalformedSeries,
						"%s: non-finite %s=%v on %s", sym, name, v, r.Date.Format(core.DateLayout))
				}
			}
		}
	}
	return p.rows[0].Date, nil
}

func (p *Panel) complete(r *Row) bool {
	for _, sym := range p.symbols {
		f, ok := r.fields[sym]
		if !ok {
			return false
		}
		for _, v := range f {
			if !finite(v) {
				return false
			}
		}
	}
	for _, v := range r.columns {
		if !finite(v) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
