// Package report renders backtest results as CSV and JSON and archives
// them to artifact storage.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
)

var (
	rawHeader    = []string{"seq", "date", "symbol", "action", "direction", "price", "shares", "requested", "commission", "pnl", "cash"}
	tradesHeader = []string{"round_trip", "symbol", "direction", "entry_date", "entry_price", "exit_date", "exit_price", "shares", "pnl", "pct_return", "bars_held"}
	equityHeader = []string{"date", "high", "low", "equity", "drawdown"}
)

// WriteRaw writes the fill-by-fill log.
func WriteRaw(w io.Writer, raw []ledger.RawEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rawHeader); err != nil {
		return err
	}
	for _, e := range raw {
		cw.Write([]string{
			strconv.Itoa(e.Seq),
			e.Date.Format(core.DateLayout),
			e.Symbol,
			string(e.Action),
			string(e.Direction),
			f(e.Price),
			strconv.Itoa(e.Shares),
			strconv.Itoa(e.Requested),
			f(e.Commission),
			f(e.PnL),
			f(e.Cash),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrades writes one row per trade, raw legs or merged round trips.
func WriteTrades(w io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradesHeader); err != nil {
		return err
	}
	for _, t := range trades {
		cw.Write([]string{
			strconv.Itoa(t.RoundTrip),
			t.Symbol,
			string(t.Direction),
			t.EntryDate.Format(core.DateLayout),
			f(t.EntryPrice),
			t.ExitDate.Format(core.DateLayout),
			f(t.ExitPrice),
			strconv.Itoa(t.Shares),
			f(t.PnL),
			f(t.PctReturn),
			strconv.Itoa(t.BarsHeld),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquity writes the daily balance curve.
func WriteEquity(w io.Writer, rows []ledger.EquityRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, r := range rows {
		cw.Write([]string{
			r.Date.Format(core.DateLayout),
			f(r.High),
			f(r.Low),
			f(r.Equity),
			f(r.Drawdown),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetrics writes the stats as a JSON object in MetricNames order.
// Undefined metrics are null.
func WriteMetrics(w io.Writer, stats backtest.Stats) error {
	m := stats.Map()
	var b strings.Builder
	b.WriteString("{\n")
	for i, name := range backtest.MetricNames {
		v, err := json.Marshal(m[name])
		if err != nil {
			return fmt.Errorf("metric %s: %w", name, err)
		}
		fmt.Fprintf(&b, "  %q: %s", name, v)
		if i < len(backtest.MetricNames)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSummary writes a metric × strategy table as CSV.
func WriteSummary(w io.Writer, s *backtest.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"metric"}, s.Strategies...)); err != nil {
		return err
	}
	for i, metric := range s.Metrics {
		row := []string{metric}
		for _, v := range s.Values[i] {
			row = append(row, cell(v))
		}
		cw.Write(row)
	}
	cw.Flush()
	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return f(x)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func f(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}
