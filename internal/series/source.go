package series

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Source supplies historical daily bars for a symbol.
type Source interface {
	FetchHistory(ctx context.Context, symbol string) (*Series, error)
}

// CSVSource reads <dir>/<SYMBOL>.csv files in the Yahoo daily layout
// (Date,Open,High,Low,Close,Adj Close,Volume).
type CSVSource struct {
	dir string
}

// NewCSVSource creates a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// NormalizeSymbol maps a strategy symbol to its data file name: upper case,
// '.' replaced by '-', and any '_SUFFIX' (e.g. SPY_SHRT) removed.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.ReplaceAll(symbol, ".", "-"))
	if i := strings.Index(symbol, "_"); i > 0 {
		symbol = symbol[:i]
	}
	return symbol
}

// FetchHistory loads the bars of symbol and checks their date order. The returned series
// keeps the symbol as requested so suffixed aliases stay distinct.
func (c *CSVSource) FetchHistory(ctx context.Context, symbol string) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(c.dir, NormalizeSymbol(symbol)+".csv")
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.Errorf(core.ErrSymbolNotFound, "%s: %s", symbol, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadCSV(f, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateOrder(); err != nil {
		return nil, err
	}
	return s, nil
}

// columnName lower-cases a header and replaces spaces with underscores.
func columnName(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// ReadCSV parses daily bars. Rows are kept in file order; Validate checks
// ordering. Empty or "null" cells parse as NaN.
func ReadCSV(r io.Reader, symbol string) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, core.Errorf(core.ErrNoData, "%s: reading header: %v", symbol, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[columnName(h)] = i
	}
	for _, col := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := idx[col]; !ok {
			return nil, core.Errorf(core.ErrMalformedSeries, "%s: missing column %q", symbol, col)
		}
	}

	s := &Series{Symbol: symbol}
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, core.Errorf(core.ErrMalformedSeries, "%s: line %d: %v", symbol, line, err)
		}

		date, err := time.Parse(core.DateLayout, field(rec, idx, "date"))
		if err != nil {
			return nil, core.Errorf(core.ErrMalformedSeries, "%s: line %d: %v", symbol, line, err)
		}
		b := core.Bar{
			Date:     date,
			Open:     number(rec, idx, "open"),
			High:     number(rec, idx, "high"),
			Low:      number(rec, idx, "low"),
			Close:    number(rec, idx, "close"),
			Volume:   number(rec, idx, "volume"),
			AdjClose: number(rec, idx, "adj_close"),
		}
		if _, ok := idx["adj_close"]; !ok {
			b.AdjClose = b.Close
		}
		if _, ok := idx["volume"]; !ok {
			b.Volume = 0
		}
		s.Bars = append(s.Bars, b)
	}

	if len(s.Bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "%s: no rows", symbol)
	}
	return s, nil
}

func field(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func number(rec []string, idx map[string]int, name string) float64 {
	v, err := strconv.ParseFloat(field(rec, idx, name), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
