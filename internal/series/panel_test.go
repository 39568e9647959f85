package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

func TestAlign_OuterJoin(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2, 3, 4)
	b := makeSeries("BBB", date(2020, 1, 3), 10, 20, 30, 40)

	p, err := Align(a, b)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if p.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", p.Len())
	}
	if got := p.Symbols(); got[0] != "AAA" || got[1] != "BBB" {
		t.Errorf("Symbols() = %v", got)
	}

	first := p.Row(0)
	if first.Has("BBB") {
		t.Error("BBB should be absent on the first date")
	}
	if v, ok := first.Value("AAA", "close"); !ok || v != 1 {
		t.Errorf("AAA close = %v, %v", v, ok)
	}
	if _, ok := p.Row(5).Value("AAA", "close"); ok {
		t.Error("AAA should be absent on the last date")
	}

	col := p.SymbolColumn("BBB", "close")
	if !math.IsNaN(col[0]) || col[2] != 10 {
		t.Errorf("SymbolColumn = %v", col)
	}
}

func TestAlign_DuplicateSymbol(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2)
	if _, err := Align(a, a); !errors.Is(err, core.ErrMalformedSeries) {
		t.Errorf("error = %v, want ErrMalformedSeries", err)
	}
}

func TestPanel_AddIndicator(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2, 3, 4, 5)
	b := makeSeries("BBB", date(2020, 1, 3), 10, 20, 30)
	p, _ := Align(a, b)

	var gotLen int
	cumsum := func(_ []time.Time, v []float64) []float64 {
		gotLen = len(v)
		out := make([]float64, len(v))
		var s float64
		for i, x := range v {
			s += x
			out[i] = s
		}
		return out
	}
	if err := p.AddIndicator("BBB", "close", "cum", cumsum); err != nil {
		t.Fatal(err)
	}
	if gotLen != 3 {
		t.Errorf("indicator saw %d values, want only BBB's 3 bars", gotLen)
	}
	if v, _ := p.Row(4).Value("BBB", "cum"); v != 60 {
		t.Errorf("cum = %v, want 60", v)
	}

	if err := p.AddIndicator("ZZZ", "close", "cum", cumsum); !errors.Is(err, core.ErrSymbolNotFound) {
		t.Errorf("error = %v, want ErrSymbolNotFound", err)
	}
}

func TestPanel_Finalize(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2, 3, 4, 5, 6)
	p, _ := Align(a)
	warm := func(_ []time.Time, v []float64) []float64 {
		out := make([]float64, len(v))
		for i := range v {
			out[i] = math.NaN()
			if i >= 2 {
				out[i] = v[i]
			}
		}
		return out
	}
	if err := p.AddIndicator("AAA", "close", "warm", warm); err != nil {
		t.Fatal(err)
	}
	if err := p.SetColumn("regime", []float64{1, 1, 1, math.NaN(), 1, 1}); err != nil {
		t.Fatal(err)
	}

	start, err := p.Finalize(date(2020, 1, 1))
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if want := date(2020, 1, 3); !start.Equal(want) {
		t.Errorf("start = %s, want %s", start, want)
	}
	if p.Len() != 4 {
		t.Errorf("Len() = %d, want 4", p.Len())
	}
}

func TestPanel_Finalize_NonFinitePriceAfterStart(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2, 3, 4)
	a.Bars[2].Close = math.NaN()
	p, _ := Align(a)

	_, err := p.Finalize(date(2020, 1, 1))
	if !errors.Is(err, core.ErrMalformedSeries) {
		t.Errorf("error = %v, want ErrMalformedSeries", err)
	}
}

func TestPanel_Finalize_NoCompleteRow(t *testing.T) {
	a := makeSeries("AAA", date(2020, 1, 1), 1, 2)
	p, _ := Align(a)
	if _, err := p.Finalize(date(2021, 1, 1)); !errors.Is(err, core.ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestPanel_SetFlagLength(t *testing.T) {
	p, _ := Align(makeSeries("AAA", date(2020, 1, 1), 1, 2))
	if err := p.SetFlag("first_dotm", []bool{true}); err == nil {
		t.Error("expected length error")
	}
	if err := p.SetFlag("first_dotm", []bool{true, false}); err != nil {
		t.Fatal(err)
	}
	if !p.Row(0).Flag("first_dotm") || p.Row(1).Flag("first_dotm") {
		t.Error("flags not stored")
	}
}
