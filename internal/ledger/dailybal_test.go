package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

func TestDailyBal_AppendMonotonic(t *testing.T) {
	d := NewDailyBal()
	base := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	if err := d.Append(base, 101, 99, 100); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := d.Append(base, 101, 99, 100); !errors.Is(err, core.ErrMalformedSeries) {
		t.Errorf("duplicate date error = %v, want ErrMalformedSeries", err)
	}
	if err := d.Append(base.AddDate(0, 0, -1), 101, 99, 100); !errors.Is(err, core.ErrMalformedSeries) {
		t.Errorf("earlier date error = %v, want ErrMalformedSeries", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

func TestDailyBal_Drawdown(t *testing.T) {
	d := NewDailyBal()
	base := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, eq := range []float64{100, 110, 99, 120, 90} {
		if err := d.Append(base.AddDate(0, 0, i), eq, eq, eq); err != nil {
			t.Fatal(err)
		}
	}

	log := d.Log()
	want := []float64{0, 0, -0.1, 0, -0.25}
	for i, w := range want {
		if diff := log[i].Drawdown - w; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("row %d drawdown = %f, want %f", i, log[i].Drawdown, w)
		}
	}
}

func TestDailyBal_BarsHeld(t *testing.T) {
	d := NewDailyBal()
	base := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		// skip a weekend-like gap so bars differ from calendar days
		date := base.AddDate(0, 0, i)
		if i >= 5 {
			date = date.AddDate(0, 0, 2)
		}
		_ = d.Append(date, 1, 1, 1)
	}

	trades := []Trade{
		{EntryDate: base, ExitDate: base.AddDate(0, 0, 9)},
		{EntryDate: base.AddDate(0, 0, 2), ExitDate: base.AddDate(0, 0, 2)},
	}
	got := d.BarsHeld(trades)
	if got[0].BarsHeld != 7 {
		t.Errorf("BarsHeld = %d, want 7", got[0].BarsHeld)
	}
	if got[1].BarsHeld != 0 {
		t.Errorf("same-day BarsHeld = %d, want 0", got[1].BarsHeld)
	}
	if trades[0].BarsHeld != 0 {
		t.Error("BarsHeld must not mutate its input")
	}
}
