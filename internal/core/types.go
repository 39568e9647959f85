package core

import (
	"math"
	"time"
)

// DateLayout is the day-precision layout used for bar dates in files and logs.
const DateLayout = "2006-01-02"

// Bar represents one dated OHLC price record for a symbol.
type Bar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	AdjClose float64
}

// IsFinite reports whether all price fields are finite numbers.
func (b Bar) IsFinite() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Field returns the named price field using the lower-case column names of
// the price source.
func (b Bar) Field(name string) (float64, bool) {
	switch name {
	case "open":
		return b.Open, true
	case "high":
		return b.High, true
	case "low":
		return b.Low, true
	case "close":
		return b.Close, true
	case "volume":
		return b.Volume, true
	case "adj_close":
		return b.AdjClose, true
	}
	return 0, false
}

// PriceFields lists the bar columns every aligned row carries per symbol.
var PriceFields = []string{"open", "high", "low", "close", "volume", "adj_close"}

// Action represents a fill event in the raw trade log
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Direction is the side a trade log holds.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() int {
	if d == Short {
		return -1
	}
	return 1
}
