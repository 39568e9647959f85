// Package indicator computes causal indicator columns: every output value
// depends only on inputs at or before its index. Values inside the warm-up
// window are NaN.
package indicator

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
)

func nanWarmup(out []float64, period int) []float64 {
	for i := 0; i < period-1 && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA calculates Simple Moving Average
func SMA(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nans(len(values))
	}
	if period == 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	return nanWarmup(talib.Sma(values, period), period)
}

// RollingMax returns the highest value of the trailing period bars.
func RollingMax(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nans(len(values))
	}
	return nanWarmup(talib.Max(values, period), period)
}

// RollingMin returns the lowest value of the trailing period bars.
func RollingMin(values []float64, period int) []float64 {
	if period < 1 || len(values) < period {
		return nans(len(values))
	}
	return nanWarmup(talib.Min(values, period), period)
}

// Crossover returns a regime filter: 1 while the fast moving average is
// above the slow one, -1 otherwise. A fast period of 1 compares price to
// the slow average.
func Crossover(values []float64, fast, slow int) []float64 {
	f := SMA(values, fast)
	s := SMA(values, slow)
	out := make([]float64, len(values))
	for i := range values {
		switch {
		case math.IsNaN(f[i]) || math.IsNaN(s[i]):
			out[i] = math.NaN()
		case f[i] > s[i]:
			out[i] = 1
		default:
			out[i] = -1
		}
	}
	return out
}

// Momentum returns the fractional change of each value against the last
// value dated at least months calendar months earlier.
func Momentum(dates []time.Time, values []float64, months int) []float64 {
	out := nans(len(values))
	for i := range values {
		target := dates[i].AddDate(0, -months, 0)
		j := sort.Search(i+1, func(k int) bool { return dates[k].After(target) }) - 1
		if j < 0 || values[j] == 0 {
			continue
		}
		out[i] = values[i]/values[j] - 1
	}
	return out
}
