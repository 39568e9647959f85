package portfolio

import (
	"math"
	"sort"

	"github.com/newthinker/tradesim/internal/core"
)

// Weights is a fixed set of symbols with target weights, iterated in the
// order the symbols were given.
type Weights struct {
	keys []string
	vals map[string]float64
}

// NewWeights creates zero weights for symbols.
func NewWeights(symbols ...string) *Weights {
	w := &Weights{vals: make(map[string]float64, len(symbols))}
	for _, s := range symbols {
		if _, ok := w.vals[s]; ok {
			continue
		}
		w.keys = append(w.keys, s)
		w.vals[s] = 0
	}
	return w
}

// Set assigns the weight of symbol, which must be in the set.
func (w *Weights) Set(symbol string, weight float64) error {
	if _, ok := w.vals[symbol]; !ok {
		return core.Errorf(core.ErrSymbolNotFound, "weight for %s", symbol)
	}
	w.vals[symbol] = weight
	return nil
}

// Get returns the weight of symbol, zero when absent.
func (w *Weights) Get(symbol string) float64 {
	return w.vals[symbol]
}

// Symbols returns the symbols in iteration order.
func (w *Weights) Symbols() []string {
	out := make([]string, len(w.keys))
	copy(out, w.keys)
	return out
}

// Reset sets every weight to zero.
func (w *Weights) Reset() {
	for k := range w.vals {
		w.vals[k] = 0
	}
}

// Sum returns the total weight.
func (w *Weights) Sum() float64 {
	var s float64
	for _, k := range w.keys {
		s += w.vals[k]
	}
	return s
}

// Score is a ranking input.
type Score struct {
	Symbol string
	Value  float64
}

// Rank orders scores by value descending, ties broken by symbol ascending.
// NaN scores sort last.
func Rank(scores []Score) []Score {
	out := make([]Score, len(scores))
	copy(out, scores)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, bn := math.IsNaN(a.Value), math.IsNaN(b.Value)
		switch {
		case an != bn:
			return bn
		case !an && a.Value != b.Value:
			return a.Value > b.Value
		}
		return a.Symbol < b.Symbol
	})
	return out
}

// TopN returns the symbols of the n best finite scores.
func TopN(scores []Score, n int) []string {
	var out []string
	for _, s := range Rank(scores) {
		if len(out) == n || math.IsNaN(s.Value) {
			break
		}
		out = append(out, s.Symbol)
	}
	return out
}
