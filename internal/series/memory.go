package series

import (
	"context"

	"github.com/newthinker/tradesim/internal/core"
)

// MemorySource serves series held in memory, keyed by symbol.
type MemorySource map[string]*Series

// FetchHistory returns a copy of the stored series.
func (m MemorySource) FetchHistory(ctx context.Context, symbol string) (*Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m[symbol]
	if !ok {
		return nil, core.Errorf(core.ErrSymbolNotFound, "%s", symbol)
	}
	out := &Series{Symbol: symbol, Bars: make([]core.Bar, len(s.Bars))}
	copy(out.Bars, s.Bars)
	if err := out.ValidateOrder(); err != nil {
		return nil, err
	}
	return out, nil
}
