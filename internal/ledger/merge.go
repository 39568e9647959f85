package ledger

// MergeTrades collapses closed legs into one record per round trip. A round
// trip runs from the first lot opened while flat to the sell that returns
// the symbol to flat. Entry and exit prices are share-weighted; P&L is the
// sum of the legs, so the merged log always reconciles to the raw legs.
func MergeTrades(legs []Trade) []Trade {
	type key struct {
		symbol string
		round  int
	}

	var order []key
	groups := make(map[key][]Trade)
	for _, leg := range legs {
		k := key{leg.Symbol, leg.RoundTrip}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], leg)
	}

	merged := make([]Trade, 0, len(order))
	for _, k := range order {
		merged = append(merged, mergeGroup(groups[k]))
	}
	return merged
}

func mergeGroup(legs []Trade) Trade {
	out := legs[0]
	var qty int
	var entryNotional, exitNotional, pnl float64

	for _, leg := range legs {
		n := abs(leg.Shares)
		qty += n
		entryNotional += float64(n) * leg.EntryPrice
		exitNotional += float64(n) * leg.ExitPrice
		pnl += leg.PnL
		if leg.EntryDate.Before(out.EntryDate) {
			out.EntryDate = leg.EntryDate
		}
		if leg.ExitDate.After(out.ExitDate) {
			out.ExitDate = leg.ExitDate
		}
		if leg.BarsHeld > out.BarsHeld {
			out.BarsHeld = leg.BarsHeld
		}
	}

	out.Shares = qty * out.Direction.Sign()
	out.EntryPrice = entryNotional / float64(qty)
	out.ExitPrice = exitNotional / float64(qty)
	out.PnL = pnl
	out.PctReturn = 0
	if entryNotional != 0 {
		out.PctReturn = pnl / entryNotional
	}
	return out
}
