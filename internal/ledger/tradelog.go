package ledger

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/core"
)

// TradeLog is the ledger of one symbol: its open lots, the closed legs and
// the raw fill events. Each Buy opens a new lot; sells close lots oldest
// first.
type TradeLog struct {
	symbol     string
	direction  core.Direction
	account    *Account
	commission Commission
	logger     *zap.Logger

	open   []*Position
	closed []Trade
	raw    []RawEntry
	nextID int
	round  int
}

// Option configures a TradeLog.
type Option func(*TradeLog)

// WithLogger sets the logger used for local recoveries.
func WithLogger(l *zap.Logger) Option {
	return func(t *TradeLog) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithDirection sets the side the log trades. Buy on a short log sells
// short and Sell buys to cover.
func WithDirection(d core.Direction) Option {
	return func(t *TradeLog) {
		t.direction = d
	}
}

// WithCommission sets the fixed commission policy.
func WithCommission(c Commission) Option {
	return func(t *TradeLog) {
		t.commission = c
	}
}

// NewTradeLog creates a trade log for symbol drawing on account.
func NewTradeLog(symbol string, account *Account, opts ...Option) *TradeLog {
	t := &TradeLog{
		symbol:    symbol,
		direction: core.Long,
		account:   account,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Symbol returns the traded symbol.
func (t *TradeLog) Symbol() string { return t.symbol }

// Direction returns the side of the log.
func (t *TradeLog) Direction() core.Direction { return t.direction }

// Account returns the shared account.
func (t *TradeLog) Account() *Account { return t.account }

// CalcBuyingPower returns the maximum notional still purchasable on the
// shared account without violating the margin limit.
func (t *TradeLog) CalcBuyingPower() float64 {
	return t.account.BuyingPower()
}

// CalcShares returns the whole number of shares cash can buy at price.
// The notional of the result never exceeds cash.
func (t *TradeLog) CalcShares(price, cash float64) int {
	return calcShares(price, cash)
}

// tradable reports whether price can fill an order: positive and finite.
func tradable(price float64) bool {
	return price > 0 && !math.IsInf(price, 1)
}

func calcShares(price, cash float64) int {
	if price <= 0 || cash <= 0 || math.IsNaN(price) || math.IsNaN(cash) {
		return 0
	}
	n := int(math.Floor(cash / price))
	for n > 0 && float64(n)*price > cash {
		n--
	}
	return n
}

// MaxShares returns the largest fill Buy would accept at price, after
// commission.
func (t *TradeLog) MaxShares(price float64) int {
	if !tradable(price) {
		return 0
	}
	bp := t.account.buyingPower()
	if !bp.IsPositive() {
		return 0
	}
	m := t.account.margin
	p := decimal.NewFromFloat(price)
	num := bp.Sub(m.Mul(decimal.NewFromFloat(t.commission.PerTrade)))
	den := p.Add(m.Mul(decimal.NewFromFloat(t.commission.PerShare)))
	if !num.IsPositive() {
		return 0
	}
	n := num.Div(den).Floor().IntPart()
	for n > 0 && !t.affordable(int(n), p, bp) {
		n--
	}
	return int(n)
}

func (t *TradeLog) affordable(shares int, price, bp decimal.Decimal) bool {
	cost := price.Mul(decimal.NewFromInt(int64(shares)))
	return cost.Add(t.account.margin.Mul(t.commission.fee(shares))).LessThanOrEqual(bp)
}

// CheckBuy returns ErrInsufficientBuyingPower when a buy of shares at price
// would be clamped. Callers that treat clamping as fatal check first.
func (t *TradeLog) CheckBuy(price float64, shares int) error {
	if limit := t.MaxShares(price); shares > limit {
		return core.Errorf(core.ErrInsufficientBuyingPower,
			"%s: %d shares @ %.2f requested, %d affordable", t.symbol, shares, price, limit)
	}
	return nil
}

// Buy opens a new lot of shares at price and returns the shares filled. A
// request larger than the buying power is clamped to the affordable count.
// Zero or negative requests and non-finite prices fill nothing.
func (t *TradeLog) Buy(date time.Time, price float64, shares int) int {
	if shares <= 0 || !tradable(price) {
		t.logger.Debug("buy ignored",
			zap.Time("date", date), zap.String("symbol", t.symbol),
			zap.Float64("price", price), zap.Int("requested", shares))
		return 0
	}

	requested := shares
	if limit := t.MaxShares(price); shares > limit {
		t.logger.Debug("buy clamped",
			zap.String("reason", core.ErrInsufficientBuyingPower.Code),
			zap.Time("date", date), zap.String("symbol", t.symbol),
			zap.Float64("price", price), zap.Int("requested", shares), zap.Int("filled", limit))
		shares = limit
	}
	if shares == 0 {
		return 0
	}

	if len(t.open) == 0 {
		t.round++
	}
	t.nextID++
	t.open = append(t.open, &Position{
		ID:         t.nextID,
		Symbol:     t.symbol,
		Direction:  t.direction,
		EntryDate:  date,
		EntryPrice: price,
		Shares:     shares * t.direction.Sign(),
		round:      t.round,
	})

	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(shares)))
	fee := t.commission.fee(shares)
	t.account.open(cost, fee)

	t.raw = append(t.raw, RawEntry{
		Seq:        t.account.nextSeq(),
		Date:       date,
		Symbol:     t.symbol,
		Action:     core.ActionBuy,
		Direction:  t.direction,
		Price:      price,
		Shares:     shares,
		Requested:  requested,
		Commission: fee.InexactFloat64(),
		Cash:       t.account.Cash(),
	})
	return shares
}

// SellAll closes every open lot at price and returns the shares filled.
func (t *TradeLog) SellAll(date time.Time, price float64) int {
	return t.Sell(date, price, t.Quantity())
}

// Sell closes shares at price, oldest lot first, and returns the shares
// filled. A partial sell reduces the oldest lot in place and records the
// closed portion as its own leg. Selling with nothing open fills nothing.
func (t *TradeLog) Sell(date time.Time, price float64, shares int) int {
	if len(t.open) == 0 {
		t.logger.Debug("sell ignored",
			zap.String("reason", core.ErrNoOpenPosition.Code),
			zap.Time("date", date), zap.String("symbol", t.symbol))
		return 0
	}
	if shares <= 0 || !tradable(price) {
		t.logger.Debug("sell ignored",
			zap.Time("date", date), zap.String("symbol", t.symbol),
			zap.Float64("price", price), zap.Int("requested", shares))
		return 0
	}

	requested := shares
	if held := t.Quantity(); shares > held {
		shares = held
	}

	exit := decimal.NewFromFloat(price)
	cost := decimal.Zero
	pnl := decimal.Zero
	remaining := shares
	sign := t.direction.Sign()

	for remaining > 0 {
		lot := t.open[0]
		n := min(remaining, lot.Quantity())
		entry := decimal.NewFromFloat(lot.EntryPrice)
		qty := decimal.NewFromInt(int64(n))

		legCost := entry.Mul(qty)
		legPnL := exit.Sub(entry).Mul(qty).Mul(decimal.NewFromInt(int64(sign)))
		cost = cost.Add(legCost)
		pnl = pnl.Add(legPnL)

		t.closed = append(t.closed, Trade{
			Symbol:     t.symbol,
			Direction:  t.direction,
			EntryDate:  lot.EntryDate,
			EntryPrice: lot.EntryPrice,
			ExitDate:   date,
			ExitPrice:  price,
			Shares:     n * sign,
			PnL:        legPnL.InexactFloat64(),
			PctReturn:  legPnL.Div(legCost).InexactFloat64(),
			RoundTrip:  lot.round,
		})

		lot.Shares -= n * sign
		if lot.Shares == 0 {
			t.open = t.open[1:]
		}
		remaining -= n
	}

	fee := t.commission.fee(shares)
	t.account.close(cost, pnl, fee)

	t.raw = append(t.raw, RawEntry{
		Seq:        t.account.nextSeq(),
		Date:       date,
		Symbol:     t.symbol,
		Action:     core.ActionSell,
		Direction:  t.direction,
		Price:      price,
		Shares:     shares,
		Requested:  requested,
		Commission: fee.InexactFloat64(),
		PnL:        pnl.InexactFloat64(),
		Cash:       t.account.Cash(),
	})
	return shares
}

// NumOpenTrades returns the number of open lots.
func (t *TradeLog) NumOpenTrades() int {
	return len(t.open)
}

// Shares returns the signed share count held across open lots.
func (t *TradeLog) Shares() int {
	var n int
	for _, p := range t.open {
		n += p.Shares
	}
	return n
}

// Quantity returns the unsigned share count held.
func (t *TradeLog) Quantity() int {
	return abs(t.Shares())
}

// CostBasis returns the entry notional of the open lots.
func (t *TradeLog) CostBasis() float64 {
	var c float64
	for _, p := range t.open {
		c += p.CostBasis()
	}
	return c
}

// Value returns the mark-to-market value of the open lots at price.
func (t *TradeLog) Value(price float64) float64 {
	var v float64
	for _, p := range t.open {
		v += p.Value(price)
	}
	return v
}

// Equity returns account cash plus this log's open value at price. It is
// the account equity when the log is the only one on its account.
func (t *TradeLog) Equity(price float64) float64 {
	return t.account.Cash() + t.Value(price)
}

// RecordDailyBalance appends the account balance marked at the bar's high,
// low and close to d. It is meant for single-symbol runs.
func (t *TradeLog) RecordDailyBalance(d *DailyBal, date time.Time, high, low, last float64) error {
	hi, lo := t.Equity(high), t.Equity(low)
	if lo > hi {
		hi, lo = lo, hi
	}
	return d.Append(date, hi, lo, t.Equity(last))
}

// OpenPositions returns a copy of the open lots, oldest first.
func (t *TradeLog) OpenPositions() []Position {
	out := make([]Position, len(t.open))
	for i, p := range t.open {
		out[i] = *p
	}
	return out
}

// LogRaw returns the fill events in the order they happened.
func (t *TradeLog) LogRaw() []RawEntry {
	out := make([]RawEntry, len(t.raw))
	copy(out, t.raw)
	return out
}

// Log returns the closed legs, or one record per round trip when merge is
// true.
func (t *TradeLog) Log(merge bool) []Trade {
	if merge {
		return MergeTrades(t.closed)
	}
	out := make([]Trade, len(t.closed))
	copy(out, t.closed)
	return out
}
