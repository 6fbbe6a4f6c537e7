// Package engine is the market-making and order-matching core. It owns
// all mutating state: per-symbol order books, the maker's inventory, and
// spread configuration. Every mutation for a symbol passes through that
// symbol's desk lock, so the engine is logically single-threaded per
// symbol while cross-symbol operations run in parallel.
package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/book"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/instrument"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/inventory"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/marketdata"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/quote"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/util"
)

// Config tunes engine-wide behavior. Per-symbol parameters live in each
// symbol's SpreadConfig.
type Config struct {
	// MaxMovePerTickBps bounds the simulator's random walk per tick.
	MaxMovePerTickBps int64
	// TapeDepth is how many recent trades are kept per symbol.
	TapeDepth int
	// Seed makes the random walk deterministic when non-zero.
	Seed int64
}

// DefaultConfig returns the engine defaults used by the daemon.
func DefaultConfig() Config {
	return Config{MaxMovePerTickBps: 75, TapeDepth: 50}
}

// desk is one symbol's combined (book, inventory, spread config) triple.
// mu is the symbol's single-writer lock: submit, cancel, config updates
// and simulator ticks all serialize through it.
type desk struct {
	mu sync.Mutex

	inst  instrument.Instrument
	book  *book.Book
	cfg   quote.SpreadConfig
	pos   *inventory.Position
	quote quote.Quote

	refPrice  decimal.Decimal // random-walk anchor for quoting
	lastPrice decimal.Decimal // most recent fill, or refPrice after a tick

	resting map[string]*restingInfo // resting order id -> info
}

type restingInfo struct {
	order    Order
	original int64
}

// Engine is an explicitly constructed instance owned by whatever embeds
// it; there is no ambient global.
type Engine struct {
	log         *zap.SugaredLogger
	cfg         Config
	clock       util.Clock
	instruments *instrument.Registry
	md          *marketdata.Publisher

	seq atomic.Uint64

	mu    sync.RWMutex
	desks map[string]*desk

	idxMu    sync.RWMutex
	orderIdx map[string]string // resting order id -> symbol, for cancel routing

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(log *zap.SugaredLogger, cfg Config, clock util.Clock) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if cfg.MaxMovePerTickBps <= 0 {
		cfg.MaxMovePerTickBps = DefaultConfig().MaxMovePerTickBps
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &Engine{
		log:         log,
		cfg:         cfg,
		clock:       clock,
		instruments: instrument.NewRegistry(),
		md:          marketdata.NewPublisher(cfg.TapeDepth),
		desks:       make(map[string]*desk),
		orderIdx:    make(map[string]string),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// MarketData exposes the publisher so embedders can read snapshots and
// subscribe to the stream.
func (e *Engine) MarketData() *marketdata.Publisher { return e.md }

// Instruments exposes the registry for read-only metadata lookups.
func (e *Engine) Instruments() *instrument.Registry { return e.instruments }

// AddInstrument lists a symbol: registers its metadata, opens a desk with
// flat inventory, and publishes the initial quote. Spread config is
// sanitized; adjustments are logged, never fatal.
func (e *Engine) AddInstrument(in instrument.Instrument, cfg quote.SpreadConfig) error {
	if err := e.instruments.Register(in); err != nil {
		return err
	}
	cfg.Symbol = in.Symbol
	cfg, notes := cfg.Sanitize()
	for _, n := range notes {
		e.log.Warnw("spread_config_adjusted", "symbol", in.Symbol, "adjustment", n)
	}

	d := &desk{
		inst:      in,
		book:      book.New(),
		cfg:       cfg,
		pos:       inventory.NewPosition(in.Symbol),
		refPrice:  in.OpeningPrice,
		lastPrice: in.OpeningPrice,
		resting:   make(map[string]*restingInfo),
	}
	d.quote = quote.Compute(cfg, d.refPrice, 0, in.TickSize)

	e.mu.Lock()
	e.desks[in.Symbol] = d
	e.mu.Unlock()

	e.publish(d)
	e.log.Infow("instrument_listed",
		"symbol", in.Symbol, "open", in.OpeningPrice, "tick", in.TickSize,
		"bid", d.quote.Bid, "ask", d.quote.Ask)
	return nil
}

func (e *Engine) desk(symbol string) (*desk, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.desks[symbol]
	return d, ok
}

func reject(o Order, err error) (MatchResult, error) {
	return MatchResult{
		OrderID:           o.ID,
		Status:            StatusRejected,
		RemainingQuantity: o.Quantity,
		Reason:            err.Error(),
	}, err
}

// Submit runs the full matching pass for one order: validation, the walk
// over real book levels, the maker's synthetic quote as final fallback
// liquidity, inventory and quote updates, remainder disposition, and the
// market data republish. Invalid orders are rejected before any state
// change.
func (e *Engine) Submit(o Order) (MatchResult, error) {
	if o.Quantity <= 0 {
		return reject(o, fmt.Errorf("%w: got %d", ErrInvalidQuantity, o.Quantity))
	}
	d, ok := e.desk(o.Symbol)
	if !ok {
		return reject(o, fmt.Errorf("%w: %q", ErrUnknownSymbol, o.Symbol))
	}
	if o.Kind == Limit && !o.LimitPrice.IsPositive() {
		return reject(o, fmt.Errorf("%w: got %s", ErrInvalidLimitPrice, o.LimitPrice))
	}

	o.ID = uuid.NewString()
	o.Seq = e.seq.Add(1)
	o.SubmittedAt = e.clock.Now()

	var limitTick int64
	if o.Kind == Limit {
		o.LimitPrice = d.inst.RoundToTick(o.LimitPrice)
		limitTick = d.inst.PriceToTicks(o.LimitPrice)
		if limitTick <= 0 {
			return reject(o, fmt.Errorf("%w: %s rounds below one tick", ErrInvalidLimitPrice, o.LimitPrice))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	res := MatchResult{OrderID: o.ID, RemainingQuantity: o.Quantity}
	remaining := o.Quantity

	takeBookFills := func(fills []book.Fill) {
		for _, f := range fills {
			res.Fills = append(res.Fills, Fill{
				Price:          d.inst.PriceFromTicks(f.PriceTick),
				Quantity:       f.Qty,
				CounterpartyID: f.RestingID,
			})
			e.settleRestingFill(d, f.RestingID)
		}
	}

	// Walkable liquidity in ascending distance from the order's limit:
	// real levels priced at or inside the maker's quote, then the maker's
	// synthetic quote up to its size. At equal prices the real book fills
	// first; the maker is fallback. Each maker fill moves inventory and
	// re-skews the quote, and a limit order keeps walking the refreshed
	// quote while its price still crosses it, so a remainder can only
	// rest strictly outside the maker's final quote. Market orders get a
	// single maker pass and surface any shortfall.
	makerDone := false
	for remaining > 0 {
		makerPrice := d.quote.Ask
		if o.Side == Sell {
			makerPrice = d.quote.Bid
		}
		makerTick := d.inst.PriceToTicks(makerPrice)

		makerOK := !makerDone
		if o.Kind == Limit {
			if o.Side == Buy {
				makerOK = makerPrice.LessThanOrEqual(o.LimitPrice)
			} else {
				makerOK = makerPrice.GreaterThanOrEqual(o.LimitPrice)
			}
		}

		bound := limitTick
		marketable := o.Kind == Market
		if makerOK {
			marketable = false
			bound = makerTick
			if o.Kind == Limit {
				if o.Side == Buy {
					bound = min64(limitTick, makerTick)
				} else {
					bound = max64(limitTick, makerTick)
				}
			}
		}

		fills, rem := d.book.Match(o.Side, remaining, bound, marketable)
		takeBookFills(fills)
		remaining = rem
		if remaining == 0 || !makerOK {
			break
		}

		take := min64(remaining, d.quote.Size)
		res.Fills = append(res.Fills, Fill{Price: makerPrice, Quantity: take, CounterpartyID: MakerID})
		remaining -= take
		makerDone = true

		// Taker buys -> maker sells, position decreases.
		delta := -take
		if o.Side == Sell {
			delta = take
		}
		e.applyMakerTrade(d, delta, makerPrice)
	}
	res.RemainingQuantity = remaining

	// Remainder disposition: limit remainders rest, market remainders
	// are surfaced as a shortfall, never queued.
	for _, f := range res.Fills {
		res.FilledQuantity += f.Quantity
	}
	switch {
	case remaining == 0:
		res.Status = StatusFilled
	case o.Kind == Limit:
		ro := &book.RestingOrder{ID: o.ID, Side: o.Side, PriceTick: limitTick, Qty: remaining, Seq: o.Seq}
		if err := d.book.Insert(ro); err != nil {
			// validated above; an insert failure here is an engine bug
			e.log.Errorw("resting_insert_failed", "order_id", o.ID, "err", err)
			return reject(o, err)
		}
		d.resting[o.ID] = &restingInfo{order: o, original: o.Quantity}
		e.idxMu.Lock()
		e.orderIdx[o.ID] = o.Symbol
		e.idxMu.Unlock()
		res.Resting = true
		if res.FilledQuantity > 0 {
			res.Status = StatusPartiallyFilled
		} else {
			res.Status = StatusResting
		}
	default: // market shortfall
		res.Reason = fmt.Sprintf("%s: %d of %d unfilled", ErrUnfilledRemainder, remaining, o.Quantity)
		if res.FilledQuantity > 0 {
			res.Status = StatusPartiallyFilled
		} else {
			res.Status = StatusRejected
		}
	}

	if res.FilledQuantity+res.RemainingQuantity != o.Quantity {
		e.log.Errorw("fill_conservation_violated",
			"order_id", o.ID, "filled", res.FilledQuantity,
			"remaining", res.RemainingQuantity, "quantity", o.Quantity)
	}

	// Tape and market data.
	now := e.clock.Now()
	for _, f := range res.Fills {
		d.lastPrice = f.Price
		e.md.RecordTrade(marketdata.Trade{
			ID:         uuid.NewString(),
			Symbol:     o.Symbol,
			Price:      f.Price,
			Quantity:   f.Quantity,
			TakerSide:  o.Side.String(),
			ExecutedAt: now,
		})
	}
	e.uncross(d)
	e.publish(d)

	e.log.Debugw("order_matched",
		"order_id", o.ID, "symbol", o.Symbol, "side", o.Side.String(), "kind", o.Kind.String(),
		"status", string(res.Status), "filled", res.FilledQuantity, "remaining", res.RemainingQuantity)

	if res.Status == StatusRejected {
		return res, ErrUnfilledRemainder
	}
	return res, nil
}

// applyMakerTrade moves inventory for a fill where the maker is the
// counterparty and recomputes the quote. delta is the change to the
// maker's net position. Requires d.mu held.
func (e *Engine) applyMakerTrade(d *desk, delta int64, price decimal.Decimal) {
	d.pos.Apply(delta, price)
	if d.cfg.MaxPosition > 0 && abs64(d.pos.NetPosition) > d.cfg.MaxPosition {
		e.log.Warnw("inventory_limit_breached",
			"symbol", d.inst.Symbol, "net_position", d.pos.NetPosition, "max", d.cfg.MaxPosition)
	}
	d.quote = quote.Compute(d.cfg, d.refPrice, d.pos.NetPosition, d.inst.TickSize)
}

// uncross lets the maker trade against resting orders its refreshed
// quote has crossed, at their resting price, until the book again sits
// strictly inside the quote. A resting order therefore fills the moment
// inventory skew or a reference move carries the maker's price through
// its limit, and no published snapshot ever shows a crossed top of
// book. Requires d.mu held.
func (e *Engine) uncross(d *desk) {
	for {
		askTick := d.inst.PriceToTicks(d.quote.Ask)
		if t, _, ok := d.book.BestBid(); ok && t >= askTick {
			fills, _ := d.book.Match(Sell, d.quote.Size, askTick, false)
			e.absorb(d, Sell, fills)
			continue
		}
		bidTick := d.inst.PriceToTicks(d.quote.Bid)
		if t, _, ok := d.book.BestAsk(); ok && t <= bidTick {
			fills, _ := d.book.Match(Buy, d.quote.Size, bidTick, false)
			e.absorb(d, Buy, fills)
			continue
		}
		return
	}
}

// absorb settles fills where the maker acted as the taker during an
// uncross pass. Requires d.mu held.
func (e *Engine) absorb(d *desk, makerSide Side, fills []book.Fill) {
	now := e.clock.Now()
	for _, f := range fills {
		e.settleRestingFill(d, f.RestingID)
		price := d.inst.PriceFromTicks(f.PriceTick)
		delta := f.Qty
		if makerSide == Sell {
			delta = -f.Qty
		}
		e.applyMakerTrade(d, delta, price)
		d.lastPrice = price
		e.md.RecordTrade(marketdata.Trade{
			ID:         uuid.NewString(),
			Symbol:     d.inst.Symbol,
			Price:      price,
			Quantity:   f.Qty,
			TakerSide:  makerSide.String(),
			ExecutedAt: now,
		})
	}
}

// settleRestingFill reconciles engine-side bookkeeping after a resting
// order was (partially) consumed during a match walk. Requires d.mu held.
func (e *Engine) settleRestingFill(d *desk, restingID string) {
	if _, still := d.book.Resting(restingID); still {
		return
	}
	delete(d.resting, restingID)
	e.idxMu.Lock()
	delete(e.orderIdx, restingID)
	e.idxMu.Unlock()
}

// Cancel removes a still-resting order. Returns false, with no state
// change, when the id is unknown or the order already terminated.
// Cancellation never produces fills or inventory changes.
func (e *Engine) Cancel(orderID string) bool {
	e.idxMu.RLock()
	symbol, ok := e.orderIdx[orderID]
	e.idxMu.RUnlock()
	if !ok {
		return false
	}
	d, ok := e.desk(symbol)
	if !ok {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.book.Remove(orderID) {
		return false
	}
	delete(d.resting, orderID)
	e.idxMu.Lock()
	delete(e.orderIdx, orderID)
	e.idxMu.Unlock()

	e.publish(d)
	e.log.Debugw("order_cancelled", "order_id", orderID, "symbol", symbol)
	return true
}

// Tick runs one simulator step: every symbol's reference price takes a
// bounded random move, the quote is recomputed, and market data is
// republished. The external scheduler owns the interval; each desk's
// lock keeps ticks serialized with in-flight submits for that symbol.
func (e *Engine) Tick() {
	e.mu.RLock()
	desks := make([]*desk, 0, len(e.desks))
	for _, d := range e.desks {
		desks = append(desks, d)
	}
	e.mu.RUnlock()

	maxMove := float64(e.cfg.MaxMovePerTickBps) / 10000.0
	for _, d := range desks {
		e.rngMu.Lock()
		move := (e.rng.Float64()*2 - 1) * maxMove
		e.rngMu.Unlock()

		d.mu.Lock()
		ref := d.refPrice.Mul(decimal.NewFromFloat(1 + move))
		ref = d.inst.RoundToTick(ref)
		if !ref.IsPositive() {
			ref = d.inst.TickSize
		}
		d.refPrice = ref
		d.lastPrice = ref
		d.quote = quote.Compute(d.cfg, d.refPrice, d.pos.NetPosition, d.inst.TickSize)
		e.uncross(d)
		e.publish(d)
		d.mu.Unlock()
	}
}

// publish recomputes the symbol's market data snapshot. Requires d.mu
// held (or the desk not yet visible to other goroutines).
func (e *Engine) publish(d *desk) {
	bid, ask := d.quote.Bid, d.quote.Ask
	if t, _, ok := d.book.BestBid(); ok {
		bid = d.inst.PriceFromTicks(t)
	}
	if t, _, ok := d.book.BestAsk(); ok {
		ask = d.inst.PriceFromTicks(t)
	}

	change := d.lastPrice.Sub(d.inst.OpeningPrice)
	pct := decimal.Zero
	if d.inst.OpeningPrice.IsPositive() {
		pct = change.Div(d.inst.OpeningPrice).Mul(decimal.NewFromInt(100)).Round(4)
	}

	e.md.Publish(marketdata.Snapshot{
		Symbol:        d.inst.Symbol,
		LastPrice:     d.lastPrice,
		BidPrice:      bid,
		AskPrice:      ask,
		Change:        change,
		ChangePercent: pct,
		UpdatedAt:     e.clock.Now(),
	})
}

// GetMarketData returns the published snapshot for one symbol.
func (e *Engine) GetMarketData(symbol string) (marketdata.Snapshot, bool) {
	return e.md.Get(symbol)
}

// AllMarketData returns every symbol's snapshot.
func (e *Engine) AllMarketData() map[string]marketdata.Snapshot {
	return e.md.All()
}

// GetOrderBook snapshots the real resting levels plus the maker quote.
func (e *Engine) GetOrderBook(symbol string) (BookSnapshot, bool) {
	d, ok := e.desk(symbol)
	if !ok {
		return BookSnapshot{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snap := BookSnapshot{
		Symbol:    symbol,
		MakerBid:  d.quote.Bid,
		MakerAsk:  d.quote.Ask,
		MakerSize: d.quote.Size,
		Timestamp: e.clock.Now(),
	}
	for _, l := range d.book.BidLevels() {
		snap.Bids = append(snap.Bids, BookLevel{Price: d.inst.PriceFromTicks(l.PriceTick), Quantity: l.Qty, Orders: l.Orders})
	}
	for _, l := range d.book.AskLevels() {
		snap.Asks = append(snap.Asks, BookLevel{Price: d.inst.PriceFromTicks(l.PriceTick), Quantity: l.Qty, Orders: l.Orders})
	}
	return snap, true
}

// GetInventory returns the maker's position in one symbol.
func (e *Engine) GetInventory(symbol string) (inventory.Position, bool) {
	d, ok := e.desk(symbol)
	if !ok {
		return inventory.Position{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos.Snapshot(), true
}

// AllInventory returns the maker's position across every symbol.
func (e *Engine) AllInventory() map[string]inventory.Position {
	e.mu.RLock()
	desks := make(map[string]*desk, len(e.desks))
	for sym, d := range e.desks {
		desks[sym] = d
	}
	e.mu.RUnlock()

	out := make(map[string]inventory.Position, len(desks))
	for sym, d := range desks {
		d.mu.Lock()
		out[sym] = d.pos.Snapshot()
		d.mu.Unlock()
	}
	return out
}

// GetSpreadConfig returns the symbol's current quoting parameters.
func (e *Engine) GetSpreadConfig(symbol string) (quote.SpreadConfig, bool) {
	d, ok := e.desk(symbol)
	if !ok {
		return quote.SpreadConfig{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, true
}

// UpdateSpreadConfig merges the provided fields into the symbol's config,
// clamping out-of-range values, and recomputes the quote immediately.
func (e *Engine) UpdateSpreadConfig(symbol string, u quote.ConfigUpdate) (quote.SpreadConfig, error) {
	d, ok := e.desk(symbol)
	if !ok {
		return quote.SpreadConfig{}, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cfg, notes := d.cfg.Merge(u)
	for _, n := range notes {
		e.log.Warnw("spread_config_adjusted", "symbol", symbol, "adjustment", n)
	}
	d.cfg = cfg
	d.quote = quote.Compute(cfg, d.refPrice, d.pos.NetPosition, d.inst.TickSize)
	e.uncross(d)
	e.publish(d)
	return cfg, nil
}

// GetOrder reports a still-resting order's remaining quantity.
func (e *Engine) GetOrder(orderID string) (RestingOrderInfo, bool) {
	e.idxMu.RLock()
	symbol, ok := e.orderIdx[orderID]
	e.idxMu.RUnlock()
	if !ok {
		return RestingOrderInfo{}, false
	}
	d, ok := e.desk(symbol)
	if !ok {
		return RestingOrderInfo{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.resting[orderID]
	if !ok {
		return RestingOrderInfo{}, false
	}
	qty, ok := d.book.Resting(orderID)
	if !ok {
		return RestingOrderInfo{}, false
	}
	return RestingOrderInfo{
		ID:          orderID,
		Symbol:      symbol,
		Side:        info.order.Side,
		Price:       info.order.LimitPrice,
		Quantity:    qty,
		Original:    info.original,
		SubmittedAt: info.order.SubmittedAt,
	}, true
}

// Quote returns the maker's current synthetic quote for a symbol.
func (e *Engine) Quote(symbol string) (quote.Quote, bool) {
	d, ok := e.desk(symbol)
	if !ok {
		return quote.Quote{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quote, true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
