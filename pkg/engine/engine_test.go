package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/instrument"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/quote"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/util"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bkConfig() quote.SpreadConfig {
	return quote.SpreadConfig{
		BaseSpreadBps:       50,
		MinSpreadAbs:        d("0.5"),
		MaxSpreadAbs:        d("5"),
		InventorySkewFactor: d("0.002"),
		MaxPosition:         5000,
		QuoteSize:           1000,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	clock := util.NewManualClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	e := New(zap.NewNop().Sugar(), Config{Seed: 42, TapeDepth: 16}, clock)
	in := instrument.Instrument{
		Symbol:       "BK",
		Name:         "Bank of Kigali",
		TickSize:     d("0.01"),
		OpeningPrice: d("285.50"),
	}
	if err := e.AddInstrument(in, bkConfig()); err != nil {
		t.Fatalf("AddInstrument: %v", err)
	}
	return e
}

func wantDecimal(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestInitialQuote(t *testing.T) {
	e := newTestEngine(t)

	q, ok := e.Quote("BK")
	if !ok {
		t.Fatal("no quote for BK")
	}
	wantDecimal(t, "bid", q.Bid, d("284.79"))
	wantDecimal(t, "ask", q.Ask, d("286.21"))
	if q.Size != 1000 {
		t.Fatalf("size = %d, want 1000", q.Size)
	}

	// With an empty book the published top-of-book is the maker quote.
	snap, ok := e.GetMarketData("BK")
	if !ok {
		t.Fatal("no market data for BK")
	}
	wantDecimal(t, "snapshot bid", snap.BidPrice, d("284.79"))
	wantDecimal(t, "snapshot ask", snap.AskPrice, d("286.21"))
	wantDecimal(t, "last", snap.LastPrice, d("285.50"))
}

func TestMarketBuyFillsMakerAndSkewsQuote(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Submit(NewMarketOrder("BK", Buy, 100))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != StatusFilled {
		t.Fatalf("status = %s, want %s", res.Status, StatusFilled)
	}
	if len(res.Fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(res.Fills))
	}
	f := res.Fills[0]
	if f.CounterpartyID != MakerID {
		t.Fatalf("counterparty = %q, want %q", f.CounterpartyID, MakerID)
	}
	wantDecimal(t, "fill price", f.Price, d("286.21"))
	if f.Quantity != 100 || res.FilledQuantity != 100 || res.RemainingQuantity != 0 {
		t.Fatalf("quantities: fill=%d filled=%d remaining=%d", f.Quantity, res.FilledQuantity, res.RemainingQuantity)
	}

	pos, ok := e.GetInventory("BK")
	if !ok {
		t.Fatal("no inventory for BK")
	}
	if pos.NetPosition != -100 {
		t.Fatalf("netPosition = %d, want -100", pos.NetPosition)
	}
	wantDecimal(t, "averageCost", pos.AverageCost, d("286.21"))

	// Short 100 at skew 0.002/share lifts both sides by 0.20: the maker
	// bids up to buy its position back.
	q, _ := e.Quote("BK")
	wantDecimal(t, "skewed bid", q.Bid, d("284.99"))
	wantDecimal(t, "skewed ask", q.Ask, d("286.41"))
}

func TestLimitSellRestsWhenNotMarketable(t *testing.T) {
	e := newTestEngine(t)
	mustSubmit(t, e, NewMarketOrder("BK", Buy, 100)) // maker now short, bid 284.99

	res, err := e.Submit(NewLimitOrder("BK", Sell, 50, d("287.00")))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != StatusResting || !res.Resting {
		t.Fatalf("status = %s resting = %v, want resting", res.Status, res.Resting)
	}
	if len(res.Fills) != 0 || res.RemainingQuantity != 50 {
		t.Fatalf("fills = %d remaining = %d, want 0 fills, 50 remaining", len(res.Fills), res.RemainingQuantity)
	}

	info, ok := e.GetOrder(res.OrderID)
	if !ok {
		t.Fatal("resting order not found")
	}
	if info.Quantity != 50 || info.Original != 50 || info.Side != Sell {
		t.Fatalf("resting info = %+v", info)
	}
	wantDecimal(t, "resting price", info.Price, d("287.00"))

	snap, ok := e.GetOrderBook("BK")
	if !ok {
		t.Fatal("no book for BK")
	}
	ask, qty := snap.BestAsk()
	wantDecimal(t, "book best ask", ask, d("287.00"))
	if qty != 50 {
		t.Fatalf("best ask qty = %d, want 50", qty)
	}
}

// A buy whose limit covers both the maker's ask and a worse-priced
// resting ask must take the cheaper maker liquidity first.
func TestMakerFillsBeforeWorseRestingLevel(t *testing.T) {
	e := newTestEngine(t)
	mustSubmit(t, e, NewMarketOrder("BK", Buy, 100)) // maker ask now 286.41
	rest := mustSubmit(t, e, NewLimitOrder("BK", Sell, 50, d("287.00")))

	res := mustSubmit(t, e, NewLimitOrder("BK", Buy, 60, d("287.00")))
	if res.Status != StatusFilled {
		t.Fatalf("status = %s, want %s", res.Status, StatusFilled)
	}
	if len(res.Fills) != 1 || res.Fills[0].CounterpartyID != MakerID {
		t.Fatalf("fills = %+v, want a single maker fill", res.Fills)
	}
	wantDecimal(t, "fill price", res.Fills[0].Price, d("286.41"))

	// The 287.00 sell is untouched.
	info, ok := e.GetOrder(rest.OrderID)
	if !ok || info.Quantity != 50 {
		t.Fatalf("resting order ok=%v qty=%d, want untouched", ok, info.Quantity)
	}
}

func TestMarketBuyWalksBookBeyondMakerSize(t *testing.T) {
	e := newTestEngine(t)
	mustSubmit(t, e, NewMarketOrder("BK", Buy, 100))
	rest := mustSubmit(t, e, NewLimitOrder("BK", Sell, 50, d("287.00")))

	res := mustSubmit(t, e, NewMarketOrder("BK", Buy, 1050))
	if res.Status != StatusFilled {
		t.Fatalf("status = %s, want %s", res.Status, StatusFilled)
	}
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(res.Fills))
	}
	if res.Fills[0].CounterpartyID != MakerID || res.Fills[0].Quantity != 1000 {
		t.Fatalf("first fill = %+v, want 1000 vs maker", res.Fills[0])
	}
	if res.Fills[1].CounterpartyID != rest.OrderID || res.Fills[1].Quantity != 50 {
		t.Fatalf("second fill = %+v, want 50 vs %s", res.Fills[1], rest.OrderID)
	}
	wantDecimal(t, "second fill price", res.Fills[1].Price, d("287.00"))

	if _, ok := e.GetOrder(rest.OrderID); ok {
		t.Fatal("fully consumed resting order still reported")
	}
	if e.Cancel(rest.OrderID) {
		t.Fatal("cancel succeeded on a consumed order")
	}
}

func TestMarketShortfallNeverRests(t *testing.T) {
	e := newTestEngine(t)
	small := int64(100)
	if _, err := e.UpdateSpreadConfig("BK", quote.ConfigUpdate{QuoteSize: &small}); err != nil {
		t.Fatalf("UpdateSpreadConfig: %v", err)
	}

	res, err := e.Submit(NewMarketOrder("BK", Buy, 150))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != StatusPartiallyFilled {
		t.Fatalf("status = %s, want %s", res.Status, StatusPartiallyFilled)
	}
	if res.FilledQuantity != 100 || res.RemainingQuantity != 50 {
		t.Fatalf("filled=%d remaining=%d, want 100/50", res.FilledQuantity, res.RemainingQuantity)
	}
	if res.Resting {
		t.Fatal("market remainder must not rest")
	}
	if !strings.Contains(res.Reason, "unfilled") {
		t.Fatalf("reason = %q, want shortfall note", res.Reason)
	}

	// Nothing queued on either side.
	snap, _ := e.GetOrderBook("BK")
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("book not empty: %d bids, %d asks", len(snap.Bids), len(snap.Asks))
	}
}

func TestFillConservation(t *testing.T) {
	e := newTestEngine(t)

	orders := []Order{
		NewMarketOrder("BK", Buy, 300),
		NewLimitOrder("BK", Sell, 500, d("286.90")),
		NewLimitOrder("BK", Buy, 700, d("287.10")),
		NewMarketOrder("BK", Sell, 2500),
		NewLimitOrder("BK", Buy, 40, d("200.00")),
		NewMarketOrder("BK", Buy, 1800),
	}
	for i, o := range orders {
		res, err := e.Submit(o)
		if err != nil && !errors.Is(err, ErrUnfilledRemainder) {
			t.Fatalf("order %d: %v", i, err)
		}
		var sum int64
		for _, f := range res.Fills {
			sum += f.Quantity
		}
		if sum+res.RemainingQuantity != o.Quantity {
			t.Fatalf("order %d: sum(fills)=%d + remaining=%d != quantity=%d",
				i, sum, res.RemainingQuantity, o.Quantity)
		}
		if sum != res.FilledQuantity {
			t.Fatalf("order %d: FilledQuantity=%d, fills sum to %d", i, res.FilledQuantity, sum)
		}
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	before, _ := e.GetInventory("BK")

	res := mustSubmit(t, e, NewLimitOrder("BK", Buy, 25, d("280.00")))
	if res.Status != StatusResting {
		t.Fatalf("status = %s, want %s", res.Status, StatusResting)
	}

	if !e.Cancel(res.OrderID) {
		t.Fatal("first cancel failed")
	}
	if e.Cancel(res.OrderID) {
		t.Fatal("second cancel succeeded")
	}
	if e.Cancel("no-such-order") {
		t.Fatal("cancel of unknown id succeeded")
	}

	after, _ := e.GetInventory("BK")
	if after.NetPosition != before.NetPosition {
		t.Fatalf("cancel moved inventory: %d -> %d", before.NetPosition, after.NetPosition)
	}
	snap, _ := e.GetOrderBook("BK")
	if len(snap.Bids) != 0 {
		t.Fatal("cancelled order still in book")
	}
}

func TestSubmitRejections(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		order Order
		want  error
	}{
		{"zero quantity", NewMarketOrder("BK", Buy, 0), ErrInvalidQuantity},
		{"negative quantity", NewMarketOrder("BK", Sell, -5), ErrInvalidQuantity},
		{"unknown symbol", NewMarketOrder("ZZZ", Buy, 10), ErrUnknownSymbol},
		{"zero limit price", NewLimitOrder("BK", Buy, 10, decimal.Zero), ErrInvalidLimitPrice},
		{"negative limit price", NewLimitOrder("BK", Sell, 10, d("-1")), ErrInvalidLimitPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Submit(tt.order)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if res.Status != StatusRejected {
				t.Fatalf("status = %s, want %s", res.Status, StatusRejected)
			}
			if len(res.Fills) != 0 {
				t.Fatalf("rejected order produced %d fills", len(res.Fills))
			}
		})
	}

	// Rejections leave the desk untouched.
	pos, _ := e.GetInventory("BK")
	if pos.NetPosition != 0 {
		t.Fatalf("netPosition = %d after rejections, want 0", pos.NetPosition)
	}
	q, _ := e.Quote("BK")
	wantDecimal(t, "bid", q.Bid, d("284.79"))
	wantDecimal(t, "ask", q.Ask, d("286.21"))
}

func TestUpdateSpreadConfigRequotes(t *testing.T) {
	e := newTestEngine(t)

	wider := int64(100)
	cfg, err := e.UpdateSpreadConfig("BK", quote.ConfigUpdate{BaseSpreadBps: &wider})
	if err != nil {
		t.Fatalf("UpdateSpreadConfig: %v", err)
	}
	if cfg.BaseSpreadBps != 100 {
		t.Fatalf("baseSpreadBps = %d, want 100", cfg.BaseSpreadBps)
	}

	// 100 bps of 285.50 is 2.855: bid 284.07, ask 286.93 after rounding.
	q, _ := e.Quote("BK")
	wantDecimal(t, "bid", q.Bid, d("284.07"))
	wantDecimal(t, "ask", q.Ask, d("286.93"))

	// Out-of-range values are clamped, never fatal.
	bad := int64(-10)
	cfg, err = e.UpdateSpreadConfig("BK", quote.ConfigUpdate{BaseSpreadBps: &bad})
	if err != nil {
		t.Fatalf("UpdateSpreadConfig: %v", err)
	}
	if cfg.BaseSpreadBps != 0 {
		t.Fatalf("baseSpreadBps = %d, want clamped to 0", cfg.BaseSpreadBps)
	}

	if _, err := e.UpdateSpreadConfig("ZZZ", quote.ConfigUpdate{}); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want %v", err, ErrUnknownSymbol)
	}
}

func TestTickIsSeededAndBounded(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	maxMove := d("0.0075") // 75 bps default
	for i := 0; i < 50; i++ {
		prevA, _ := a.GetMarketData("BK")
		a.Tick()
		b.Tick()

		curA, _ := a.GetMarketData("BK")
		curB, _ := b.GetMarketData("BK")
		wantDecimal(t, "seeded walk diverged", curA.LastPrice, curB.LastPrice)

		// |move| <= maxMove * prev, plus half a tick of rounding slack.
		bound := prevA.LastPrice.Mul(maxMove).Add(d("0.005"))
		move := curA.LastPrice.Sub(prevA.LastPrice).Abs()
		if move.GreaterThan(bound) {
			t.Fatalf("tick %d moved %s from %s, bound %s", i, move, prevA.LastPrice, bound)
		}
		if !curA.LastPrice.IsPositive() {
			t.Fatalf("tick %d drove price non-positive: %s", i, curA.LastPrice)
		}
	}
}

func TestInventoryRoundTripsFlat(t *testing.T) {
	e := newTestEngine(t)

	mustSubmit(t, e, NewMarketOrder("BK", Buy, 200))  // maker -200
	mustSubmit(t, e, NewMarketOrder("BK", Sell, 200)) // maker back to 0

	pos, _ := e.GetInventory("BK")
	if pos.NetPosition != 0 {
		t.Fatalf("netPosition = %d, want 0", pos.NetPosition)
	}
	wantDecimal(t, "averageCost", pos.AverageCost, decimal.Zero)

	// Flat book, flat inventory: back to the unskewed quote.
	q, _ := e.Quote("BK")
	wantDecimal(t, "bid", q.Bid, d("284.79"))
	wantDecimal(t, "ask", q.Ask, d("286.21"))
}

// A limit buy priced far above the quote and larger than the maker's
// per-pass size keeps filling against the refreshed quote at each new
// ask, so its remainder can never rest above the maker and cross the
// book.
func TestAggressiveLimitBuyAbsorbedAcrossRequotes(t *testing.T) {
	e := newTestEngine(t)

	res := mustSubmit(t, e, NewLimitOrder("BK", Buy, 2000, d("400.00")))
	if res.Status != StatusFilled || res.Resting {
		t.Fatalf("status = %s resting = %v, want fully filled", res.Status, res.Resting)
	}
	if len(res.Fills) != 2 {
		t.Fatalf("fills = %d, want 2 maker passes", len(res.Fills))
	}
	for i, f := range res.Fills {
		if f.CounterpartyID != MakerID || f.Quantity != 1000 {
			t.Fatalf("fill[%d] = %+v, want 1000 vs maker", i, f)
		}
	}
	wantDecimal(t, "first pass", res.Fills[0].Price, d("286.21"))
	// 1000 short at skew 0.002/share lifts the ask by 2.00 for the next pass
	wantDecimal(t, "second pass", res.Fills[1].Price, d("288.21"))

	snap, _ := e.GetOrderBook("BK")
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("book not empty: %d bids, %d asks", len(snap.Bids), len(snap.Asks))
	}
	md, _ := e.GetMarketData("BK")
	if !md.BidPrice.LessThan(md.AskPrice) {
		t.Fatalf("top of book crossed: bid=%s ask=%s", md.BidPrice, md.AskPrice)
	}
}

// When a config change carries the maker's bid through a resting ask,
// the maker lifts the offer at its resting price instead of publishing
// a crossed book.
func TestRestingOrderFillsWhenQuoteReachesIt(t *testing.T) {
	e := newTestEngine(t)
	mustSubmit(t, e, NewMarketOrder("BK", Buy, 1000)) // maker -1000, quote 286.79/288.21

	rest := mustSubmit(t, e, NewLimitOrder("BK", Sell, 50, d("288.00")))
	if rest.Status != StatusResting {
		t.Fatalf("status = %s, want %s", rest.Status, StatusResting)
	}

	// steeper skew pushes the unclamped bid to 288.79, through the ask
	steeper := d("0.004")
	if _, err := e.UpdateSpreadConfig("BK", quote.ConfigUpdate{InventorySkewFactor: &steeper}); err != nil {
		t.Fatalf("UpdateSpreadConfig: %v", err)
	}

	if _, ok := e.GetOrder(rest.OrderID); ok {
		t.Fatal("crossed resting order still in book")
	}
	pos, _ := e.GetInventory("BK")
	if pos.NetPosition != -950 {
		t.Fatalf("netPosition = %d, want -950", pos.NetPosition)
	}

	trades := e.MarketData().RecentTrades("BK", 1)
	if len(trades) != 1 || trades[0].Quantity != 50 || trades[0].TakerSide != "buy" {
		t.Fatalf("tape = %+v, want maker buying 50", trades)
	}
	wantDecimal(t, "fill price", trades[0].Price, d("288.00"))

	md, _ := e.GetMarketData("BK")
	if !md.BidPrice.LessThan(md.AskPrice) {
		t.Fatalf("top of book crossed: bid=%s ask=%s", md.BidPrice, md.AskPrice)
	}
}

func TestTopOfBookNeverCrosses(t *testing.T) {
	e := newTestEngine(t)

	check := func(step string) {
		t.Helper()
		snap, ok := e.GetOrderBook("BK")
		if !ok {
			t.Fatalf("%s: no book", step)
		}
		bid, _ := snap.BestBid()
		ask, _ := snap.BestAsk()
		if !bid.LessThan(ask) {
			t.Fatalf("%s: book crossed: bid=%s ask=%s", step, bid, ask)
		}
		md, _ := e.GetMarketData("BK")
		if !md.BidPrice.LessThan(md.AskPrice) {
			t.Fatalf("%s: market data crossed: bid=%s ask=%s", step, md.BidPrice, md.AskPrice)
		}
	}

	steeper := d("0.004")
	wider := int64(200)
	steps := []struct {
		name string
		run  func()
	}{
		{"rest sell above ask", func() { mustSubmit(t, e, NewLimitOrder("BK", Sell, 50, d("287.00"))) }},
		{"market buy", func() { mustSubmit(t, e, NewMarketOrder("BK", Buy, 100)) }},
		{"aggressive limit buy", func() { mustSubmit(t, e, NewLimitOrder("BK", Buy, 2000, d("400.00"))) }},
		{"rest bid below", func() { mustSubmit(t, e, NewLimitOrder("BK", Buy, 75, d("250.00"))) }},
		{"steepen skew", func() { e.UpdateSpreadConfig("BK", quote.ConfigUpdate{InventorySkewFactor: &steeper}) }},
		{"widen spread", func() { e.UpdateSpreadConfig("BK", quote.ConfigUpdate{BaseSpreadBps: &wider}) }},
		{"market sell", func() { mustSubmit(t, e, NewMarketOrder("BK", Sell, 1500)) }},
		{"rest bid near quote", func() { mustSubmit(t, e, NewLimitOrder("BK", Buy, 80, d("282.00"))) }},
		{"rest ask far above", func() { mustSubmit(t, e, NewLimitOrder("BK", Sell, 60, d("340.00"))) }},
		{"cancel unknown", func() { e.Cancel("no-such-order") }},
	}
	for _, s := range steps {
		s.run()
		check(s.name)
	}
	for i := 0; i < 40; i++ {
		e.Tick()
		check(fmt.Sprintf("tick %d", i))
	}
}

func mustSubmit(t *testing.T, e *Engine, o Order) MatchResult {
	t.Helper()
	res, err := e.Submit(o)
	if err != nil {
		t.Fatalf("Submit(%s %s %d): %v", o.Symbol, o.Side, o.Quantity, err)
	}
	return res
}
