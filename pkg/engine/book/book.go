// Package book implements a single-symbol limit order book with
// price-time priority. Prices are integer tick counts; the owning desk
// converts to decimal at the boundary and serializes all access, so the
// book itself carries no lock.
package book

import (
	"container/heap"
	"fmt"
	"sort"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the market.
func (s Side) Opposite() Side { return -s }

// RestingOrder is a limit order queued in the book waiting for a
// marketable counterparty.
type RestingOrder struct {
	ID        string
	Side      Side
	PriceTick int64
	Qty       int64 // remaining quantity
	Seq       uint64
}

// Fill records liquidity consumed from a resting order during a match walk.
type Fill struct {
	RestingID string
	PriceTick int64
	Qty       int64
}

// Level aggregates resting quantity at one price.
type Level struct {
	PriceTick int64
	Qty       int64
	Orders    int
}

type restingRef struct {
	priceTick int64
	side      Side
}

type Book struct {
	// Heap-based best price tracking (O(1) peek)
	bidHeap *maxTickHeap
	askHeap *minTickHeap

	// Price level queues (FIFO matching at each price)
	bids map[int64][]*RestingOrder // price tick -> FIFO slice
	asks map[int64][]*RestingOrder

	// Order index for O(1) cancellation
	index map[string]restingRef // order ID -> location
}

func New() *Book {
	bidHeap := &maxTickHeap{}
	askHeap := &minTickHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64][]*RestingOrder),
		asks:    make(map[int64][]*RestingOrder),
		index:   make(map[string]restingRef),
	}
}

// BestBid returns the highest bid tick and its total quantity.
func (b *Book) BestBid() (int64, int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, 0, false
	}
	p := b.bidHeap.Peek()
	return p, levelQty(b.bids[p]), true
}

// BestAsk returns the lowest ask tick and its total quantity.
func (b *Book) BestAsk() (int64, int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, 0, false
	}
	p := b.askHeap.Peek()
	return p, levelQty(b.asks[p]), true
}

func levelQty(level []*RestingOrder) int64 {
	var total int64
	for _, o := range level {
		total += o.Qty
	}
	return total
}

// Insert queues a resting limit order at the FIFO tail of its price level.
// Rejects non-positive quantity or price, and duplicate ids.
func (b *Book) Insert(o *RestingOrder) error {
	if o.Qty <= 0 {
		return fmt.Errorf("resting order %s: quantity must be positive, got %d", o.ID, o.Qty)
	}
	if o.PriceTick <= 0 {
		return fmt.Errorf("resting order %s: price must be positive, got %d", o.ID, o.PriceTick)
	}
	if _, dup := b.index[o.ID]; dup {
		return fmt.Errorf("resting order %s already in book", o.ID)
	}

	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	if len(side[o.PriceTick]) == 0 {
		// New price level - add to heap
		if o.Side == Buy {
			heap.Push(b.bidHeap, o.PriceTick)
		} else {
			heap.Push(b.askHeap, o.PriceTick)
		}
	}
	side[o.PriceTick] = append(side[o.PriceTick], o)
	b.index[o.ID] = restingRef{priceTick: o.PriceTick, side: o.Side}
	return nil
}

// Remove deletes a resting order by id. Returns whether it existed.
// Removal is not a fill: no inventory or market data side effects.
func (b *Book) Remove(id string) bool {
	ref, ok := b.index[id]
	if !ok {
		return false
	}

	side := b.bids
	if ref.side == Sell {
		side = b.asks
	}
	arr := side[ref.priceTick]
	for i, o := range arr {
		if o.ID == id {
			side[ref.priceTick] = append(arr[:i], arr[i+1:]...)
			if len(side[ref.priceTick]) == 0 {
				delete(side, ref.priceTick)
				b.removeFromHeap(ref.side, ref.priceTick)
			}
			delete(b.index, id)
			return true
		}
	}
	return false
}

// removeFromHeap removes a price level from the side's heap (O(N) worst case, but rare)
func (b *Book) removeFromHeap(side Side, priceTick int64) {
	if side == Buy {
		for i := 0; i < b.bidHeap.Len(); i++ {
			if (*b.bidHeap)[i] == priceTick {
				heap.Remove(b.bidHeap, i)
				return
			}
		}
		return
	}
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == priceTick {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// Match walks the opposite side of an incoming order by price-time
// priority and consumes up to qty. limitTick bounds the walk for limit
// orders (max buy price / min sell price); pass marketable=true to walk
// unconstrained. Returns the fills taken and the unfilled remainder.
func (b *Book) Match(taker Side, qty int64, limitTick int64, marketable bool) ([]Fill, int64) {
	var fills []Fill

	for qty > 0 {
		var levelTick int64
		var ok bool
		if taker == Buy {
			levelTick, _, ok = b.BestAsk()
			if !ok || (!marketable && levelTick > limitTick) {
				break
			}
		} else {
			levelTick, _, ok = b.BestBid()
			if !ok || (!marketable && levelTick < limitTick) {
				break
			}
		}

		side := b.asks
		if taker == Sell {
			side = b.bids
		}
		level := side[levelTick]
		if len(level) == 0 {
			delete(side, levelTick)
			b.removeFromHeap(taker.Opposite(), levelTick)
			continue
		}

		resting := level[0]
		match := min64(qty, resting.Qty)
		qty -= match
		resting.Qty -= match
		fills = append(fills, Fill{RestingID: resting.ID, PriceTick: levelTick, Qty: match})

		if resting.Qty == 0 {
			side[levelTick] = level[1:]
			delete(b.index, resting.ID)
			if len(side[levelTick]) == 0 {
				delete(side, levelTick)
				b.removeFromHeap(taker.Opposite(), levelTick)
			}
		}
	}
	return fills, qty
}

// BidLevels returns all bid price levels sorted best (highest) first.
func (b *Book) BidLevels() []Level {
	return collectLevels(b.bids, func(a, c int64) bool { return a > c })
}

// AskLevels returns all ask price levels sorted best (lowest) first.
func (b *Book) AskLevels() []Level {
	return collectLevels(b.asks, func(a, c int64) bool { return a < c })
}

func collectLevels(side map[int64][]*RestingOrder, better func(a, b int64) bool) []Level {
	levels := make([]Level, 0, len(side))
	for tick, orders := range side {
		if len(orders) == 0 {
			continue
		}
		levels = append(levels, Level{PriceTick: tick, Qty: levelQty(orders), Orders: len(orders)})
	}
	sort.Slice(levels, func(i, j int) bool {
		return better(levels[i].PriceTick, levels[j].PriceTick)
	})
	return levels
}

// Resting reports the remaining quantity of a resting order.
func (b *Book) Resting(id string) (int64, bool) {
	ref, ok := b.index[id]
	if !ok {
		return 0, false
	}
	side := b.bids
	if ref.side == Sell {
		side = b.asks
	}
	for _, o := range side[ref.priceTick] {
		if o.ID == id {
			return o.Qty, true
		}
	}
	return 0, false
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
