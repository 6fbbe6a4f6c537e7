package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/book"
)

// Re-export the book's side so callers don't import two packages for one
// enum.
type Side = book.Side

const (
	Buy  = book.Buy
	Sell = book.Sell
)

// Kind is the order's tagged variant: market orders never rest, limit
// orders require a price and may rest.
type Kind int8

const (
	Market Kind = iota
	Limit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "market"
	case Limit:
		return "limit"
	default:
		return "unknown"
	}
}

// Order is a client order as accepted by Submit. ID, Seq and SubmittedAt
// are assigned by the engine; callers build orders with NewMarketOrder /
// NewLimitOrder.
type Order struct {
	ID          string
	Symbol      string
	Side        Side
	Kind        Kind
	Quantity    int64
	LimitPrice  decimal.Decimal // required iff Kind == Limit
	Seq         uint64
	SubmittedAt time.Time
}

// NewMarketOrder builds an unpriced order that fills immediately or
// reports a shortfall.
func NewMarketOrder(symbol string, side Side, quantity int64) Order {
	return Order{Symbol: symbol, Side: side, Kind: Market, Quantity: quantity}
}

// NewLimitOrder builds a priced order whose remainder rests in the book.
func NewLimitOrder(symbol string, side Side, quantity int64, price decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: side, Kind: Limit, Quantity: quantity, LimitPrice: price}
}

// MakerID is the counterparty sentinel for fills against the maker's
// synthetic quote.
const MakerID = "MAKER"

// Fill is a completed (possibly partial) match. Immutable once created.
type Fill struct {
	Price          decimal.Decimal
	Quantity       int64
	CounterpartyID string // MakerID or a resting order's id
}

// Status is the terminal disposition of a Submit call.
type Status string

const (
	StatusFilled          Status = "filled"
	StatusPartiallyFilled Status = "partially_filled"
	StatusResting         Status = "resting"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// MatchResult reports everything that happened to a submitted order.
// Fill conservation holds for every accepted order:
// sum(fills) + RemainingQuantity == Quantity.
type MatchResult struct {
	OrderID           string
	Status            Status
	Fills             []Fill
	FilledQuantity    int64
	RemainingQuantity int64
	Resting           bool   // remainder queued in the book (limit only)
	Reason            string // rejection reason or market shortfall note
}

// RestingOrderInfo is a read-only view of an order still in the book.
type RestingOrderInfo struct {
	ID          string
	Symbol      string
	Side        Side
	Price       decimal.Decimal
	Quantity    int64 // remaining
	Original    int64
	SubmittedAt time.Time
}

// BookLevel is one aggregated price level of a book snapshot.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity int64
	Orders   int
}

// BookSnapshot is the externally visible order book: real resting levels
// plus the maker's synthetic quote, which is always present as the
// outermost fallback liquidity.
type BookSnapshot struct {
	Symbol    string
	Bids      []BookLevel // best (highest) first
	Asks      []BookLevel // best (lowest) first
	MakerBid  decimal.Decimal
	MakerAsk  decimal.Decimal
	MakerSize int64
	Timestamp time.Time
}

// BestBid returns the top-of-book bid: the best real level, or the
// maker's synthetic bid when that side of the real book is empty.
func (s BookSnapshot) BestBid() (decimal.Decimal, int64) {
	if len(s.Bids) > 0 {
		return s.Bids[0].Price, s.Bids[0].Quantity
	}
	return s.MakerBid, s.MakerSize
}

// BestAsk returns the top-of-book ask, falling back to the maker's
// synthetic ask.
func (s BookSnapshot) BestAsk() (decimal.Decimal, int64) {
	if len(s.Asks) > 0 {
		return s.Asks[0].Price, s.Asks[0].Quantity
	}
	return s.MakerAsk, s.MakerSize
}
