package api

// Request/response types for REST endpoints and WebSocket messages.
// Decimal fields marshal as quoted strings.

import "github.com/shopspring/decimal"

// InstrumentInfo is a listed symbol's static metadata
type InstrumentInfo struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	TickSize     decimal.Decimal `json:"tickSize"`
	OpeningPrice decimal.Decimal `json:"openingPrice"`
}

// MarketDataInfo is the derived per-symbol view
type MarketDataInfo struct {
	Symbol        string          `json:"symbol"`
	LastPrice     decimal.Decimal `json:"lastPrice"`
	BidPrice      decimal.Decimal `json:"bidPrice"`
	AskPrice      decimal.Decimal `json:"askPrice"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	UpdatedAt     int64           `json:"updatedAt"` // Unix milliseconds
}

// PriceLevel represents one aggregated book level
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Orders   int             `json:"orders"`
}

// OrderbookSnapshot is the resting book plus the maker's standing quote
type OrderbookSnapshot struct {
	Symbol    string          `json:"symbol"`
	Bids      []PriceLevel    `json:"bids"` // sorted high to low
	Asks      []PriceLevel    `json:"asks"` // sorted low to high
	MakerBid  decimal.Decimal `json:"makerBid"`
	MakerAsk  decimal.Decimal `json:"makerAsk"`
	MakerSize int64           `json:"makerSize"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// TradeInfo is one tape entry
type TradeInfo struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	TakerSide string          `json:"takerSide"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
}

// InventoryInfo is the maker's exposure in one symbol
type InventoryInfo struct {
	Symbol      string          `json:"symbol"`
	NetPosition int64           `json:"netPosition"`
	AverageCost decimal.Decimal `json:"averageCost"`
}

// SpreadConfigInfo mirrors the engine's quoting parameters
type SpreadConfigInfo struct {
	Symbol              string          `json:"symbol"`
	BaseSpreadBps       int64           `json:"baseSpreadBps"`
	MinSpreadAbs        decimal.Decimal `json:"minSpreadAbs"`
	MaxSpreadAbs        decimal.Decimal `json:"maxSpreadAbs"`
	InventorySkewFactor decimal.Decimal `json:"inventorySkewFactor"`
	MaxPosition         int64           `json:"maxPosition"`
	QuoteSize           int64           `json:"quoteSize"`
}

// SpreadConfigUpdate is a partial config; absent fields keep their value
type SpreadConfigUpdate struct {
	BaseSpreadBps       *int64           `json:"baseSpreadBps,omitempty"`
	MinSpreadAbs        *decimal.Decimal `json:"minSpreadAbs,omitempty"`
	MaxSpreadAbs        *decimal.Decimal `json:"maxSpreadAbs,omitempty"`
	InventorySkewFactor *decimal.Decimal `json:"inventorySkewFactor,omitempty"`
	MaxPosition         *int64           `json:"maxPosition,omitempty"`
	QuoteSize           *int64           `json:"quoteSize,omitempty"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders
type SubmitOrderRequest struct {
	Symbol   string           `json:"symbol"`
	Side     string           `json:"side"` // "buy" or "sell"
	Kind     string           `json:"kind"` // "market" or "limit"
	Quantity int64            `json:"quantity"`
	Price    *decimal.Decimal `json:"price,omitempty"` // required for limit
}

// FillInfo is one execution inside a match result
type FillInfo struct {
	Price          decimal.Decimal `json:"price"`
	Quantity       int64           `json:"quantity"`
	CounterpartyID string          `json:"counterpartyId"`
}

// SubmitOrderResponse reports the order's disposition
type SubmitOrderResponse struct {
	OrderID           string     `json:"orderId"`
	Status            string     `json:"status"`
	Fills             []FillInfo `json:"fills"`
	FilledQuantity    int64      `json:"filledQuantity"`
	RemainingQuantity int64      `json:"remainingQuantity"`
	Resting           bool       `json:"resting"`
	Reason            string     `json:"reason,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

// CancelOrderResponse reports whether the order was still resting
type CancelOrderResponse struct {
	OrderID   string `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. ["marketdata:BK", "trades:BK"]
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSMessage wraps every broadcast payload
type WSMessage struct {
	Type    string      `json:"type"` // "marketdata" or "trade"
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}
