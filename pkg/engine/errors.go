package engine

import "errors"

// Rejection reasons surfaced through MatchResult. Invalid orders are
// rejected before any state mutation; none of these is fatal to the
// engine.
var (
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrInvalidQuantity   = errors.New("order quantity must be positive")
	ErrInvalidLimitPrice = errors.New("limit price must be positive")
	ErrUnfilledRemainder = errors.New("market order remainder could not be filled")
)
