// Package quote derives the market maker's two-sided quote for a symbol
// from its spread configuration and current inventory.
package quote

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var bpsDivisor = decimal.NewFromInt(10000)

// SpreadConfig holds the per-symbol quoting parameters. Mutable at
// runtime through the engine, under the symbol's writer lock.
type SpreadConfig struct {
	Symbol              string
	BaseSpreadBps       int64           // quoted spread in basis points of the reference price
	MinSpreadAbs        decimal.Decimal // floor on ask-bid, absolute
	MaxSpreadAbs        decimal.Decimal // cap on ask-bid, absolute
	InventorySkewFactor decimal.Decimal // price shift per unit of net position
	MaxPosition         int64           // soft risk limit on |netPosition|
	QuoteSize           int64           // maker liquidity offered per matching pass
}

// Sanitize clamps out-of-range fields and returns the adjustments made.
// Config errors are never fatal: the caller logs the notes and proceeds
// with the clamped values.
func (c SpreadConfig) Sanitize() (SpreadConfig, []string) {
	var notes []string
	if c.BaseSpreadBps < 0 {
		notes = append(notes, fmt.Sprintf("baseSpreadBps %d clamped to 0", c.BaseSpreadBps))
		c.BaseSpreadBps = 0
	}
	if c.MinSpreadAbs.IsNegative() {
		notes = append(notes, fmt.Sprintf("minSpreadAbs %s clamped to 0", c.MinSpreadAbs))
		c.MinSpreadAbs = decimal.Zero
	}
	if c.MaxSpreadAbs.LessThan(c.MinSpreadAbs) {
		notes = append(notes, fmt.Sprintf("maxSpreadAbs %s raised to minSpreadAbs %s", c.MaxSpreadAbs, c.MinSpreadAbs))
		c.MaxSpreadAbs = c.MinSpreadAbs
	}
	if c.MaxPosition < 0 {
		notes = append(notes, fmt.Sprintf("maxPosition %d clamped to 0", c.MaxPosition))
		c.MaxPosition = 0
	}
	if c.QuoteSize <= 0 {
		notes = append(notes, fmt.Sprintf("quoteSize %d raised to 1", c.QuoteSize))
		c.QuoteSize = 1
	}
	return c, notes
}

// ConfigUpdate is a partial SpreadConfig: nil fields keep their current
// value. Merging triggers an immediate quote recompute in the engine.
type ConfigUpdate struct {
	BaseSpreadBps       *int64
	MinSpreadAbs        *decimal.Decimal
	MaxSpreadAbs        *decimal.Decimal
	InventorySkewFactor *decimal.Decimal
	MaxPosition         *int64
	QuoteSize           *int64
}

// Merge applies the update's non-nil fields onto c and sanitizes the result.
func (c SpreadConfig) Merge(u ConfigUpdate) (SpreadConfig, []string) {
	if u.BaseSpreadBps != nil {
		c.BaseSpreadBps = *u.BaseSpreadBps
	}
	if u.MinSpreadAbs != nil {
		c.MinSpreadAbs = *u.MinSpreadAbs
	}
	if u.MaxSpreadAbs != nil {
		c.MaxSpreadAbs = *u.MaxSpreadAbs
	}
	if u.InventorySkewFactor != nil {
		c.InventorySkewFactor = *u.InventorySkewFactor
	}
	if u.MaxPosition != nil {
		c.MaxPosition = *u.MaxPosition
	}
	if u.QuoteSize != nil {
		c.QuoteSize = *u.QuoteSize
	}
	return c.Sanitize()
}

// Quote is the maker's current two-sided price, always present as the
// book's outermost fallback liquidity.
type Quote struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Size int64 // maker liquidity per side per matching pass
}

// Spread returns ask - bid.
func (q Quote) Spread() decimal.Decimal { return q.Ask.Sub(q.Bid) }

// Compute derives the maker quote from the reference price and current
// net position.
//
//	effectiveSpread = clamp(baseSpreadBps * ref / 10000, min, max)
//	skew            = netPosition * inventorySkewFactor
//	bid             = ref - effectiveSpread/2 - skew
//	ask             = ref + effectiveSpread/2 - skew
//
// Long inventory (positive skew) shifts both sides down, making the maker
// a more aggressive seller; short inventory does the inverse. When
// |netPosition| breaches MaxPosition the over-exposed side is pushed out
// to the full MaxSpreadAbs, discouraging further accumulation without
// ever blocking flow.
//
// Invariants on the result: MinSpreadAbs <= ask-bid <= MaxSpreadAbs and
// ask > bid; skew is clamped rather than letting the quote invert or the
// bid go non-positive.
func Compute(cfg SpreadConfig, ref decimal.Decimal, netPosition int64, tick decimal.Decimal) Quote {
	spread := ref.Mul(decimal.NewFromInt(cfg.BaseSpreadBps)).Div(bpsDivisor)
	if spread.LessThan(cfg.MinSpreadAbs) {
		spread = cfg.MinSpreadAbs
	}
	if spread.GreaterThan(cfg.MaxSpreadAbs) {
		spread = cfg.MaxSpreadAbs
	}

	skew := cfg.InventorySkewFactor.Mul(decimal.NewFromInt(netPosition))

	half := spread.Div(decimal.NewFromInt(2))
	bid := ref.Sub(half).Sub(skew)
	ask := ref.Add(half).Sub(skew)

	// Soft risk limit: widen the over-exposed side out to the max spread.
	if cfg.MaxPosition > 0 {
		if netPosition > cfg.MaxPosition {
			bid = ask.Sub(cfg.MaxSpreadAbs)
		} else if netPosition < -cfg.MaxPosition {
			ask = bid.Add(cfg.MaxSpreadAbs)
		}
	}

	// Skew must never push the bid through zero; shift both sides back up
	// so the bid stays at one tick. The spread is preserved.
	if !bid.GreaterThan(decimal.Zero) {
		shift := tick.Sub(bid)
		bid = bid.Add(shift)
		ask = ask.Add(shift)
	}

	bid = roundToTick(bid, tick)
	ask = roundToTick(ask, tick)
	if !ask.GreaterThan(bid) {
		// tick rounding collapsed the spread
		ask = bid.Add(tick)
	}

	return Quote{Bid: bid, Ask: ask, Size: cfg.QuoteSize}
}

func roundToTick(p, tick decimal.Decimal) decimal.Decimal {
	return p.DivRound(tick, 0).Mul(tick)
}
