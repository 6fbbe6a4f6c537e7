package instrument

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Instrument holds the static per-symbol metadata every other component
// depends on. Immutable after registration.
type Instrument struct {
	Symbol       string          // e.g., "BK"
	Name         string          // display name, e.g., "Bank of Kigali"
	TickSize     decimal.Decimal // minimum price increment, e.g., 0.01
	OpeningPrice decimal.Decimal // session open, anchor for change/changePercent
}

// Validate checks the instrument is well formed.
func (in Instrument) Validate() error {
	if in.Symbol == "" {
		return fmt.Errorf("instrument symbol is required")
	}
	if !in.TickSize.IsPositive() {
		return fmt.Errorf("instrument %s: tick size must be positive, got %s", in.Symbol, in.TickSize)
	}
	if !in.OpeningPrice.IsPositive() {
		return fmt.Errorf("instrument %s: opening price must be positive, got %s", in.Symbol, in.OpeningPrice)
	}
	return nil
}

// RoundToTick snaps a price to the nearest tick multiple.
func (in Instrument) RoundToTick(p decimal.Decimal) decimal.Decimal {
	return p.DivRound(in.TickSize, 0).Mul(in.TickSize)
}

// PriceToTicks converts a price to an integer tick count. Prices are
// snapped to the nearest tick first, so 284.786 with tick 0.01 becomes
// 28479 ticks.
func (in Instrument) PriceToTicks(p decimal.Decimal) int64 {
	return p.DivRound(in.TickSize, 0).IntPart()
}

// PriceFromTicks converts an integer tick count back to a price.
func (in Instrument) PriceFromTicks(t int64) decimal.Decimal {
	return in.TickSize.Mul(decimal.NewFromInt(t))
}
