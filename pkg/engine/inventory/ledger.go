// Package inventory tracks the market maker's net exposure per symbol.
// Positions are mutated only by the matching engine, under the owning
// desk's writer lock, when the maker fills as counterparty.
package inventory

import "github.com/shopspring/decimal"

// Position is the maker's exposure in one symbol. NetPosition is signed:
// positive means the maker is long. AverageCost uses weighted-average-cost
// accounting and moves only on position-increasing fills.
type Position struct {
	Symbol      string
	NetPosition int64
	AverageCost decimal.Decimal
}

func NewPosition(symbol string) *Position {
	return &Position{Symbol: symbol, AverageCost: decimal.Zero}
}

// Apply records a maker-side fill. delta is the change to the maker's net
// position (positive when the maker buys, negative when it sells) and
// price the fill price.
//
// Increasing fills reweight AverageCost; decreasing fills leave it
// untouched (conceptually realizing P&L). A fill that flips the position
// through zero opens the residual at the fill price.
func (p *Position) Apply(delta int64, price decimal.Decimal) {
	if delta == 0 {
		return
	}
	old := p.NetPosition
	p.NetPosition = old + delta

	switch {
	case old == 0 || sameSign(old, delta):
		// position grows in its current direction
		oldAbs := decimal.NewFromInt(abs64(old))
		addAbs := decimal.NewFromInt(abs64(delta))
		newAbs := oldAbs.Add(addAbs)
		p.AverageCost = p.AverageCost.Mul(oldAbs).Add(price.Mul(addAbs)).Div(newAbs)
	case abs64(delta) > abs64(old):
		// flipped through zero: residual opens at the fill price
		p.AverageCost = price
	case p.NetPosition == 0:
		p.AverageCost = decimal.Zero
	}
}

// Snapshot returns a copy safe to hand to readers.
func (p *Position) Snapshot() Position {
	return Position{Symbol: p.Symbol, NetPosition: p.NetPosition, AverageCost: p.AverageCost}
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
