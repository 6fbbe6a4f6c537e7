package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fill struct {
	delta int64
	price string
}

func TestApplyWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name    string
		fills   []fill
		wantPos int64
		wantAvg string
	}{
		{
			name:    "open long",
			fills:   []fill{{100, "10.00"}},
			wantPos: 100,
			wantAvg: "10",
		},
		{
			name:    "grow long reweights",
			fills:   []fill{{100, "10.00"}, {100, "12.00"}},
			wantPos: 200,
			wantAvg: "11",
		},
		{
			name:    "reduce long keeps average",
			fills:   []fill{{100, "10.00"}, {-40, "15.00"}},
			wantPos: 60,
			wantAvg: "10",
		},
		{
			name:    "close to flat zeroes average",
			fills:   []fill{{100, "10.00"}, {-100, "15.00"}},
			wantPos: 0,
			wantAvg: "0",
		},
		{
			name:    "flip through zero opens at fill price",
			fills:   []fill{{100, "10.00"}, {-150, "14.00"}},
			wantPos: -50,
			wantAvg: "14",
		},
		{
			name:    "open short then grow short",
			fills:   []fill{{-100, "20.00"}, {-100, "22.00"}},
			wantPos: -200,
			wantAvg: "21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPosition("BK")
			for _, f := range tt.fills {
				p.Apply(f.delta, d(f.price))
			}
			if p.NetPosition != tt.wantPos {
				t.Errorf("NetPosition = %d, want %d", p.NetPosition, tt.wantPos)
			}
			if !p.AverageCost.Equal(d(tt.wantAvg)) {
				t.Errorf("AverageCost = %s, want %s", p.AverageCost, tt.wantAvg)
			}
		})
	}
}

func TestApplyZeroDeltaIsNoop(t *testing.T) {
	p := NewPosition("BK")
	p.Apply(100, d("10"))
	p.Apply(0, d("99"))
	if p.NetPosition != 100 || !p.AverageCost.Equal(d("10")) {
		t.Errorf("zero delta changed state: pos=%d avg=%s", p.NetPosition, p.AverageCost)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	p := NewPosition("BK")
	p.Apply(50, d("10"))
	snap := p.Snapshot()
	p.Apply(50, d("20"))
	if snap.NetPosition != 50 {
		t.Errorf("snapshot mutated: NetPosition = %d, want 50", snap.NetPosition)
	}
}
