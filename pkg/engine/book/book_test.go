package book

import "testing"

func mustInsert(t *testing.T, b *Book, o *RestingOrder) {
	t.Helper()
	if err := b.Insert(o); err != nil {
		t.Fatalf("insert %s: %v", o.ID, err)
	}
}

func TestInsertValidation(t *testing.T) {
	tests := []struct {
		name    string
		order   *RestingOrder
		wantErr bool
	}{
		{name: "valid bid", order: &RestingOrder{ID: "o1", Side: Buy, PriceTick: 100, Qty: 10}},
		{name: "valid ask", order: &RestingOrder{ID: "o2", Side: Sell, PriceTick: 110, Qty: 5}},
		{name: "zero quantity", order: &RestingOrder{ID: "o3", Side: Buy, PriceTick: 100, Qty: 0}, wantErr: true},
		{name: "negative quantity", order: &RestingOrder{ID: "o4", Side: Buy, PriceTick: 100, Qty: -3}, wantErr: true},
		{name: "zero price", order: &RestingOrder{ID: "o5", Side: Sell, PriceTick: 0, Qty: 10}, wantErr: true},
	}

	b := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Insert(tt.order)
			if (err != nil) != tt.wantErr {
				t.Errorf("Insert() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// duplicate id
	if err := b.Insert(&RestingOrder{ID: "o1", Side: Buy, PriceTick: 101, Qty: 1}); err == nil {
		t.Error("expected error inserting duplicate id")
	}
}

func TestBestBidAsk(t *testing.T) {
	b := New()

	if _, _, ok := b.BestBid(); ok {
		t.Error("empty book should have no best bid")
	}
	if _, _, ok := b.BestAsk(); ok {
		t.Error("empty book should have no best ask")
	}

	mustInsert(t, b, &RestingOrder{ID: "b1", Side: Buy, PriceTick: 100, Qty: 10})
	mustInsert(t, b, &RestingOrder{ID: "b2", Side: Buy, PriceTick: 102, Qty: 5})
	mustInsert(t, b, &RestingOrder{ID: "b3", Side: Buy, PriceTick: 102, Qty: 7})
	mustInsert(t, b, &RestingOrder{ID: "a1", Side: Sell, PriceTick: 105, Qty: 4})
	mustInsert(t, b, &RestingOrder{ID: "a2", Side: Sell, PriceTick: 103, Qty: 6})

	bid, bidQty, ok := b.BestBid()
	if !ok || bid != 102 || bidQty != 12 {
		t.Errorf("BestBid() = (%d, %d, %v), want (102, 12, true)", bid, bidQty, ok)
	}
	ask, askQty, ok := b.BestAsk()
	if !ok || ask != 103 || askQty != 6 {
		t.Errorf("BestAsk() = (%d, %d, %v), want (103, 6, true)", ask, askQty, ok)
	}

	// no crossed book
	if bid >= ask {
		t.Errorf("book is crossed: best bid %d >= best ask %d", bid, ask)
	}
}

func TestMatchPriceTimePriority(t *testing.T) {
	b := New()
	// two asks at the same price: first arrival fills first
	mustInsert(t, b, &RestingOrder{ID: "early", Side: Sell, PriceTick: 100, Qty: 5, Seq: 1})
	mustInsert(t, b, &RestingOrder{ID: "late", Side: Sell, PriceTick: 100, Qty: 5, Seq: 2})
	// better-priced ask arrives last but fills first
	mustInsert(t, b, &RestingOrder{ID: "best", Side: Sell, PriceTick: 99, Qty: 2, Seq: 3})

	fills, remaining := b.Match(Buy, 10, 100, false)
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}

	want := []Fill{
		{RestingID: "best", PriceTick: 99, Qty: 2},
		{RestingID: "early", PriceTick: 100, Qty: 5},
		{RestingID: "late", PriceTick: 100, Qty: 3},
	}
	if len(fills) != len(want) {
		t.Fatalf("got %d fills, want %d: %+v", len(fills), len(want), fills)
	}
	for i, f := range fills {
		if f != want[i] {
			t.Errorf("fill[%d] = %+v, want %+v", i, f, want[i])
		}
	}

	// "late" keeps its unfilled remainder at the front of the level
	qty, ok := b.Resting("late")
	if !ok || qty != 2 {
		t.Errorf("Resting(late) = (%d, %v), want (2, true)", qty, ok)
	}
}

func TestMatchRespectsLimit(t *testing.T) {
	b := New()
	mustInsert(t, b, &RestingOrder{ID: "a1", Side: Sell, PriceTick: 100, Qty: 5})
	mustInsert(t, b, &RestingOrder{ID: "a2", Side: Sell, PriceTick: 110, Qty: 5})

	// buy limited to 105: only the 100 level is walkable
	fills, remaining := b.Match(Buy, 10, 105, false)
	if len(fills) != 1 || fills[0].PriceTick != 100 || fills[0].Qty != 5 {
		t.Errorf("fills = %+v, want one fill of 5 at 100", fills)
	}
	if remaining != 5 {
		t.Errorf("remaining = %d, want 5", remaining)
	}

	// sell limited to 120: no bid is good enough
	mustInsert(t, b, &RestingOrder{ID: "b1", Side: Buy, PriceTick: 95, Qty: 5})
	fills, remaining = b.Match(Sell, 3, 120, false)
	if len(fills) != 0 || remaining != 3 {
		t.Errorf("Match(sell@120) = (%+v, %d), want no fills, remaining 3", fills, remaining)
	}

	// marketable sell ignores the limit
	fills, remaining = b.Match(Sell, 3, 0, true)
	if len(fills) != 1 || fills[0].PriceTick != 95 || remaining != 0 {
		t.Errorf("marketable sell = (%+v, %d), want full fill at 95", fills, remaining)
	}
}

func TestMatchConservation(t *testing.T) {
	for _, qty := range []int64{1, 5, 20} {
		bb := New()
		mustInsert(t, bb, &RestingOrder{ID: "a1", Side: Sell, PriceTick: 100, Qty: 3})
		mustInsert(t, bb, &RestingOrder{ID: "a2", Side: Sell, PriceTick: 101, Qty: 4})
		mustInsert(t, bb, &RestingOrder{ID: "a3", Side: Sell, PriceTick: 102, Qty: 5})

		fills, remaining := bb.Match(Buy, qty, 0, true)
		var filled int64
		for _, f := range fills {
			filled += f.Qty
		}
		if filled+remaining != qty {
			t.Errorf("qty=%d: filled %d + remaining %d != %d", qty, filled, remaining, qty)
		}
	}
}

func TestRemove(t *testing.T) {
	b := New()
	mustInsert(t, b, &RestingOrder{ID: "b1", Side: Buy, PriceTick: 100, Qty: 10})
	mustInsert(t, b, &RestingOrder{ID: "a1", Side: Sell, PriceTick: 105, Qty: 10})

	if !b.Remove("b1") {
		t.Error("Remove(b1) = false, want true")
	}
	// idempotent: second removal reports false with no state change
	if b.Remove("b1") {
		t.Error("second Remove(b1) = true, want false")
	}
	if b.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}

	if _, _, ok := b.BestBid(); ok {
		t.Error("bid side should be empty after removal")
	}
	if _, _, ok := b.BestAsk(); !ok {
		t.Error("ask side should be untouched")
	}
}

func TestLevels(t *testing.T) {
	b := New()
	mustInsert(t, b, &RestingOrder{ID: "b1", Side: Buy, PriceTick: 100, Qty: 10})
	mustInsert(t, b, &RestingOrder{ID: "b2", Side: Buy, PriceTick: 102, Qty: 5})
	mustInsert(t, b, &RestingOrder{ID: "b3", Side: Buy, PriceTick: 102, Qty: 3})
	mustInsert(t, b, &RestingOrder{ID: "a1", Side: Sell, PriceTick: 105, Qty: 2})
	mustInsert(t, b, &RestingOrder{ID: "a2", Side: Sell, PriceTick: 103, Qty: 1})

	bids := b.BidLevels()
	if len(bids) != 2 || bids[0].PriceTick != 102 || bids[0].Qty != 8 || bids[0].Orders != 2 || bids[1].PriceTick != 100 {
		t.Errorf("BidLevels() = %+v, want [{102 8 2} {100 10 1}]", bids)
	}

	asks := b.AskLevels()
	if len(asks) != 2 || asks[0].PriceTick != 103 || asks[1].PriceTick != 105 {
		t.Errorf("AskLevels() = %+v, want best ask 103 first", asks)
	}
}
