package orderbook

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
)

var (
	rep    = asset.MustTicker("REP")
	trader = common.HexToAddress("0xAA00000000000000000000000000000000000000")
)

func newOrder(id uint64, side Side, amount, price uint64) *Order {
	return &Order{
		ID:     id,
		Trader: trader,
		Ticker: rep,
		Side:   side,
		Amount: uint256.NewInt(amount),
		Price:  uint256.NewInt(price),
		Filled: new(uint256.Int),
	}
}

func prices(orders []*Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.Price.Uint64()
	}
	return out
}

func ids(orders []*Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func equalU64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertBuysBestBidFirst(t *testing.T) {
	b := NewBook(rep)

	// Creation order 10, 11, 9 must rest as 11, 10, 9.
	b.Insert(newOrder(1, Buy, 10, 10))
	b.Insert(newOrder(2, Buy, 10, 11))
	b.Insert(newOrder(3, Buy, 10, 9))

	got := prices(b.Orders(Buy))
	if !equalU64(got, []uint64{11, 10, 9}) {
		t.Errorf("buy prices = %v, want [11 10 9]", got)
	}
	if b.Len(Sell) != 0 {
		t.Errorf("sell side should be empty, has %d", b.Len(Sell))
	}
}

func TestInsertSellsBestAskFirst(t *testing.T) {
	b := NewBook(rep)

	b.Insert(newOrder(1, Sell, 10, 10))
	b.Insert(newOrder(2, Sell, 10, 8))
	b.Insert(newOrder(3, Sell, 10, 12))

	got := prices(b.Orders(Sell))
	if !equalU64(got, []uint64{8, 10, 12}) {
		t.Errorf("sell prices = %v, want [8 10 12]", got)
	}
}

func TestInsertFIFOWithinPriceLevel(t *testing.T) {
	b := NewBook(rep)

	b.Insert(newOrder(1, Buy, 10, 10))
	b.Insert(newOrder(2, Buy, 10, 10))
	b.Insert(newOrder(3, Buy, 10, 11))
	b.Insert(newOrder(4, Buy, 10, 10))

	got := ids(b.Orders(Buy))
	if !equalU64(got, []uint64{3, 1, 2, 4}) {
		t.Errorf("buy ids = %v, want [3 1 2 4]", got)
	}
}

func TestRemoveFilled(t *testing.T) {
	b := NewBook(rep)

	first := newOrder(1, Sell, 10, 8)
	second := newOrder(2, Sell, 10, 9)
	b.Insert(first)
	b.Insert(second)

	first.Filled.Set(first.Amount)
	b.RemoveFilled(Sell)

	rest := b.Orders(Sell)
	if len(rest) != 1 || rest[0].ID != 2 {
		t.Fatalf("remaining ids = %v, want [2]", ids(rest))
	}

	// Partially filled head is not evicted.
	second.Filled.SetUint64(4)
	b.RemoveFilled(Sell)
	if b.Len(Sell) != 1 {
		t.Errorf("partially filled order must keep resting")
	}
}

func TestLevelsAggregation(t *testing.T) {
	b := NewBook(rep)

	b.Insert(newOrder(1, Buy, 10, 10))
	b.Insert(newOrder(2, Buy, 5, 10))
	b.Insert(newOrder(3, Buy, 7, 9))
	partial := newOrder(4, Buy, 10, 10)
	partial.Filled.SetUint64(4)
	b.Insert(partial)

	levels := b.Levels(Buy)
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	if !levels[0].Price.Eq(uint256.NewInt(10)) || !levels[0].Amount.Eq(uint256.NewInt(21)) {
		t.Errorf("level 0 = %s@%s, want 21@10", levels[0].Amount.Dec(), levels[0].Price.Dec())
	}
	if !levels[1].Price.Eq(uint256.NewInt(9)) || !levels[1].Amount.Eq(uint256.NewInt(7)) {
		t.Errorf("level 1 = %s@%s, want 7@9", levels[1].Amount.Dec(), levels[1].Price.Dec())
	}
}

func TestOrderRemainingAndFilled(t *testing.T) {
	o := newOrder(1, Buy, 10, 10)
	if o.IsFilled() {
		t.Error("fresh order must not be filled")
	}
	o.Filled.SetUint64(4)
	if got := o.Remaining(); !got.Eq(uint256.NewInt(6)) {
		t.Errorf("remaining = %s, want 6", got.Dec())
	}
	o.Filled.SetUint64(10)
	if !o.IsFilled() {
		t.Error("order with filled == amount must report filled")
	}
}

func TestSideHelpers(t *testing.T) {
	if Buy.Opposite() != Sell || Sell.Opposite() != Buy {
		t.Error("opposite side mapping broken")
	}
	if s, ok := ParseSide("buy"); !ok || s != Buy {
		t.Error("parse buy failed")
	}
	if s, ok := ParseSide("sell"); !ok || s != Sell {
		t.Error("parse sell failed")
	}
	if _, ok := ParseSide("hold"); ok {
		t.Error("parse should reject unknown side")
	}
}
