// Package orderbook keeps the resting limit orders for one tradable asset,
// ordered by price-time priority.
package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
)

// Side of an order.
type Side int8

const (
	Buy Side = iota
	Sell
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

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide converts the wire representation ("buy"/"sell") to a Side.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "buy":
		return Buy, true
	case "sell":
		return Sell, true
	default:
		return 0, false
	}
}

// Order is a resting limit order. Amount and Price are fixed at creation;
// Filled grows monotonically toward Amount as fills accrue.
type Order struct {
	ID        uint64
	Trader    common.Address
	Ticker    asset.Ticker
	Side      Side
	Amount    *uint256.Int
	Price     *uint256.Int // settlement units per unit of the asset
	Filled    *uint256.Int
	CreatedAt int64 // Unix milliseconds
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() *uint256.Int {
	return new(uint256.Int).Sub(o.Amount, o.Filled)
}

// IsFilled reports whether the order is completely matched.
func (o *Order) IsFilled() bool {
	return o.Filled.Eq(o.Amount)
}

// Clone returns a deep copy, safe to hand out as a read-only snapshot.
func (o *Order) Clone() *Order {
	return &Order{
		ID:        o.ID,
		Trader:    o.Trader,
		Ticker:    o.Ticker,
		Side:      o.Side,
		Amount:    o.Amount.Clone(),
		Price:     o.Price.Clone(),
		Filled:    o.Filled.Clone(),
		CreatedAt: o.CreatedAt,
	}
}

// Book holds both sides of the order book for one ticker.
//
// Invariant: buys are ordered by price descending, sells by price ascending,
// ties broken by ascending order id. The head of each slice is the best
// price on that side.
type Book struct {
	ticker asset.Ticker
	buys   []*Order
	sells  []*Order
}

// NewBook creates an empty book for ticker.
func NewBook(ticker asset.Ticker) *Book {
	return &Book{ticker: ticker}
}

// Ticker returns the asset this book trades.
func (b *Book) Ticker() asset.Ticker { return b.ticker }

// Insert places an order at its sorted position with a linear scan from the
// head. Equal prices fall through the scan, so an order always lands behind
// earlier orders at its price level (FIFO within a level). Book depth is
// small, so O(n) insertion is the whole story.
func (b *Book) Insert(o *Order) {
	q := b.queue(o.Side)
	at := len(*q)
	for i, resting := range *q {
		if beatsPrice(o, resting) {
			at = i
			break
		}
	}
	*q = append(*q, nil)
	copy((*q)[at+1:], (*q)[at:])
	(*q)[at] = o
}

// beatsPrice reports whether the incoming order has strictly better price
// priority than a resting one.
func beatsPrice(incoming, resting *Order) bool {
	if incoming.Side == Buy {
		return incoming.Price.Gt(resting.Price)
	}
	return incoming.Price.Lt(resting.Price)
}

// Orders returns the live ordered sequence for one side. Callers must not
// mutate it; the exchange clones entries before exposing them.
func (b *Book) Orders(side Side) []*Order {
	return *b.queue(side)
}

// RemoveFilled evicts completely filled orders from the front of one side.
// Matching only ever consumes from the head, so filled orders are always a
// prefix of the sequence.
func (b *Book) RemoveFilled(side Side) {
	q := b.queue(side)
	n := 0
	for n < len(*q) && (*q)[n].IsFilled() {
		(*q)[n] = nil // release for GC
		n++
	}
	if n > 0 {
		*q = append((*q)[:0], (*q)[n:]...)
	}
}

// Len returns the number of resting orders on one side.
func (b *Book) Len(side Side) int {
	return len(*b.queue(side))
}

// Level is an aggregated price level for depth views.
type Level struct {
	Price  *uint256.Int
	Amount *uint256.Int // total remaining quantity at this price
}

// Levels aggregates one side into price levels, best price first. The side
// is already sorted, so equal prices are contiguous.
func (b *Book) Levels(side Side) []Level {
	var levels []Level
	for _, o := range *b.queue(side) {
		rem := o.Remaining()
		if rem.IsZero() {
			continue
		}
		if n := len(levels); n > 0 && levels[n-1].Price.Eq(o.Price) {
			levels[n-1].Amount.Add(levels[n-1].Amount, rem)
			continue
		}
		levels = append(levels, Level{Price: o.Price.Clone(), Amount: rem})
	}
	return levels
}

func (b *Book) queue(side Side) *[]*Order {
	if side == Buy {
		return &b.buys
	}
	return &b.sells
}
