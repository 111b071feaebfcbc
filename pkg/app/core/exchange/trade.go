package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/orderbook"
)

// Trade records one fill between a market (taker) order and a resting limit
// (maker) order. Price is always the maker's price.
type Trade struct {
	ID           uint64
	Ticker       asset.Ticker
	TakerSide    orderbook.Side
	Price        *uint256.Int
	Amount       *uint256.Int
	Value        *uint256.Int // Amount * Price, in settlement units
	Taker        common.Address
	Maker        common.Address
	MakerOrderID uint64
	Timestamp    int64 // Unix milliseconds
}
