package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
)

// Pebble key schema:
//
//   bal:<address>:<ticker>            → balance (32-byte big-endian)
//   ord:<ticker>:<orderID>            → open order (gob)
//   trade:<ticker>:<timestamp>:<id>   → trade (gob)
//   cnt                               → id counters (2x uint64 big-endian)
//
// Numeric key segments are zero-padded to 20 digits so lexicographic order
// matches numeric order and prefix scans come back sorted.

const (
	prefixBalance = "bal:"
	prefixOrder   = "ord:"
	prefixTrade   = "trade:"
)

func balanceKey(trader common.Address, ticker asset.Ticker) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, trader.Hex(), ticker))
}

func balancePrefix() []byte {
	return []byte(prefixBalance)
}

func orderKey(ticker asset.Ticker, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixOrder, ticker, id))
}

func orderPrefix() []byte {
	return []byte(prefixOrder)
}

func tradeKey(ticker asset.Ticker, timestamp int64, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixTrade, ticker, timestamp, id))
}

func tradePrefix(ticker asset.Ticker) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, ticker))
}

func countersKey() []byte { return []byte("cnt") }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
