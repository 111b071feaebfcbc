package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/ledger"
	"github.com/jmpark/tokendex/pkg/app/core/orderbook"
)

// Persistence is the write-through store behind the exchange. The concrete
// implementation lives in pkg/storage; keeping the interface here lets the
// exchange stay free of storage imports.
type Persistence interface {
	SaveBalance(trader common.Address, ticker asset.Ticker, balance *uint256.Int) error
	SaveOrder(o *orderbook.Order) error
	DeleteOrder(ticker asset.Ticker, id uint64) error
	SaveCounters(nextOrderID, nextTradeID uint64) error

	// NewBatch groups the writes of one matching pass into a single atomic
	// commit.
	NewBatch() Batch

	LoadBalances() ([]ledger.Entry, error)
	LoadOpenOrders() ([]*orderbook.Order, error)
	LoadCounters() (nextOrderID, nextTradeID uint64, err error)
	LoadRecentTrades(ticker asset.Ticker, limit int) ([]*Trade, error)

	Close() error
}

// Batch accumulates writes and commits them atomically.
type Batch interface {
	SaveBalance(trader common.Address, ticker asset.Ticker, balance *uint256.Int)
	SaveOrder(o *orderbook.Order)
	DeleteOrder(ticker asset.Ticker, id uint64)
	SaveTrade(t *Trade)
	SaveCounters(nextOrderID, nextTradeID uint64)
	Commit() error
}

// Journal is an append-only human-readable log of every state-changing
// operation, for audit and replay by operators.
type Journal interface {
	Record(line string) error
	Close() error
}
