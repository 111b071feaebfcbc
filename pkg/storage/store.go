// Package storage persists exchange state in Pebble. The exchange writes
// through on every state change and reloads everything at startup, so a
// restart resumes with the same balances, open orders and id counters.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/exchange"
	"github.com/jmpark/tokendex/pkg/app/core/ledger"
	"github.com/jmpark/tokendex/pkg/app/core/orderbook"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveBalance(trader common.Address, ticker asset.Ticker, balance *uint256.Int) error {
	if err := s.db.Set(balanceKey(trader, ticker), encodeBalance(balance), pebble.Sync); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

func (s *PebbleStore) SaveOrder(o *orderbook.Order) error {
	val, err := encodeGob(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if err := s.db.Set(orderKey(o.Ticker, o.ID), val, pebble.Sync); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (s *PebbleStore) DeleteOrder(ticker asset.Ticker, id uint64) error {
	if err := s.db.Delete(orderKey(ticker, id), pebble.Sync); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *PebbleStore) SaveCounters(nextOrderID, nextTradeID uint64) error {
	if err := s.db.Set(countersKey(), encodeCounters(nextOrderID, nextTradeID), pebble.Sync); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	return nil
}

// LoadBalances scans every persisted balance row. Zero balances are kept in
// the store and skipped here.
func (s *PebbleStore) LoadBalances() ([]ledger.Entry, error) {
	prefix := balancePrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("balance iter: %w", err)
	}
	defer iter.Close()

	var entries []ledger.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		trader, ticker, err := parseBalanceKey(iter.Key())
		if err != nil {
			return nil, err
		}
		bal := decodeBalance(iter.Value())
		if bal.IsZero() {
			continue
		}
		entries = append(entries, ledger.Entry{Trader: trader, Ticker: ticker, Amount: bal})
	}
	return entries, nil
}

// parseBalanceKey splits "bal:<0x-address>:<ticker>".
func parseBalanceKey(key []byte) (common.Address, asset.Ticker, error) {
	rest := string(key[len(prefixBalance):])
	const addrLen = 2 + 2*common.AddressLength
	if len(rest) < addrLen+2 || rest[addrLen] != ':' {
		return common.Address{}, asset.Ticker{}, fmt.Errorf("malformed balance key %q", key)
	}
	ticker, err := asset.TickerFromString(rest[addrLen+1:])
	if err != nil {
		return common.Address{}, asset.Ticker{}, fmt.Errorf("malformed balance key %q: %w", key, err)
	}
	return common.HexToAddress(rest[:addrLen]), ticker, nil
}

// LoadOpenOrders returns every persisted order, in ascending id order within
// each ticker. Filled orders are deleted at match time so everything here is
// still open.
func (s *PebbleStore) LoadOpenOrders() ([]*orderbook.Order, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("order iter: %w", err)
	}
	defer iter.Close()

	var orders []*orderbook.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o orderbook.Order
		if err := decodeGob(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("decode order %q: %w", iter.Key(), err)
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

func (s *PebbleStore) LoadCounters() (uint64, uint64, error) {
	val, closer, err := s.db.Get(countersKey())
	if err == pebble.ErrNotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("load counters: %w", err)
	}
	defer closer.Close()
	nextOrder, nextTrade := decodeCounters(val)
	return nextOrder, nextTrade, nil
}

// LoadRecentTrades returns up to limit trades for ticker, newest first.
func (s *PebbleStore) LoadRecentTrades(ticker asset.Ticker, limit int) ([]*exchange.Trade, error) {
	prefix := tradePrefix(ticker)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("trade iter: %w", err)
	}
	defer iter.Close()

	var trades []*exchange.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t exchange.Trade
		if err := decodeGob(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("decode trade %q: %w", iter.Key(), err)
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// NewBatch groups writes for atomic commit. Errors from encoding or staging
// are held until Commit.
func (s *PebbleStore) NewBatch() exchange.Batch {
	return &pebbleBatch{batch: s.db.NewBatch()}
}

type pebbleBatch struct {
	batch *pebble.Batch
	err   error
}

func (b *pebbleBatch) SaveBalance(trader common.Address, ticker asset.Ticker, balance *uint256.Int) {
	if b.err != nil {
		return
	}
	b.err = b.batch.Set(balanceKey(trader, ticker), encodeBalance(balance), nil)
}

func (b *pebbleBatch) SaveOrder(o *orderbook.Order) {
	if b.err != nil {
		return
	}
	val, err := encodeGob(o)
	if err != nil {
		b.err = fmt.Errorf("encode order: %w", err)
		return
	}
	b.err = b.batch.Set(orderKey(o.Ticker, o.ID), val, nil)
}

func (b *pebbleBatch) DeleteOrder(ticker asset.Ticker, id uint64) {
	if b.err != nil {
		return
	}
	b.err = b.batch.Delete(orderKey(ticker, id), nil)
}

func (b *pebbleBatch) SaveTrade(t *exchange.Trade) {
	if b.err != nil {
		return
	}
	val, err := encodeGob(t)
	if err != nil {
		b.err = fmt.Errorf("encode trade: %w", err)
		return
	}
	b.err = b.batch.Set(tradeKey(t.Ticker, t.Timestamp, t.ID), val, nil)
}

func (b *pebbleBatch) SaveCounters(nextOrderID, nextTradeID uint64) {
	if b.err != nil {
		return
	}
	b.err = b.batch.Set(countersKey(), encodeCounters(nextOrderID, nextTradeID), nil)
}

func (b *pebbleBatch) Commit() error {
	defer b.batch.Close()
	if b.err != nil {
		return b.err
	}
	return b.batch.Commit(pebble.Sync)
}

var _ exchange.Persistence = (*PebbleStore)(nil)
