// Package exchange implements the trading core: deposits and withdrawals
// against external asset vaults, resting limit orders, and market-order
// matching at price-time priority.
package exchange

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/ledger"
	"github.com/jmpark/tokendex/pkg/app/core/orderbook"
	"github.com/jmpark/tokendex/pkg/util"
)

// Exchange owns all trading state. Every public method takes the single lock,
// so operations are serialized and each one either completes fully or leaves
// no observable change.
type Exchange struct {
	mu       sync.RWMutex
	registry *asset.Registry
	ledger   *ledger.Ledger
	books    map[asset.Ticker]*orderbook.Book

	nextOrderID uint64
	nextTradeID uint64

	store   Persistence
	journal Journal
	clock   util.Clock
	log     *zap.SugaredLogger
}

// Option configures an Exchange at construction time.
type Option func(*Exchange)

// WithStore enables write-through persistence.
func WithStore(s Persistence) Option {
	return func(ex *Exchange) { ex.store = s }
}

// WithJournal enables the append-only operation journal.
func WithJournal(j Journal) Option {
	return func(ex *Exchange) { ex.journal = j }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(c util.Clock) Option {
	return func(ex *Exchange) { ex.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(ex *Exchange) { ex.log = l }
}

// New creates an exchange over the given asset registry. The registry's
// settlement asset is the quote currency for every market.
func New(registry *asset.Registry, opts ...Option) *Exchange {
	ex := &Exchange{
		registry:    registry,
		ledger:      ledger.New(),
		books:       make(map[asset.Ticker]*orderbook.Book),
		nextOrderID: 1,
		nextTradeID: 1,
		clock:       util.RealClock{},
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ex)
	}
	return ex
}

// AddAsset registers a tradable asset and opens its order book.
func (ex *Exchange) AddAsset(ticker asset.Ticker, vault asset.Vault) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if err := ex.registry.Add(ticker, vault); err != nil {
		return err
	}
	ex.books[ticker] = orderbook.NewBook(ticker)
	ex.journalf("asset add %s", ticker)
	ex.log.Infow("asset registered", "ticker", ticker.String())
	return nil
}

// Deposit pulls amount of ticker from the trader's vault holdings into the
// exchange and credits the internal balance.
func (ex *Exchange) Deposit(trader common.Address, ticker asset.Ticker, amount *uint256.Int) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	vault, ok := ex.registry.Lookup(ticker)
	if !ok {
		return ErrUnknownAsset
	}
	if amount == nil || amount.IsZero() {
		return ErrNonPositiveAmount
	}
	if err := vault.TransferIn(trader, amount); err != nil {
		return fmt.Errorf("vault transfer in: %w", err)
	}
	ex.ledger.Credit(trader, ticker, amount)

	ex.persistBalance(trader, ticker)
	ex.journalf("deposit %s %s %s", trader.Hex(), ticker, amount.Dec())
	ex.log.Infow("deposit", "trader", trader.Hex(), "ticker", ticker.String(), "amount", amount.Dec())
	return nil
}

// Withdraw debits the internal balance and pushes amount of ticker back to
// the trader through the vault. The debit happens first; if the vault
// rejects the transfer the debit is rolled back.
func (ex *Exchange) Withdraw(trader common.Address, ticker asset.Ticker, amount *uint256.Int) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	vault, ok := ex.registry.Lookup(ticker)
	if !ok {
		return ErrUnknownAsset
	}
	if amount == nil || amount.IsZero() {
		return ErrNonPositiveAmount
	}
	if ex.ledger.Balance(trader, ticker).Lt(amount) {
		return ErrInsufficientBalance
	}
	if err := ex.ledger.Debit(trader, ticker, amount); err != nil {
		return err
	}
	if err := vault.TransferOut(trader, amount); err != nil {
		ex.ledger.Credit(trader, ticker, amount)
		return fmt.Errorf("vault transfer out: %w", err)
	}

	ex.persistBalance(trader, ticker)
	ex.journalf("withdraw %s %s %s", trader.Hex(), ticker, amount.Dec())
	ex.log.Infow("withdraw", "trader", trader.Hex(), "ticker", ticker.String(), "amount", amount.Dec())
	return nil
}

// CreateLimitOrder places a resting order on the book. Limit orders never
// match on arrival, even when the book is crossed; only market orders
// trigger matching. Sellers must hold the asset, buyers must hold the full
// settlement cost, checked up front.
func (ex *Exchange) CreateLimitOrder(trader common.Address, ticker asset.Ticker, side orderbook.Side, amount, price *uint256.Int) (*orderbook.Order, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if _, ok := ex.registry.Lookup(ticker); !ok {
		return nil, ErrUnknownAsset
	}
	if ex.registry.IsSettlement(ticker) {
		return nil, ErrCannotTradeSettlementAsset
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrNonPositiveAmount
	}
	if price == nil || price.IsZero() {
		return nil, ErrNonPositivePrice
	}
	if side == orderbook.Sell {
		if ex.ledger.Balance(trader, ticker).Lt(amount) {
			return nil, ErrInsufficientAssetBalance
		}
	} else {
		cost, overflow := new(uint256.Int).MulOverflow(amount, price)
		if overflow || ex.ledger.Balance(trader, ex.registry.Settlement()).Lt(cost) {
			return nil, ErrInsufficientSettlementBalance
		}
	}

	o := &orderbook.Order{
		ID:        ex.nextOrderID,
		Trader:    trader,
		Ticker:    ticker,
		Side:      side,
		Amount:    amount.Clone(),
		Price:     price.Clone(),
		Filled:    new(uint256.Int),
		CreatedAt: ex.clock.Now().UnixMilli(),
	}
	ex.nextOrderID++
	ex.book(ticker).Insert(o)

	if ex.store != nil {
		if err := ex.store.SaveOrder(o); err != nil {
			ex.log.Warnw("persist order failed", "id", o.ID, "err", err)
		}
		ex.persistCounters()
	}
	ex.journalf("order limit %s %s %s %s @ %s id=%d", trader.Hex(), side, ticker, amount.Dec(), price.Dec(), o.ID)
	ex.log.Infow("limit order resting",
		"id", o.ID, "trader", trader.Hex(), "ticker", ticker.String(),
		"side", side.String(), "amount", amount.Dec(), "price", price.Dec())
	return o.Clone(), nil
}

// fill is one planned match of a market order against a resting order.
type fill struct {
	order   *orderbook.Order
	matched *uint256.Int
	value   *uint256.Int
}

// CreateMarketOrder sweeps the opposite side of the book at resting prices,
// best price first, until amount is filled or the book runs dry. Unfilled
// remainder is discarded, never rested.
//
// A market sell checks the seller's asset balance up front. A market buy has
// no upfront check: the cost is only known as fills accrue, so the buyer's
// settlement balance is validated per fill. Fills are planned against a
// scratch copy of the balances and committed only if every step clears, so a
// shortfall mid-sweep aborts the whole order with no state change.
func (ex *Exchange) CreateMarketOrder(trader common.Address, ticker asset.Ticker, side orderbook.Side, amount *uint256.Int) ([]*Trade, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if _, ok := ex.registry.Lookup(ticker); !ok {
		return nil, ErrUnknownAsset
	}
	if ex.registry.IsSettlement(ticker) {
		return nil, ErrCannotTradeSettlementAsset
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrNonPositiveAmount
	}
	if side == orderbook.Sell && ex.ledger.Balance(trader, ticker).Lt(amount) {
		return nil, ErrInsufficientAssetBalance
	}

	book := ex.book(ticker)
	opposite := side.Opposite()
	settle := ex.registry.Settlement()

	// Plan phase: walk the resting side computing fills against scratch
	// balances. Any debit that would overdraw aborts before anything real
	// changes.
	scratch := newScratch(ex.ledger)
	remaining := amount.Clone()
	var plan []fill
	for _, resting := range book.Orders(opposite) {
		if remaining.IsZero() {
			break
		}
		avail := resting.Remaining()
		if avail.IsZero() {
			continue
		}
		matched := avail
		if remaining.Lt(avail) {
			matched = remaining.Clone()
		}
		value, overflow := new(uint256.Int).MulOverflow(matched, resting.Price)
		if overflow {
			return nil, ErrInsufficientSettlementBalance
		}
		if side == orderbook.Buy {
			if err := scratch.debit(trader, settle, value, ErrInsufficientSettlementBalance); err != nil {
				return nil, err
			}
			scratch.credit(trader, ticker, matched)
			if err := scratch.debit(resting.Trader, ticker, matched, ErrInsufficientAssetBalance); err != nil {
				return nil, err
			}
			scratch.credit(resting.Trader, settle, value)
		} else {
			if err := scratch.debit(trader, ticker, matched, ErrInsufficientAssetBalance); err != nil {
				return nil, err
			}
			scratch.credit(trader, settle, value)
			if err := scratch.debit(resting.Trader, settle, value, ErrInsufficientSettlementBalance); err != nil {
				return nil, err
			}
			scratch.credit(resting.Trader, ticker, matched)
		}
		plan = append(plan, fill{order: resting, matched: matched, value: value})
		remaining.Sub(remaining, matched)
	}

	// Commit phase: apply balances, mark fills, evict filled makers.
	now := ex.clock.Now().UnixMilli()
	trades := make([]*Trade, 0, len(plan))
	for _, f := range plan {
		f.order.Filled.Add(f.order.Filled, f.matched)
		trades = append(trades, &Trade{
			ID:           ex.nextTradeID,
			Ticker:       ticker,
			TakerSide:    side,
			Price:        f.order.Price.Clone(),
			Amount:       f.matched,
			Value:        f.value,
			Taker:        trader,
			Maker:        f.order.Trader,
			MakerOrderID: f.order.ID,
			Timestamp:    now,
		})
		ex.nextTradeID++
	}
	scratch.commit(ex.ledger)
	book.RemoveFilled(opposite)

	ex.persistMatch(scratch, plan, trades, ticker)
	for _, t := range trades {
		ex.journalf("trade %s %s %s %s @ %s taker=%s maker=%s",
			ticker, side, t.Amount.Dec(), t.Value.Dec(), t.Price.Dec(), t.Taker.Hex(), t.Maker.Hex())
	}
	ex.log.Infow("market order executed",
		"trader", trader.Hex(), "ticker", ticker.String(), "side", side.String(),
		"requested", amount.Dec(), "fills", len(trades), "unfilled", remaining.Dec())
	return trades, nil
}

// GetOrders returns cloned snapshots of one side of a book, best price first.
func (ex *Exchange) GetOrders(ticker asset.Ticker, side orderbook.Side) ([]*orderbook.Order, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	if _, ok := ex.registry.Lookup(ticker); !ok {
		return nil, ErrUnknownAsset
	}
	live := ex.book(ticker).Orders(side)
	out := make([]*orderbook.Order, len(live))
	for i, o := range live {
		out[i] = o.Clone()
	}
	return out, nil
}

// Levels returns the aggregated depth of one side of a book.
func (ex *Exchange) Levels(ticker asset.Ticker, side orderbook.Side) ([]orderbook.Level, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	if _, ok := ex.registry.Lookup(ticker); !ok {
		return nil, ErrUnknownAsset
	}
	return ex.book(ticker).Levels(side), nil
}

// BalanceOf returns the trader's internal balance of ticker.
func (ex *Exchange) BalanceOf(trader common.Address, ticker asset.Ticker) *uint256.Int {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.ledger.Balance(trader, ticker)
}

// BalancesOf returns every internal balance held by trader.
func (ex *Exchange) BalancesOf(trader common.Address) map[asset.Ticker]*uint256.Int {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.ledger.BalancesOf(trader)
}

// Assets lists registered tickers in registration order, settlement first.
func (ex *Exchange) Assets() []asset.Ticker {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.registry.List()
}

// Settlement returns the quote asset's ticker.
func (ex *Exchange) Settlement() asset.Ticker {
	return ex.registry.Settlement()
}

// Vault returns the vault backing ticker.
func (ex *Exchange) Vault(ticker asset.Ticker) (asset.Vault, bool) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.registry.Lookup(ticker)
}

// RecentTrades returns up to limit most recent trades for ticker from the
// store, newest first. Without a store it returns nothing.
func (ex *Exchange) RecentTrades(ticker asset.Ticker, limit int) ([]*Trade, error) {
	ex.mu.RLock()
	defer ex.mu.RUnlock()

	if _, ok := ex.registry.Lookup(ticker); !ok {
		return nil, ErrUnknownAsset
	}
	if ex.store == nil {
		return nil, nil
	}
	return ex.store.LoadRecentTrades(ticker, limit)
}

// Recover restores balances, open orders and id counters from the store.
// Call once at startup, after registering assets and before serving.
func (ex *Exchange) Recover() error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.store == nil {
		return nil
	}
	entries, err := ex.store.LoadBalances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	for _, e := range entries {
		ex.ledger.Set(e.Trader, e.Ticker, e.Amount)
	}
	orders, err := ex.store.LoadOpenOrders()
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		ex.book(o.Ticker).Insert(o)
	}
	nextOrder, nextTrade, err := ex.store.LoadCounters()
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}
	if nextOrder > ex.nextOrderID {
		ex.nextOrderID = nextOrder
	}
	if nextTrade > ex.nextTradeID {
		ex.nextTradeID = nextTrade
	}
	ex.log.Infow("state recovered", "balances", len(entries), "openOrders", len(orders))
	return nil
}

// book returns the order book for ticker, creating it on first use.
func (ex *Exchange) book(ticker asset.Ticker) *orderbook.Book {
	b := ex.books[ticker]
	if b == nil {
		b = orderbook.NewBook(ticker)
		ex.books[ticker] = b
	}
	return b
}

func (ex *Exchange) persistBalance(trader common.Address, ticker asset.Ticker) {
	if ex.store == nil {
		return
	}
	if err := ex.store.SaveBalance(trader, ticker, ex.ledger.Balance(trader, ticker)); err != nil {
		ex.log.Warnw("persist balance failed", "trader", trader.Hex(), "ticker", ticker.String(), "err", err)
	}
}

func (ex *Exchange) persistCounters() {
	if err := ex.store.SaveCounters(ex.nextOrderID, ex.nextTradeID); err != nil {
		ex.log.Warnw("persist counters failed", "err", err)
	}
}

// persistMatch writes the outcome of one matching pass as a single batch.
func (ex *Exchange) persistMatch(scratch *scratchLedger, plan []fill, trades []*Trade, ticker asset.Ticker) {
	if ex.store == nil || len(plan) == 0 {
		return
	}
	batch := ex.store.NewBatch()
	for _, e := range scratch.entries() {
		batch.SaveBalance(e.Trader, e.Ticker, e.Amount)
	}
	for _, f := range plan {
		if f.order.IsFilled() {
			batch.DeleteOrder(ticker, f.order.ID)
		} else {
			batch.SaveOrder(f.order)
		}
	}
	for _, t := range trades {
		batch.SaveTrade(t)
	}
	batch.SaveCounters(ex.nextOrderID, ex.nextTradeID)
	if err := batch.Commit(); err != nil {
		ex.log.Warnw("persist match failed", "ticker", ticker.String(), "err", err)
	}
}

func (ex *Exchange) journalf(format string, args ...any) {
	if ex.journal == nil {
		return
	}
	if err := ex.journal.Record(fmt.Sprintf(format, args...)); err != nil {
		ex.log.Warnw("journal write failed", "err", err)
	}
}

// scratchLedger overlays pending balance mutations on top of the real
// ledger. Reads fall through to the ledger on first touch; writes stay in
// the overlay until commit.
type scratchLedger struct {
	src      *ledger.Ledger
	balances map[common.Address]map[asset.Ticker]*uint256.Int
}

func newScratch(src *ledger.Ledger) *scratchLedger {
	return &scratchLedger{
		src:      src,
		balances: make(map[common.Address]map[asset.Ticker]*uint256.Int),
	}
}

func (s *scratchLedger) get(trader common.Address, ticker asset.Ticker) *uint256.Int {
	row := s.balances[trader]
	if row == nil {
		row = make(map[asset.Ticker]*uint256.Int)
		s.balances[trader] = row
	}
	bal := row[ticker]
	if bal == nil {
		bal = s.src.Balance(trader, ticker)
		row[ticker] = bal
	}
	return bal
}

func (s *scratchLedger) credit(trader common.Address, ticker asset.Ticker, amount *uint256.Int) {
	bal := s.get(trader, ticker)
	bal.Add(bal, amount)
}

// debit subtracts amount, returning insufficient when the overlay balance
// cannot cover it.
func (s *scratchLedger) debit(trader common.Address, ticker asset.Ticker, amount *uint256.Int, insufficient error) error {
	bal := s.get(trader, ticker)
	if bal.Lt(amount) {
		return insufficient
	}
	bal.Sub(bal, amount)
	return nil
}

// commit writes every touched balance back to the real ledger.
func (s *scratchLedger) commit(dst *ledger.Ledger) {
	for trader, row := range s.balances {
		for ticker, bal := range row {
			dst.Set(trader, ticker, bal)
		}
	}
}

// entries returns the touched balances for batch persistence.
func (s *scratchLedger) entries() []ledger.Entry {
	var out []ledger.Entry
	for trader, row := range s.balances {
		for ticker, bal := range row {
			out = append(out, ledger.Entry{Trader: trader, Ticker: ticker, Amount: bal.Clone()})
		}
	}
	return out
}
