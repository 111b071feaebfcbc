// Package ledger holds the exchange's internal balances: how much of each
// asset every account has on deposit. It is a plain owned store with no
// locking of its own; the exchange serializes access.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
)

// Entry is one (account, ticker, balance) row, used for persistence and
// conservation checks.
type Entry struct {
	Trader common.Address
	Ticker asset.Ticker
	Amount *uint256.Int
}

// Ledger maps (account, ticker) to a non-negative balance.
type Ledger struct {
	balances map[common.Address]map[asset.Ticker]*uint256.Int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[asset.Ticker]*uint256.Int),
	}
}

// Balance returns a copy of the balance for (trader, ticker); zero if absent.
func (l *Ledger) Balance(trader common.Address, ticker asset.Ticker) *uint256.Int {
	if row := l.balances[trader]; row != nil {
		if bal := row[ticker]; bal != nil {
			return bal.Clone()
		}
	}
	return new(uint256.Int)
}

// Credit adds amount to (trader, ticker).
func (l *Ledger) Credit(trader common.Address, ticker asset.Ticker, amount *uint256.Int) {
	row := l.balances[trader]
	if row == nil {
		row = make(map[asset.Ticker]*uint256.Int)
		l.balances[trader] = row
	}
	bal := row[ticker]
	if bal == nil {
		bal = new(uint256.Int)
		row[ticker] = bal
	}
	bal.Add(bal, amount)
}

// Debit subtracts amount from (trader, ticker). A balance can never go
// negative: callers validate first, so a failed debit is an invariant
// violation surfaced as an error.
func (l *Ledger) Debit(trader common.Address, ticker asset.Ticker, amount *uint256.Int) error {
	row := l.balances[trader]
	if row == nil || row[ticker] == nil || row[ticker].Lt(amount) {
		return fmt.Errorf("debit of %s %s would overdraw account %s", amount.Dec(), ticker, trader.Hex())
	}
	row[ticker].Sub(row[ticker], amount)
	return nil
}

// Set overwrites the balance for (trader, ticker). Used when restoring
// persisted state at startup.
func (l *Ledger) Set(trader common.Address, ticker asset.Ticker, amount *uint256.Int) {
	row := l.balances[trader]
	if row == nil {
		row = make(map[asset.Ticker]*uint256.Int)
		l.balances[trader] = row
	}
	row[ticker] = new(uint256.Int).Set(amount)
}

// BalancesOf returns a copy of all balances held by trader.
func (l *Ledger) BalancesOf(trader common.Address) map[asset.Ticker]*uint256.Int {
	out := make(map[asset.Ticker]*uint256.Int)
	for ticker, bal := range l.balances[trader] {
		out[ticker] = bal.Clone()
	}
	return out
}

// Entries returns every non-zero balance row. Order is unspecified.
func (l *Ledger) Entries() []Entry {
	var out []Entry
	for trader, row := range l.balances {
		for ticker, bal := range row {
			if bal.IsZero() {
				continue
			}
			out = append(out, Entry{Trader: trader, Ticker: ticker, Amount: bal.Clone()})
		}
	}
	return out
}

// TotalOf sums every account's balance of ticker. Used to check the
// conservation law against vault reserves.
func (l *Ledger) TotalOf(ticker asset.Ticker) *uint256.Int {
	total := new(uint256.Int)
	for _, row := range l.balances {
		if bal := row[ticker]; bal != nil {
			total.Add(total, bal)
		}
	}
	return total
}
