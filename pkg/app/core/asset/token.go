package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is an in-process ERC20-style vault used to stand in for the real
// asset-transfer mechanism. It keeps external holder balances, per-holder
// allowances granted to the exchange, and the reserve currently held in
// custody. TransferIn enforces the allowance the same way transferFrom
// would, so deposit failure modes match the real thing.
type Token struct {
	mu         sync.Mutex
	name       string
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]*uint256.Int
	reserve    *uint256.Int
}

// NewToken creates an empty token vault.
func NewToken(name string) *Token {
	return &Token{
		name:       name,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]*uint256.Int),
		reserve:    new(uint256.Int),
	}
}

// Name returns the token's display name.
func (t *Token) Name() string { return t.name }

// Faucet mints amount to addr's external balance.
func (t *Token) Faucet(addr common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balances[addr]
	if bal == nil {
		bal = new(uint256.Int)
		t.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// Approve sets the allowance addr grants to the exchange.
func (t *Token) Approve(addr common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[addr] = new(uint256.Int).Set(amount)
}

// BalanceOf returns addr's external balance.
func (t *Token) BalanceOf(addr common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal := t.balances[addr]; bal != nil {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Allowance returns the remaining allowance addr has granted.
func (t *Token) Allowance(addr common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a := t.allowances[addr]; a != nil {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Reserve returns the total amount held in custody.
func (t *Token) Reserve() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reserve.Clone()
}

// TransferIn pulls amount from the holder into the vault reserve.
// Fails without side effects if the holder's allowance or balance is short.
func (t *Token) TransferIn(from common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowances[from]
	if allowance == nil || allowance.Lt(amount) {
		return fmt.Errorf("%s: insufficient allowance from %s", t.name, from.Hex())
	}
	bal := t.balances[from]
	if bal == nil || bal.Lt(amount) {
		return fmt.Errorf("%s: insufficient token balance for %s", t.name, from.Hex())
	}

	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	t.reserve.Add(t.reserve, amount)
	return nil
}

// TransferOut pushes amount from the vault reserve back to the holder.
func (t *Token) TransferOut(to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reserve.Lt(amount) {
		return fmt.Errorf("%s: vault reserve below requested amount", t.name)
	}
	t.reserve.Sub(t.reserve, amount)

	bal := t.balances[to]
	if bal == nil {
		bal = new(uint256.Int)
		t.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}

var _ Vault = (*Token)(nil)
