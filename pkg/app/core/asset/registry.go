package asset

import (
	"fmt"
	"sync"
)

// Registry maps tickers to their vault handles. One ticker is reserved as
// the settlement asset: it is registered (so it can be deposited and
// withdrawn) but can never itself be traded.
type Registry struct {
	mu         sync.RWMutex
	settlement Ticker
	vaults     map[Ticker]Vault
	listed     []Ticker // registration order, for stable listings
}

// NewRegistry creates a registry with the settlement asset pre-registered.
func NewRegistry(settlement Ticker, vault Vault) *Registry {
	return &Registry{
		settlement: settlement,
		vaults:     map[Ticker]Vault{settlement: vault},
		listed:     []Ticker{settlement},
	}
}

// Add registers a tradable asset. Admin operation.
func (r *Registry) Add(ticker Ticker, vault Vault) error {
	if vault == nil {
		return fmt.Errorf("cannot register nil vault")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.vaults[ticker]; exists {
		return fmt.Errorf("asset %s already registered", ticker)
	}
	r.vaults[ticker] = vault
	r.listed = append(r.listed, ticker)
	return nil
}

// Lookup returns the vault for a ticker.
func (r *Registry) Lookup(ticker Ticker) (Vault, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vaults[ticker]
	return v, ok
}

// Settlement returns the reserved settlement ticker.
func (r *Registry) Settlement() Ticker {
	return r.settlement
}

// IsSettlement reports whether ticker is the settlement asset.
func (r *Registry) IsSettlement(ticker Ticker) bool {
	return ticker == r.settlement
}

// List returns all registered tickers in registration order.
func (r *Registry) List() []Ticker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Ticker, len(r.listed))
	copy(out, r.listed)
	return out
}

// Count returns the number of registered assets, settlement included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vaults)
}
