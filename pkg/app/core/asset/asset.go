package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TickerLength is the fixed width of a ticker identifier.
// Short ASCII symbols ("DAI", "BAT", ...) are right-padded with zero bytes,
// mirroring the bytes32 tickers of on-chain token registries.
const TickerLength = 8

// Ticker is a fixed-width asset identifier, comparable and usable as a map key.
type Ticker [TickerLength]byte

// TickerFromString builds a Ticker from an ASCII symbol.
func TickerFromString(s string) (Ticker, error) {
	var t Ticker
	if len(s) == 0 {
		return t, fmt.Errorf("ticker must not be empty")
	}
	if len(s) > TickerLength {
		return t, fmt.Errorf("ticker %q exceeds %d bytes", s, TickerLength)
	}
	copy(t[:], s)
	return t, nil
}

// MustTicker is TickerFromString for compile-time-known symbols.
// Panics on invalid input.
func MustTicker(s string) Ticker {
	t, err := TickerFromString(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the symbol with padding stripped.
func (t Ticker) String() string {
	end := len(t)
	for end > 0 && t[end-1] == 0 {
		end--
	}
	return string(t[:end])
}

// MarshalText implements encoding.TextMarshaler so tickers render as their
// symbol in JSON responses and map keys.
func (t Ticker) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Ticker) UnmarshalText(b []byte) error {
	parsed, err := TickerFromString(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Vault is the external custody handle for one asset. Deposits pull value
// into the vault, withdrawals push it back out. Both can fail; the caller
// must treat a failure as aborting the whole enclosing operation.
type Vault interface {
	// TransferIn moves amount from the holder's external balance into the vault.
	TransferIn(from common.Address, amount *uint256.Int) error

	// TransferOut moves amount from the vault back to the holder.
	TransferOut(to common.Address, amount *uint256.Int) error
}
