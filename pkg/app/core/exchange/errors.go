package exchange

import "errors"

// Precondition failures surfaced by the four exchange operations. Each kind
// is a stable sentinel so callers can distinguish them with errors.Is.
var (
	ErrUnknownAsset                  = errors.New("this asset does not exist")
	ErrCannotTradeSettlementAsset    = errors.New("cannot trade the settlement asset")
	ErrInsufficientBalance           = errors.New("balance too low")
	ErrInsufficientAssetBalance      = errors.New("asset balance too low")
	ErrInsufficientSettlementBalance = errors.New("settlement balance too low")
	ErrNonPositiveAmount             = errors.New("amount must be positive")
	ErrNonPositivePrice              = errors.New("price must be positive")
)
