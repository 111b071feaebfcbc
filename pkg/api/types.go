package api

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Mutating requests carry no trader address. The caller signs a canonical
// message with their key and the server recovers the address from the
// signature, so requests cannot act on someone else's account.

// DepositRequest is the payload for POST /api/v1/deposit.
type DepositRequest struct {
	Ticker    string `json:"ticker"`
	Amount    string `json:"amount"`    // decimal string
	Signature string `json:"signature"` // 65-byte hex over CanonicalMessage
}

func (r *DepositRequest) CanonicalMessage() []byte {
	return []byte(fmt.Sprintf("tokendex|deposit|%s|%s", r.Ticker, r.Amount))
}

// WithdrawRequest is the payload for POST /api/v1/withdraw.
type WithdrawRequest struct {
	Ticker    string `json:"ticker"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

func (r *WithdrawRequest) CanonicalMessage() []byte {
	return []byte(fmt.Sprintf("tokendex|withdraw|%s|%s", r.Ticker, r.Amount))
}

// OrderRequest is the payload for POST /api/v1/orders. Type selects between
// a resting limit order and an immediately matched market order. Price is
// required for limit orders and ignored for market orders.
type OrderRequest struct {
	Type      string `json:"type"` // "limit" or "market"
	Ticker    string `json:"ticker"`
	Side      string `json:"side"` // "buy" or "sell"
	Amount    string `json:"amount"`
	Price     string `json:"price,omitempty"`
	Signature string `json:"signature"`
}

func (r *OrderRequest) CanonicalMessage() []byte {
	return []byte(fmt.Sprintf("tokendex|order|%s|%s|%s|%s|%s", r.Type, r.Side, r.Ticker, r.Amount, r.Price))
}

// FaucetRequest mints dev tokens to an external address and is not signed.
type FaucetRequest struct {
	Address string `json:"address"`
	Ticker  string `json:"ticker"`
	Amount  string `json:"amount"`
}

// ApproveRequest grants the exchange an allowance on the caller's external
// token balance, the step required before a deposit can pull funds.
type ApproveRequest struct {
	Ticker    string `json:"ticker"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

func (r *ApproveRequest) CanonicalMessage() []byte {
	return []byte(fmt.Sprintf("tokendex|approve|%s|%s", r.Ticker, r.Amount))
}

// AddAssetRequest is the admin payload for POST /api/v1/admin/assets.
type AddAssetRequest struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// AssetInfo describes one registered asset.
type AssetInfo struct {
	Ticker     string `json:"ticker"`
	Settlement bool   `json:"settlement"`
}

// BalanceInfo is one (ticker, amount) row of an account's balances.
type BalanceInfo struct {
	Ticker string `json:"ticker"`
	Amount string `json:"amount"`
}

// OrderInfo is the wire form of a resting order.
type OrderInfo struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Ticker    string `json:"ticker"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	Filled    string `json:"filled"`
	Remaining string `json:"remaining"`
	CreatedAt int64  `json:"createdAt"` // Unix milliseconds
}

// PriceLevel is one aggregated [price, amount] level of book depth.
type PriceLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderbookSnapshot is the full depth of one market.
type OrderbookSnapshot struct {
	Ticker    string       `json:"ticker"`
	Bids      []PriceLevel `json:"bids"` // best bid first
	Asks      []PriceLevel `json:"asks"` // best ask first
	Timestamp int64        `json:"timestamp"`
}

// TradeInfo is the wire form of an executed fill.
type TradeInfo struct {
	ID           uint64 `json:"id"`
	Ticker       string `json:"ticker"`
	TakerSide    string `json:"takerSide"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Value        string `json:"value"`
	Taker        string `json:"taker"`
	Maker        string `json:"maker"`
	MakerOrderID uint64 `json:"makerOrderId"`
	Timestamp    int64  `json:"timestamp"`
}

// OrderResponse is returned from a successful order submission.
type OrderResponse struct {
	Status string       `json:"status"` // "resting" or "executed"
	Order  *OrderInfo   `json:"order,omitempty"`
	Trades []*TradeInfo `json:"trades,omitempty"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by a client to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["trades:REP","orderbook:REP"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on the "trades:<ticker>" channel for every fill.
type TradeUpdate struct {
	Type  string     `json:"type"` // "trade"
	Trade *TradeInfo `json:"trade"`
}

// OrderbookUpdate is broadcast on "orderbook:<ticker>" after matching.
type OrderbookUpdate struct {
	Type     string            `json:"type"` // "orderbook"
	Snapshot OrderbookSnapshot `json:"snapshot"`
}

// parseAmount converts a decimal string into a uint256 value.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
