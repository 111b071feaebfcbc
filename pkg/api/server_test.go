package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/exchange"
	"github.com/jmpark/tokendex/pkg/crypto"
)

type testEnv struct {
	server *Server
	alice  *crypto.Signer
	bob    *crypto.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dai := asset.MustTicker("DAI")
	ex := exchange.New(asset.NewRegistry(dai, asset.NewToken("Dai Stablecoin")))
	if err := ex.AddAsset(asset.MustTicker("REP"), asset.NewToken("Augur")); err != nil {
		t.Fatalf("add asset: %v", err)
	}

	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	bob, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testEnv{
		server: NewServer(ex, zap.NewNop().Sugar(), []string{"*"}),
		alice:  alice,
		bob:    bob,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

func sign(t *testing.T, signer *crypto.Signer, message []byte) string {
	t.Helper()
	sig, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return fmt.Sprintf("0x%x", sig)
}

// fund runs the full faucet, approve, deposit flow through the API.
func (e *testEnv) fund(t *testing.T, signer *crypto.Signer, ticker string, amount string) {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/faucet", FaucetRequest{
		Address: signer.Address().Hex(), Ticker: ticker, Amount: amount,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("faucet: status %d: %s", rec.Code, rec.Body)
	}

	approve := ApproveRequest{Ticker: ticker, Amount: amount}
	approve.Signature = sign(t, signer, approve.CanonicalMessage())
	rec = e.do(t, "POST", "/api/v1/approve", approve)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: status %d: %s", rec.Code, rec.Body)
	}

	deposit := DepositRequest{Ticker: ticker, Amount: amount}
	deposit.Signature = sign(t, signer, deposit.CanonicalMessage())
	rec = e.do(t, "POST", "/api/v1/deposit", deposit)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit: status %d: %s", rec.Code, rec.Body)
	}
}

func TestGetAssets(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/api/v1/assets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var assets []AssetInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &assets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(assets) != 2 || assets[0].Ticker != "DAI" || !assets[0].Settlement {
		t.Errorf("assets = %+v", assets)
	}
	if assets[1].Ticker != "REP" || assets[1].Settlement {
		t.Errorf("assets = %+v", assets)
	}
}

func TestDepositFlowAndBalances(t *testing.T) {
	e := newTestEnv(t)
	e.fund(t, e.alice, "DAI", "500")

	rec := e.do(t, "GET", "/api/v1/accounts/"+e.alice.Address().Hex()+"/balances", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var balances []BalanceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &balances); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(balances) != 1 || balances[0].Ticker != "DAI" || balances[0].Amount != "500" {
		t.Errorf("balances = %+v", balances)
	}
}

func TestDepositRejectsBadSignature(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/api/v1/deposit", DepositRequest{
		Ticker: "DAI", Amount: "100", Signature: "0xdead",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// A signature over different fields recovers some other address, so the
// request debits nobody with funds. Tampering never touches the signer's
// account.
func TestWithdrawWithTamperedFields(t *testing.T) {
	e := newTestEnv(t)
	e.fund(t, e.alice, "DAI", "500")

	withdraw := WithdrawRequest{Ticker: "DAI", Amount: "1"}
	withdraw.Signature = sign(t, e.alice, withdraw.CanonicalMessage())
	withdraw.Amount = "500"
	rec := e.do(t, "POST", "/api/v1/withdraw", withdraw)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}

	rec = e.do(t, "GET", "/api/v1/accounts/"+e.alice.Address().Hex()+"/balances", nil)
	var balances []BalanceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &balances); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(balances) != 1 || balances[0].Amount != "500" {
		t.Errorf("balances = %+v, want untouched 500", balances)
	}
}

func TestLimitThenMarketOrder(t *testing.T) {
	e := newTestEnv(t)
	e.fund(t, e.alice, "DAI", "1000")
	e.fund(t, e.bob, "REP", "100")

	limit := OrderRequest{Type: "limit", Ticker: "REP", Side: "sell", Amount: "40", Price: "10"}
	limit.Signature = sign(t, e.bob, limit.CanonicalMessage())
	rec := e.do(t, "POST", "/api/v1/orders", limit)
	if rec.Code != http.StatusOK {
		t.Fatalf("limit order: status %d: %s", rec.Code, rec.Body)
	}
	var limitResp OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &limitResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if limitResp.Status != "resting" || limitResp.Order == nil || limitResp.Order.Remaining != "40" {
		t.Fatalf("limit response = %+v", limitResp)
	}

	market := OrderRequest{Type: "market", Ticker: "REP", Side: "buy", Amount: "15"}
	market.Signature = sign(t, e.alice, market.CanonicalMessage())
	rec = e.do(t, "POST", "/api/v1/orders", market)
	if rec.Code != http.StatusOK {
		t.Fatalf("market order: status %d: %s", rec.Code, rec.Body)
	}
	var marketResp OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &marketResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if marketResp.Status != "executed" || len(marketResp.Trades) != 1 {
		t.Fatalf("market response = %+v", marketResp)
	}
	trade := marketResp.Trades[0]
	if trade.Amount != "15" || trade.Price != "10" || trade.Value != "150" {
		t.Errorf("trade = %+v, want 15@10", trade)
	}
	if trade.Taker != e.alice.Address().Hex() || trade.Maker != e.bob.Address().Hex() {
		t.Errorf("trade parties = taker %s maker %s", trade.Taker, trade.Maker)
	}

	rec = e.do(t, "GET", "/api/v1/markets/REP/orderbook", nil)
	var snapshot OrderbookSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snapshot.Asks) != 1 || snapshot.Asks[0].Amount != "25" || snapshot.Asks[0].Price != "10" {
		t.Errorf("asks = %+v, want 25@10", snapshot.Asks)
	}
}

func TestOrderErrorMapping(t *testing.T) {
	e := newTestEnv(t)

	// Unknown asset gives 404.
	order := OrderRequest{Type: "limit", Ticker: "ZRX", Side: "buy", Amount: "10", Price: "1"}
	order.Signature = sign(t, e.alice, order.CanonicalMessage())
	if rec := e.do(t, "POST", "/api/v1/orders", order); rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset: status = %d, want 404", rec.Code)
	}

	// Trading the settlement asset gives 400.
	order = OrderRequest{Type: "limit", Ticker: "DAI", Side: "buy", Amount: "10", Price: "1"}
	order.Signature = sign(t, e.alice, order.CanonicalMessage())
	if rec := e.do(t, "POST", "/api/v1/orders", order); rec.Code != http.StatusBadRequest {
		t.Errorf("settlement asset: status = %d, want 400", rec.Code)
	}

	// Insufficient funds gives 422.
	order = OrderRequest{Type: "limit", Ticker: "REP", Side: "sell", Amount: "10", Price: "1"}
	order.Signature = sign(t, e.alice, order.CanonicalMessage())
	if rec := e.do(t, "POST", "/api/v1/orders", order); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient: status = %d, want 422", rec.Code)
	}

	// Unknown order type gives 400.
	order = OrderRequest{Type: "stop", Ticker: "REP", Side: "sell", Amount: "10"}
	order.Signature = sign(t, e.alice, order.CanonicalMessage())
	if rec := e.do(t, "POST", "/api/v1/orders", order); rec.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", rec.Code)
	}
}

func TestAdminAddAsset(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "POST", "/api/v1/admin/assets", AddAssetRequest{Ticker: "ZRX", Name: "0x Protocol"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add asset: status %d: %s", rec.Code, rec.Body)
	}

	// Duplicate registration conflicts.
	rec = e.do(t, "POST", "/api/v1/admin/assets", AddAssetRequest{Ticker: "ZRX"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", rec.Code)
	}

	rec = e.do(t, "GET", "/api/v1/assets", nil)
	var assets []AssetInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &assets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(assets) != 3 {
		t.Errorf("assets = %+v, want 3", assets)
	}
}

func TestGetOrdersBadSide(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/api/v1/markets/REP/orders?side=hold", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFaucetRejectsBadAddress(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "POST", "/api/v1/faucet", FaucetRequest{Address: "not-an-address", Ticker: "DAI", Amount: "1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
