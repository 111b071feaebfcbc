package asset

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestTickerRoundTrip(t *testing.T) {
	tk, err := TickerFromString("REP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.String() != "REP" {
		t.Errorf("ticker string = %q, want %q", tk.String(), "REP")
	}
	if tk != MustTicker("REP") {
		t.Error("equal symbols should produce equal tickers")
	}
}

func TestTickerRejectsBadInput(t *testing.T) {
	if _, err := TickerFromString(""); err == nil {
		t.Error("expected error for empty ticker")
	}
	if _, err := TickerFromString("TOOLONGTICKER"); err == nil {
		t.Error("expected error for oversized ticker")
	}
}

func TestTokenFaucetAndApprove(t *testing.T) {
	tok := NewToken("REP")
	tok.Faucet(alice, uint256.NewInt(1000))

	if got := tok.BalanceOf(alice); !got.Eq(uint256.NewInt(1000)) {
		t.Errorf("balance = %s, want 1000", got.Dec())
	}
	if got := tok.Allowance(alice); !got.IsZero() {
		t.Errorf("allowance = %s, want 0", got.Dec())
	}

	tok.Approve(alice, uint256.NewInt(400))
	if got := tok.Allowance(alice); !got.Eq(uint256.NewInt(400)) {
		t.Errorf("allowance = %s, want 400", got.Dec())
	}
}

func TestTokenTransferIn(t *testing.T) {
	tok := NewToken("REP")
	tok.Faucet(alice, uint256.NewInt(100))

	// No allowance yet.
	if err := tok.TransferIn(alice, uint256.NewInt(50)); err == nil {
		t.Fatal("expected allowance error")
	}

	tok.Approve(alice, uint256.NewInt(60))
	if err := tok.TransferIn(alice, uint256.NewInt(50)); err != nil {
		t.Fatalf("transfer in failed: %v", err)
	}
	if got := tok.BalanceOf(alice); !got.Eq(uint256.NewInt(50)) {
		t.Errorf("balance = %s, want 50", got.Dec())
	}
	if got := tok.Reserve(); !got.Eq(uint256.NewInt(50)) {
		t.Errorf("reserve = %s, want 50", got.Dec())
	}

	// Allowance is spent down, not reset.
	if err := tok.TransferIn(alice, uint256.NewInt(20)); err == nil {
		t.Error("expected error: allowance should be down to 10")
	}
}

func TestTokenTransferOut(t *testing.T) {
	tok := NewToken("REP")
	tok.Faucet(alice, uint256.NewInt(100))
	tok.Approve(alice, uint256.NewInt(100))
	if err := tok.TransferIn(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("transfer in failed: %v", err)
	}

	if err := tok.TransferOut(bob, uint256.NewInt(30)); err != nil {
		t.Fatalf("transfer out failed: %v", err)
	}
	if got := tok.BalanceOf(bob); !got.Eq(uint256.NewInt(30)) {
		t.Errorf("bob balance = %s, want 30", got.Dec())
	}

	if err := tok.TransferOut(bob, uint256.NewInt(1000)); err == nil {
		t.Error("expected reserve error")
	}
}

func TestRegistry(t *testing.T) {
	dai := MustTicker("DAI")
	rep := MustTicker("REP")

	r := NewRegistry(dai, NewToken("DAI"))
	if !r.IsSettlement(dai) {
		t.Error("DAI should be the settlement asset")
	}
	if r.Settlement() != dai {
		t.Error("settlement ticker mismatch")
	}

	if err := r.Add(rep, NewToken("REP")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := r.Add(rep, NewToken("REP")); err == nil {
		t.Error("expected duplicate registration error")
	}
	if err := r.Add(MustTicker("ZRX"), nil); err == nil {
		t.Error("expected nil vault error")
	}

	if _, ok := r.Lookup(rep); !ok {
		t.Error("REP should be registered")
	}
	if _, ok := r.Lookup(MustTicker("NOPE")); ok {
		t.Error("unregistered ticker should not resolve")
	}

	if got := r.Count(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	list := r.List()
	if len(list) != 2 || list[0] != dai || list[1] != rep {
		t.Errorf("list = %v, want [DAI REP]", list)
	}
}
