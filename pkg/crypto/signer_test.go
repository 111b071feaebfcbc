package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSignAndRecover(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	msg := []byte("tokendex|order|market|buy|REP|10|")
	sig, err := signer.SignMessage(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	addr, err := RecoverMessageSigner(msg, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if addr != signer.Address() {
		t.Errorf("recovered %s, want %s", addr.Hex(), signer.Address().Hex())
	}

	// Tampered message recovers a different address.
	addr, err = RecoverMessageSigner([]byte("tokendex|order|market|sell|REP|10|"), sig)
	if err == nil && addr == signer.Address() {
		t.Error("tampered message must not recover the signer")
	}
}

func TestFromPrivateKeyHexRoundTrip(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	restored, err := FromPrivateKeyHex(signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Address() != signer.Address() {
		t.Errorf("restored address %s, want %s", restored.Address().Hex(), signer.Address().Hex())
	}

	// 0x prefix is accepted too.
	restored, err = FromPrivateKeyHex("0x" + signer.PrivateKeyHex())
	if err != nil {
		t.Fatalf("restore with prefix: %v", err)
	}
	if restored.Address() != signer.Address() {
		t.Error("prefixed key must restore the same address")
	}
}

func TestVerifySignature(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	other, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	msg := []byte("withdraw DAI 100")
	sig, err := signer.SignMessage(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	hash := HashMessage(msg)

	if !VerifySignature(signer.Address(), hash, sig) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(other.Address(), hash, sig) {
		t.Error("signature verified for the wrong address")
	}
	if VerifySignature(signer.Address(), hash, sig[:64]) {
		t.Error("truncated signature must fail")
	}
	if VerifySignature(common.Address{}, hash, sig) {
		t.Error("zero address must fail")
	}
}
