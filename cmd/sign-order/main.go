// sign-order builds and signs an order request ready to POST to the API.
// With no -key it generates a throwaway key pair and prints it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jmpark/tokendex/pkg/api"
	"github.com/jmpark/tokendex/pkg/crypto"
)

func main() {
	var (
		keyHex    = flag.String("key", "", "private key hex (generates a new key if empty)")
		orderType = flag.String("type", "limit", "order type: limit or market")
		side      = flag.String("side", "buy", "order side: buy or sell")
		ticker    = flag.String("ticker", "REP", "asset ticker")
		amount    = flag.String("amount", "10", "order amount")
		price     = flag.String("price", "", "limit price (ignored for market orders)")
	)
	flag.Parse()

	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		signer, err = crypto.GenerateKey()
		if err == nil {
			fmt.Printf("Generated key pair:\n")
			fmt.Printf("  Address:     %s\n", signer.Address().Hex())
			fmt.Printf("  Private key: %s (keep secret)\n\n", signer.PrivateKeyHex())
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "key: %v\n", err)
		os.Exit(1)
	}

	if *orderType == "limit" && *price == "" {
		fmt.Fprintln(os.Stderr, "limit orders need -price")
		os.Exit(1)
	}

	req := api.OrderRequest{
		Type:   *orderType,
		Ticker: *ticker,
		Side:   *side,
		Amount: *amount,
		Price:  *price,
	}
	sig, err := signer.SignMessage(req.CanonicalMessage())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}
	req.Signature = fmt.Sprintf("0x%x", sig)

	recovered, err := crypto.RecoverMessageSigner(req.CanonicalMessage(), sig)
	if err != nil || recovered != signer.Address() {
		fmt.Fprintf(os.Stderr, "signature self-check failed: %v\n", err)
		os.Exit(1)
	}

	body, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Signer: %s\n\n", signer.Address().Hex())
	fmt.Println("POST http://localhost:8080/api/v1/orders")
	fmt.Println("Content-Type: application/json")
	fmt.Println(string(body))
}
