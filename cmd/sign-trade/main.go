package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/swapslot/escrowd/pkg/crypto"
	"github.com/swapslot/escrowd/pkg/escrow"
	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/node"
	"github.com/swapslot/escrowd/pkg/token"
)

// sign-trade walks through building and signing a CreateTrade request:
// generate a maker key, derive the account list, sign the envelope, and
// print the JSON ready for POST /api/v1/transactions.
func main() {
	// Step 1: Generate or load key
	fmt.Println("Generating new maker keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Principal: %s\n", signer.Principal().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Name the accounts. In a real flow these come from the
	// bootstrap endpoints (/slots, /mints, /token-accounts); here they
	// are derived placeholders so the output is reproducible.
	slot := ledger.DeriveAddress([]byte("example"), []byte("slot"))
	takerAsset := ledger.DeriveAddress([]byte("example"), []byte("maker-receiving"))
	makerFunding := ledger.DeriveAddress([]byte("example"), []byte("maker-funding"))
	holding := ledger.DeriveAddress([]byte("example"), []byte("holding"))

	params := escrow.CreateTradeParams{
		TakerAmount:       300,
		MakerAmount:       500,
		TakerAssetAccount: takerAsset,
		MakerAssetAccount: holding,
	}

	fmt.Println("Trade Terms:")
	fmt.Printf("  Deposit (maker_amount): %d\n", params.MakerAmount)
	fmt.Printf("  Ask (taker_amount):     %d\n", params.TakerAmount)
	fmt.Printf("  Escrow slot:            %s\n", slot.Hex())
	fmt.Printf("  Holding account:        %s\n", holding.Hex())
	fmt.Printf("  Escrow authority:       %s\n\n", escrow.AuthorityAddress().Hex())

	// Step 3: Build the request envelope. Account order is positional
	// and fixed by the escrow program's contract.
	req := &node.Request{
		Program: escrow.ProgramAddress,
		Accounts: []node.AccountRef{
			{Address: slot, Writable: true},
			{Address: takerAsset},
			{Address: makerFunding, Writable: true},
			{Address: ledger.RentSysvar},
			{Address: holding, Writable: true},
			{Address: token.ProgramAddress},
		},
		Data:  escrow.EncodeCreateTrade(params),
		Nonce: 1,
	}

	// Step 4: Sign the canonical digest
	if err := node.SignRequest(req, signer); err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	digest := req.Digest()
	fmt.Printf("Digest:    0x%x\n", digest)
	fmt.Printf("Signature: 0x%x\n\n", []byte(req.Signature))

	// Step 5: Serialize to JSON
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Request (JSON):")
	fmt.Println(string(reqJSON))
	fmt.Println()

	// Step 6: Verify the envelope round-trips
	fmt.Println("Verifying signature...")
	recovered, err := req.Recover()
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signature VALID")
	fmt.Printf("  Signer: %s\n", recovered.Hex())
	fmt.Printf("  Matches principal: %v\n\n", recovered == signer.Principal())

	// Step 7: Show how to submit
	fmt.Println("To submit this trade to escrowd:")
	fmt.Println("  POST http://localhost:8080/api/v1/transactions")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}
