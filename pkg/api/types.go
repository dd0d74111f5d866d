package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/swapslot/escrowd/pkg/ledger"
)

// API request/response types for REST endpoints and WebSocket messages.

// ==============================
// REST Response Types
// ==============================

// TradeInfo is one open trade as seen through the query surface.
type TradeInfo struct {
	Slot              string `json:"slot"`
	Maker             string `json:"maker"`
	TakerAmount       uint64 `json:"takerAmount"`
	MakerAmount       uint64 `json:"makerAmount"`
	TakerAssetAccount string `json:"takerAssetAccount"`
	MakerAssetAccount string `json:"makerAssetAccount"`
	CreatedAt         int64  `json:"createdAt"` // unix seconds
}

// SlotInfo is the explicit two-state view of one escrow slot.
type SlotInfo struct {
	Slot     string     `json:"slot"`
	Occupied bool       `json:"occupied"`
	Trade    *TradeInfo `json:"trade,omitempty"`
}

// AccountInfo is a raw ledger account.
type AccountInfo struct {
	Address string        `json:"address"`
	Balance uint64        `json:"balance"`
	Owner   string        `json:"owner"`
	Data    hexutil.Bytes `json:"data,omitempty"`
}

// TokenAccountInfo is a decoded token account record.
type TokenAccountInfo struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Holder  string `json:"holder"`
	Amount  uint64 `json:"amount"`
}

// SubmitResponse is returned from transaction submission.
type SubmitResponse struct {
	Status  string `json:"status"` // "executed"
	EventID string `json:"eventId"`
	Type    string `json:"type"` // "trade_created" | "trade_settled"
}

// NodeStatus is the health/identity response.
type NodeStatus struct {
	Status        string        `json:"status"`
	EscrowProgram string        `json:"escrowProgram"`
	TokenProgram  string        `json:"tokenProgram"`
	Authority     string        `json:"authority"`
	AttesterKey   hexutil.Bytes `json:"attesterKey,omitempty"`
}

// ErrorResponse is returned for all errors. Code carries the escrow
// program's taxonomy code when the failure is a domain error, -1 otherwise.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ==============================
// REST Request Types
// ==============================

// FaucetRequest is the payload for POST /api/v1/faucet.
type FaucetRequest struct {
	Address ledger.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

// CreateSlotRequest is the payload for POST /api/v1/slots.
type CreateSlotRequest struct {
	Payer   ledger.Address `json:"payer"`
	Address ledger.Address `json:"address"`
}

// CreateMintRequest is the payload for POST /api/v1/mints.
type CreateMintRequest struct {
	Payer     ledger.Address `json:"payer"`
	Address   ledger.Address `json:"address"`
	Authority ledger.Address `json:"authority"`
}

// CreateTokenAccountRequest is the payload for POST /api/v1/token-accounts.
type CreateTokenAccountRequest struct {
	Payer   ledger.Address `json:"payer"`
	Address ledger.Address `json:"address"`
	Mint    ledger.Address `json:"mint"`
	Holder  ledger.Address `json:"holder"`
}

// MintToRequest is the payload for POST /api/v1/mint.
type MintToRequest struct {
	Mint   ledger.Address `json:"mint"`
	Dest   ledger.Address `json:"dest"`
	Amount uint64         `json:"amount"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// The settlement feed lives on the "trades" channel.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades"]
}
