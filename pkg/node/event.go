package node

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/swapslot/escrowd/pkg/crypto"
	"github.com/swapslot/escrowd/pkg/ledger"
)

// EventType tags a settlement event.
type EventType string

const (
	EventTradeCreated EventType = "trade_created"
	EventTradeSettled EventType = "trade_settled"
)

// Event is the node's settlement feed record: one per successful escrow
// instruction. It carries a BLS attestation over Digest so consumers on any
// transport (WebSocket, gossip, journal) can verify provenance.
type Event struct {
	ID                string         `json:"id"`
	Type              EventType      `json:"type"`
	Slot              ledger.Address `json:"slot"`
	Maker             ledger.Address `json:"maker"`
	Taker             ledger.Address `json:"taker,omitempty"`
	TakerAmount       uint64         `json:"taker_amount"`
	MakerAmount       uint64         `json:"maker_amount"`
	TakerAssetAccount ledger.Address `json:"taker_asset_account"`
	MakerAssetAccount ledger.Address `json:"maker_asset_account"`
	Timestamp         int64          `json:"timestamp"` // unix seconds, node clock
	Attestation       hexutil.Bytes  `json:"attestation,omitempty"`
	AttesterKey       hexutil.Bytes  `json:"attester_key,omitempty"`
}

// newEventID returns a fresh UUID string.
func newEventID() string { return uuid.New().String() }

// Digest computes the canonical keccak-256 the attestation signs. The
// attestation fields themselves are excluded.
func (e *Event) Digest() [32]byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, []byte(e.ID)...)
	buf = append(buf, byte(0))
	buf = append(buf, []byte(e.Type)...)
	buf = append(buf, byte(0))
	buf = append(buf, e.Slot[:]...)
	buf = append(buf, e.Maker[:]...)
	buf = append(buf, e.Taker[:]...)

	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], e.TakerAmount)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], e.MakerAmount)
	buf = append(buf, u64[:]...)

	buf = append(buf, e.TakerAssetAccount[:]...)
	buf = append(buf, e.MakerAssetAccount[:]...)

	binary.BigEndian.PutUint64(u64[:], uint64(e.Timestamp))
	buf = append(buf, u64[:]...)

	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// Verify checks the embedded attestation against the embedded attester key.
func (e *Event) Verify() bool {
	if len(e.Attestation) == 0 || len(e.AttesterKey) == 0 {
		return false
	}
	digest := e.Digest()
	return crypto.VerifyBLS(e.AttesterKey, digest[:], e.Attestation)
}
