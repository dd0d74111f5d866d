package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/swapslot/escrowd/pkg/ledger"
)

const (
	// TradeSize is the packed size of one trade record: the exact sum of
	// its field widths, big-endian, no padding. Slot accounts are
	// allocated with exactly this much data.
	TradeSize = 120 // maker (32) + taker_amount (8) + maker_amount (8) + taker_asset (32) + maker_asset (32) + created_at (8)

	// MinimumTradeAmount is the floor both legs of a trade must meet.
	MinimumTradeAmount = 100
)

// Trade is the record persisted in one escrow slot while a trade is live.
// The zero value is the free slot; on the wire, a zero maker identity is the
// unoccupied sentinel.
type Trade struct {
	Maker             ledger.Address `json:"maker"`               // principal that created the trade
	TakerAmount       uint64         `json:"taker_amount"`        // amount of the requested asset
	MakerAmount       uint64         `json:"maker_amount"`        // amount deposited in escrow
	TakerAssetAccount ledger.Address `json:"taker_asset_account"` // account the taker must pay into
	MakerAssetAccount ledger.Address `json:"maker_asset_account"` // the escrowed holding account
	CreatedAt         int64          `json:"created_at"`          // unix seconds, informational only
}

// Pack encodes the record in its fixed wire layout.
func (t Trade) Pack() [TradeSize]byte {
	var out [TradeSize]byte
	copy(out[0:32], t.Maker[:])
	binary.BigEndian.PutUint64(out[32:40], t.TakerAmount)
	binary.BigEndian.PutUint64(out[40:48], t.MakerAmount)
	copy(out[48:80], t.TakerAssetAccount[:])
	copy(out[80:112], t.MakerAssetAccount[:])
	binary.BigEndian.PutUint64(out[112:120], uint64(t.CreatedAt))
	return out
}

// UnpackTrade decodes a trade record, rejecting any input that is not
// exactly TradeSize bytes. Truncated or over-long blocks never partially
// parse.
func UnpackTrade(b []byte) (Trade, error) {
	if len(b) != TradeSize {
		return Trade{}, fmt.Errorf("%w: trade record must be %d bytes, got %d", ledger.ErrLengthMismatch, TradeSize, len(b))
	}
	var t Trade
	copy(t.Maker[:], b[0:32])
	t.TakerAmount = binary.BigEndian.Uint64(b[32:40])
	t.MakerAmount = binary.BigEndian.Uint64(b[40:48])
	copy(t.TakerAssetAccount[:], b[48:80])
	copy(t.MakerAssetAccount[:], b[80:112])
	t.CreatedAt = int64(binary.BigEndian.Uint64(b[112:120]))
	return t, nil
}

// IsOccupied reports whether the slot holds a live trade.
func (t Trade) IsOccupied() bool { return !t.Maker.IsZero() }

// Slot is the explicit two-state view over a slot's wire encoding: either
// free, or fully describing one live trade. No intermediate state exists.
type Slot struct {
	Occupied bool  `json:"occupied"`
	Trade    Trade `json:"trade,omitempty"`
}

// DecodeSlot decodes a slot's data block into its explicit state view.
func DecodeSlot(b []byte) (Slot, error) {
	t, err := UnpackTrade(b)
	if err != nil {
		return Slot{}, err
	}
	if !t.IsOccupied() {
		return Slot{}, nil
	}
	return Slot{Occupied: true, Trade: t}, nil
}
