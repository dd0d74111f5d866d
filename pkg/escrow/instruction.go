package escrow

import (
	"encoding/binary"
	"fmt"

	"github.com/swapslot/escrowd/pkg/ledger"
)

// Request encoding: a single leading discriminant byte selects the
// instruction kind; the remainder is that kind's fixed-layout parameter
// block (amounts as 8-byte big-endian unsigned integers, references as
// 32-byte opaque identifiers).

// InstructionKind is the leading discriminant byte.
type InstructionKind uint8

const (
	CreateTrade   InstructionKind = 0
	CompleteTrade InstructionKind = 1
)

func (k InstructionKind) String() string {
	switch k {
	case CreateTrade:
		return "create_trade"
	case CompleteTrade:
		return "complete_trade"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// createParamsSize is CreateTrade's parameter block: taker_amount (8) +
// maker_amount (8) + taker_asset_account (32) + maker_asset_account (32).
const createParamsSize = 80

// CreateTradeParams are the maker's declared terms.
type CreateTradeParams struct {
	TakerAmount       uint64
	MakerAmount       uint64
	TakerAssetAccount ledger.Address
	MakerAssetAccount ledger.Address
}

// Instruction is a decoded request payload.
type Instruction struct {
	Kind   InstructionKind
	Create *CreateTradeParams // set iff Kind == CreateTrade
}

// ParseInstruction decodes a raw request payload. Unknown discriminants and
// malformed parameter blocks fail with ErrInvalidInstruction; nothing is
// ever partially decoded.
func ParseInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, fmt.Errorf("%w: empty payload", ErrInvalidInstruction)
	}
	switch InstructionKind(data[0]) {
	case CreateTrade:
		body := data[1:]
		if len(body) != createParamsSize {
			return Instruction{}, fmt.Errorf("%w: create params must be %d bytes, got %d", ErrInvalidInstruction, createParamsSize, len(body))
		}
		p := &CreateTradeParams{
			TakerAmount: binary.BigEndian.Uint64(body[0:8]),
			MakerAmount: binary.BigEndian.Uint64(body[8:16]),
		}
		copy(p.TakerAssetAccount[:], body[16:48])
		copy(p.MakerAssetAccount[:], body[48:80])
		return Instruction{Kind: CreateTrade, Create: p}, nil

	case CompleteTrade:
		if len(data) != 1 {
			return Instruction{}, fmt.Errorf("%w: complete carries no params, got %d trailing bytes", ErrInvalidInstruction, len(data)-1)
		}
		return Instruction{Kind: CompleteTrade}, nil

	default:
		return Instruction{}, fmt.Errorf("%w: discriminant %d", ErrInvalidInstruction, data[0])
	}
}

// EncodeCreateTrade builds the wire payload for a CreateTrade request.
func EncodeCreateTrade(p CreateTradeParams) []byte {
	out := make([]byte, 1+createParamsSize)
	out[0] = byte(CreateTrade)
	binary.BigEndian.PutUint64(out[1:9], p.TakerAmount)
	binary.BigEndian.PutUint64(out[9:17], p.MakerAmount)
	copy(out[17:49], p.TakerAssetAccount[:])
	copy(out[49:81], p.MakerAssetAccount[:])
	return out
}

// EncodeCompleteTrade builds the wire payload for a CompleteTrade request.
func EncodeCompleteTrade() []byte {
	return []byte{byte(CompleteTrade)}
}
