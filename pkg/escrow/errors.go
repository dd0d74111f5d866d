package escrow

import "fmt"

// Error is the escrow program's closed domain taxonomy. The numeric codes
// are part of the external contract (the API surfaces them verbatim);
// host-originated failures pass through as ledger/token sentinels instead.
type Error uint8

const (
	// ErrInvalidInstruction: unrecognized discriminant or malformed
	// parameter block.
	ErrInvalidInstruction Error = iota

	// ErrTradeAlreadyExist: creation attempted on an occupied slot.
	ErrTradeAlreadyExist

	// ErrTradeNotFound: completion attempted on an unoccupied slot.
	ErrTradeNotFound

	// ErrInsufficientFunds: the taker's paying account cannot cover the
	// requested amount.
	ErrInsufficientFunds
)

func (e Error) Error() string {
	switch e {
	case ErrInvalidInstruction:
		return "escrow: invalid instruction"
	case ErrTradeAlreadyExist:
		return "escrow: trade already exists"
	case ErrTradeNotFound:
		return "escrow: trade not found"
	case ErrInsufficientFunds:
		return "escrow: insufficient funds"
	default:
		return fmt.Sprintf("escrow: unknown error %d", uint8(e))
	}
}

// Code returns the numeric error code surfaced to callers.
func (e Error) Code() uint8 { return uint8(e) }
