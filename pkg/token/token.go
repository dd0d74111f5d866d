package token

import (
	"encoding/binary"
	"fmt"

	"github.com/swapslot/escrowd/pkg/ledger"
)

// The token service is the fungible-asset collaborator: it owns every mint
// and token account on the ledger and is the only program that rewrites
// their records. Other programs (the escrow program) move balances by
// invoking Transfer with an authority handle.

// ProgramAddress is the token service's derived program id.
var ProgramAddress = ledger.DeriveAddress([]byte("program"), []byte("token"))

// Packed record sizes. Both layouts are big-endian with no padding and are
// read and written only as whole blocks.
const (
	AccountSize = 72 // mint (32) + holder (32) + amount (8)
	MintSize    = 40 // authority (32) + supply (8)
)

// Account is one party's balance of one asset: the mint it belongs to, the
// holder principal whose authority moves it, and the amount.
type Account struct {
	Mint   ledger.Address
	Holder ledger.Address
	Amount uint64
}

// Mint describes one fungible asset: the authority allowed to issue supply,
// and the total issued so far.
type Mint struct {
	Authority ledger.Address
	Supply    uint64
}

// Pack encodes the token account record in its fixed wire layout.
func (a Account) Pack() [AccountSize]byte {
	var out [AccountSize]byte
	copy(out[0:32], a.Mint[:])
	copy(out[32:64], a.Holder[:])
	binary.BigEndian.PutUint64(out[64:72], a.Amount)
	return out
}

// UnpackAccount decodes a token account record, rejecting any input that is
// not exactly AccountSize bytes.
func UnpackAccount(b []byte) (Account, error) {
	if len(b) != AccountSize {
		return Account{}, fmt.Errorf("%w: token account must be %d bytes, got %d", ledger.ErrLengthMismatch, AccountSize, len(b))
	}
	var a Account
	copy(a.Mint[:], b[0:32])
	copy(a.Holder[:], b[32:64])
	a.Amount = binary.BigEndian.Uint64(b[64:72])
	return a, nil
}

// IsInitialized reports whether the record has been bound to a mint.
func (a Account) IsInitialized() bool { return !a.Mint.IsZero() }

// Pack encodes the mint record in its fixed wire layout.
func (m Mint) Pack() [MintSize]byte {
	var out [MintSize]byte
	copy(out[0:32], m.Authority[:])
	binary.BigEndian.PutUint64(out[32:40], m.Supply)
	return out
}

// UnpackMint decodes a mint record, rejecting any input that is not exactly
// MintSize bytes.
func UnpackMint(b []byte) (Mint, error) {
	if len(b) != MintSize {
		return Mint{}, fmt.Errorf("%w: mint must be %d bytes, got %d", ledger.ErrLengthMismatch, MintSize, len(b))
	}
	var m Mint
	copy(m.Authority[:], b[0:32])
	m.Supply = binary.BigEndian.Uint64(b[32:40])
	return m, nil
}

// IsInitialized reports whether the mint has an issuing authority.
func (m Mint) IsInitialized() bool { return !m.Authority.IsZero() }
