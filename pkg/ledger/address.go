package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Address is an opaque 32-byte identifier for every ledger participant:
// principals (derived from a secp256k1 public key), program ids, sysvars,
// and data accounts. The zero value is never a valid participant and doubles
// as the "unset" sentinel in wire layouts.
type Address [32]byte

// ZeroAddress is the unset sentinel.
var ZeroAddress Address

// Well-known addresses. These are derived, not configured, so every node
// agrees on them without coordination.
var (
	// SystemProgram owns plain native-balance accounts and performs host
	// bookkeeping (account creation, airdrops).
	SystemProgram = DeriveAddress([]byte("program"), []byte("system"))

	// RentSysvar is the read-only account carrying the durability
	// (rent-exemption) parameters, consumed positionally by programs.
	RentSysvar = DeriveAddress([]byte("sysvar"), []byte("rent"))
)

// DeriveAddress computes a deterministic address from name seeds.
// Each seed is length-prefixed (2 bytes, big-endian) before hashing so that
// ("ab","c") and ("a","bc") cannot collide.
func DeriveAddress(seeds ...[]byte) Address {
	h := sha3.NewLegacyKeccak256()
	var lenbuf [2]byte
	for _, seed := range seeds {
		binary.BigEndian.PutUint16(lenbuf[:], uint16(len(seed)))
		h.Write(lenbuf[:])
		h.Write(seed)
	}
	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveProgramAddress computes the address of a program-controlled signing
// identity: keccak256 over the program id plus length-prefixed seeds. No
// private key exists for such an address; the runtime hands the matching
// authority handle only to the program itself.
func DeriveProgramAddress(program Address, seeds ...[]byte) Address {
	all := make([][]byte, 0, len(seeds)+2)
	all = append(all, []byte("program-authority"), program[:])
	all = append(all, seeds...)
	return DeriveAddress(all...)
}

// AddressFromPubkey derives a principal address from a 65-byte uncompressed
// secp256k1 public key (0x04 || X || Y): the full keccak256 of the key
// material. Unlike an EVM address no truncation is applied; principals keep
// all 32 bytes.
func AddressFromPubkey(pub []byte) (Address, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return Address{}, fmt.Errorf("%w: uncompressed pubkey must be 65 bytes", ErrInvalidArgument)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	var out Address
	copy(out[:], h.Sum(nil))
	return out, nil
}

// HexToAddress parses a 0x-prefixed 64-char hex string.
func HexToAddress(s string) (Address, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if len(raw) != len(Address{}) {
		return Address{}, fmt.Errorf("%w: address must be %d bytes, got %d", ErrInvalidArgument, len(Address{}), len(raw))
	}
	var out Address
	copy(out[:], raw)
	return out, nil
}

// IsZero reports whether the address is the unset sentinel.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string { return hexutil.Encode(a[:]) }

func (a Address) String() string { return a.Hex() }

// MarshalText lets addresses serialize as hex in JSON documents.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

// UnmarshalText parses the 0x-prefixed hex form.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := HexToAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
