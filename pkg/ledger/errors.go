package ledger

import "errors"

// Host-originated errors. Programs surface these unchanged to the caller;
// they are distinct from any program's domain taxonomy.
var (
	// ErrInvalidArgument covers malformed or mismatched caller input:
	// wrong account in a positional slot, bad address encoding, amounts
	// outside a program's accepted range.
	ErrInvalidArgument = errors.New("ledger: invalid argument")

	// ErrNotRentExempt is returned when an account's balance does not meet
	// the durability-exemption threshold for its allocated size.
	ErrNotRentExempt = errors.New("ledger: account not rent exempt")

	// ErrLengthMismatch is returned by fixed-layout codecs when the input
	// is truncated or over-long. No partial decode is ever accepted.
	ErrLengthMismatch = errors.New("ledger: data length mismatch")

	// ErrUnauthorized is returned when an authority handle does not match
	// the identity a mutation requires.
	ErrUnauthorized = errors.New("ledger: unauthorized")

	// ErrMissingAccount is returned when a program indexes past the end of
	// the caller-supplied account list.
	ErrMissingAccount = errors.New("ledger: missing account")

	// ErrAccountExists is returned by CreateAccount when the target slot
	// already carries balance or data.
	ErrAccountExists = errors.New("ledger: account already exists")

	// ErrInsufficientBalance is returned on native-balance debits that
	// exceed the account's balance.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrNotWritable is returned when a program mutates an account the
	// caller declared read-only.
	ErrNotWritable = errors.New("ledger: account not writable")
)
