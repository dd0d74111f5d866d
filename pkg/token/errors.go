package token

import "errors"

var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds
	// the source account's token balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrMintMismatch is returned when a transfer's source and destination
	// belong to different mints, or a mint-to targets a foreign account.
	ErrMintMismatch = errors.New("token: mint mismatch")

	// ErrUninitialized is returned when an operation touches a token
	// account or mint that has not been initialized.
	ErrUninitialized = errors.New("token: uninitialized")

	// ErrAlreadyInitialized is returned when initialization targets a
	// record that is already bound.
	ErrAlreadyInitialized = errors.New("token: already initialized")
)
