package token

import (
	"fmt"

	"github.com/swapslot/escrowd/pkg/ledger"
)

// Operations. All of them run inside a caller-supplied ledger transaction
// and rewrite records under tx.Invoke(ProgramAddress, ...), so the runtime's
// owner discipline holds: only the token service touches token data, and the
// mutations commit (or vanish) together with everything else in the request.

// InitializeAccount binds a freshly allocated token account to a mint and a
// holder. The ledger account must already exist with AccountSize zeroed
// bytes owned by the token service.
func InitializeAccount(tx *ledger.Tx, acct *ledger.AccountView, mint, holder ledger.Address) error {
	if acct.Owner() != ProgramAddress {
		return fmt.Errorf("%w: %s is not a token account", ledger.ErrInvalidArgument, acct.Address())
	}
	rec, err := UnpackAccount(acct.Data())
	if err != nil {
		return err
	}
	if rec.IsInitialized() {
		return fmt.Errorf("%w: token account %s", ErrAlreadyInitialized, acct.Address())
	}
	if mint.IsZero() || holder.IsZero() {
		return fmt.Errorf("%w: zero mint or holder", ledger.ErrInvalidArgument)
	}
	packed := Account{Mint: mint, Holder: holder}.Pack()
	return tx.Invoke(ProgramAddress, func() error {
		return acct.SetData(packed[:])
	})
}

// InitializeMint binds a freshly allocated mint account to its issuing
// authority.
func InitializeMint(tx *ledger.Tx, mint *ledger.AccountView, authority ledger.Address) error {
	if mint.Owner() != ProgramAddress {
		return fmt.Errorf("%w: %s is not a mint account", ledger.ErrInvalidArgument, mint.Address())
	}
	rec, err := UnpackMint(mint.Data())
	if err != nil {
		return err
	}
	if rec.IsInitialized() {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInitialized, mint.Address())
	}
	if authority.IsZero() {
		return fmt.Errorf("%w: zero mint authority", ledger.ErrInvalidArgument)
	}
	packed := Mint{Authority: authority}.Pack()
	return tx.Invoke(ProgramAddress, func() error {
		return mint.SetData(packed[:])
	})
}

// MintTo issues amount new units of the mint into dest. The authority
// handle must speak for the mint's issuing authority.
func MintTo(tx *ledger.Tx, mint, dest *ledger.AccountView, amount uint64, auth ledger.Authority) error {
	m, err := UnpackMint(mint.Data())
	if err != nil {
		return err
	}
	if !m.IsInitialized() {
		return fmt.Errorf("%w: mint %s", ErrUninitialized, mint.Address())
	}
	if auth.Address() != m.Authority {
		return fmt.Errorf("%w: %s is not the mint authority", ledger.ErrUnauthorized, auth.Address())
	}
	d, err := UnpackAccount(dest.Data())
	if err != nil {
		return err
	}
	if !d.IsInitialized() {
		return fmt.Errorf("%w: token account %s", ErrUninitialized, dest.Address())
	}
	if d.Mint != mint.Address() {
		return fmt.Errorf("%w: account %s belongs to mint %s", ErrMintMismatch, dest.Address(), d.Mint)
	}
	m.Supply += amount
	d.Amount += amount
	mintPacked, destPacked := m.Pack(), d.Pack()
	return tx.Invoke(ProgramAddress, func() error {
		if err := mint.SetData(mintPacked[:]); err != nil {
			return err
		}
		return dest.SetData(destPacked[:])
	})
}

// Transfer moves amount from source to dest. The authority handle must
// speak for the source holder — a direct envelope signer, or a derived
// program authority (how the escrow program releases its holding account
// without ever possessing a key).
func Transfer(tx *ledger.Tx, source, dest *ledger.AccountView, amount uint64, auth ledger.Authority) error {
	if source.Address() == dest.Address() {
		return fmt.Errorf("%w: self transfer", ledger.ErrInvalidArgument)
	}
	if source.Owner() != ProgramAddress || dest.Owner() != ProgramAddress {
		return fmt.Errorf("%w: transfer endpoints must be token accounts", ledger.ErrInvalidArgument)
	}
	src, err := UnpackAccount(source.Data())
	if err != nil {
		return err
	}
	dst, err := UnpackAccount(dest.Data())
	if err != nil {
		return err
	}
	if !src.IsInitialized() || !dst.IsInitialized() {
		return fmt.Errorf("%w: transfer endpoint", ErrUninitialized)
	}
	if auth.Address() != src.Holder {
		return fmt.Errorf("%w: %s does not hold %s", ledger.ErrUnauthorized, auth.Address(), source.Address())
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: balance %d, transfer %d", ErrInsufficientBalance, src.Amount, amount)
	}
	src.Amount -= amount
	dst.Amount += amount
	srcPacked, dstPacked := src.Pack(), dst.Pack()
	return tx.Invoke(ProgramAddress, func() error {
		if err := source.SetData(srcPacked[:]); err != nil {
			return err
		}
		return dest.SetData(dstPacked[:])
	})
}
