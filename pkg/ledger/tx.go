package ledger

import "fmt"

// AccountMeta names one account in a request's ordered account list, plus
// whether the caller declared it writable. Ordering is positional and part
// of every program's contract; the runtime never searches accounts by role.
type AccountMeta struct {
	Address  Address
	Writable bool
}

// Authority is a capability handle the token service (and any other
// transfer-guarding collaborator) trusts to authorize mutations on behalf of
// an identity. Handles are minted only by a Tx: either for the request's
// envelope signer, or derived for the executing program itself. No code path
// constructs one from a bare address.
type Authority struct {
	addr Address
}

// Address returns the identity this handle speaks for.
func (a Authority) Address() Address { return a.addr }

// Tx is a copy-on-write overlay over the accounts named in one request. All
// mutations land on cloned snapshots; the Ledger commits them in a single
// atomic batch only if the program returns nil. A failed request therefore
// leaves no observable partial state.
type Tx struct {
	ledger    *Ledger
	program   Address // currently executing program (switches during Invoke)
	principal Address // request envelope signer
	metas     []AccountMeta
	views     []*AccountView
	accounts  map[Address]*Account // shared snapshots; duplicate metas alias one entry
}

// Principal returns the request envelope signer.
func (tx *Tx) Principal() Address { return tx.principal }

// Program returns the currently executing program.
func (tx *Tx) Program() Address { return tx.program }

// NumAccounts returns the length of the request's account list.
func (tx *Tx) NumAccounts() int { return len(tx.metas) }

// Account returns the positional account view at index i.
func (tx *Tx) Account(i int) (*AccountView, error) {
	if i < 0 || i >= len(tx.views) {
		return nil, fmt.Errorf("%w: account index %d of %d", ErrMissingAccount, i, len(tx.views))
	}
	return tx.views[i], nil
}

// Signer mints the authority handle for the request's envelope signer.
func (tx *Tx) Signer() Authority {
	return Authority{addr: tx.principal}
}

// ProgramSigner mints the derived authority handle for the executing
// program: a deterministic signing identity with no private key, trusted by
// collaborators exactly because only the program's own execution context can
// mint it.
func (tx *Tx) ProgramSigner(seeds ...[]byte) Authority {
	return Authority{addr: DeriveProgramAddress(tx.program, seeds...)}
}

// Invoke runs fn with the executing program switched to the given program,
// restoring the caller afterwards. This is how one program calls into
// another (the escrow program into the token service) while keeping the
// owner discipline on account mutations meaningful.
func (tx *Tx) Invoke(program Address, fn func() error) error {
	prev := tx.program
	tx.program = program
	defer func() { tx.program = prev }()
	return fn()
}

// AccountView is a program's handle on one account in the request list. It
// enforces the runtime's mutation discipline: only the executing program may
// rewrite data or debit balance of accounts it owns, and only through
// writable metas. Credits are unrestricted.
type AccountView struct {
	tx   *Tx
	meta AccountMeta
	acc  *Account
}

// Address returns the account's address.
func (v *AccountView) Address() Address { return v.meta.Address }

// Writable reports whether the caller declared the account writable.
func (v *AccountView) Writable() bool { return v.meta.Writable }

// Balance returns the account's native balance in the overlay.
func (v *AccountView) Balance() uint64 { return v.acc.Balance }

// Owner returns the program owning the account.
func (v *AccountView) Owner() Address { return v.acc.Owner }

// Data returns the account's data block. Callers decode it through their
// fixed-layout codec; the runtime attaches no meaning to the bytes.
func (v *AccountView) Data() []byte { return v.acc.Data }

// SetData rewrites the account's data block. The replacement must match the
// allocated size; accounts are resized only at creation time.
func (v *AccountView) SetData(b []byte) error {
	if !v.meta.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, v.meta.Address)
	}
	if v.acc.Owner != v.tx.program {
		return fmt.Errorf("%w: program %s does not own %s", ErrUnauthorized, v.tx.program, v.meta.Address)
	}
	if len(b) != len(v.acc.Data) {
		return fmt.Errorf("%w: allocated %d bytes, got %d", ErrLengthMismatch, len(v.acc.Data), len(b))
	}
	copy(v.acc.Data, b)
	return nil
}

// Credit increases the account's native balance.
func (v *AccountView) Credit(amount uint64) error {
	if !v.meta.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, v.meta.Address)
	}
	v.acc.Balance += amount
	return nil
}

// Debit decreases the account's native balance. Only the owning program may
// debit, so escrowed durability deposits cannot be drained by arbitrary
// callers.
func (v *AccountView) Debit(amount uint64) error {
	if !v.meta.Writable {
		return fmt.Errorf("%w: %s", ErrNotWritable, v.meta.Address)
	}
	if v.acc.Owner != v.tx.program {
		return fmt.Errorf("%w: program %s does not own %s", ErrUnauthorized, v.tx.program, v.meta.Address)
	}
	if v.acc.Balance < amount {
		return fmt.Errorf("%w: balance %d, debit %d", ErrInsufficientBalance, v.acc.Balance, amount)
	}
	v.acc.Balance -= amount
	return nil
}
