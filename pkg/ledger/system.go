package ledger

import "fmt"

// Host services of the system program: account creation and devnet airdrops.
// These run through the same Execute path as program requests, so they
// inherit the locking and all-or-nothing commit discipline.

// CreateAccount allocates a fresh account at addr: size bytes of zeroed
// data, the given owning program, and a durability deposit debited from
// payer's native balance. Fails with ErrAccountExists if the address already
// carries balance, owner, or data.
//
// The deposit is the caller's choice; programs that require rent exemption
// (the escrow program does, for its slots) re-check the threshold against
// the rent sysvar at use time.
func (l *Ledger) CreateAccount(payer, addr, owner Address, size int, deposit uint64) error {
	if owner.IsZero() {
		return fmt.Errorf("%w: zero owner", ErrInvalidArgument)
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidArgument)
	}
	metas := []AccountMeta{
		{Address: payer, Writable: true},
		{Address: addr, Writable: true},
	}
	return l.Execute(payer, SystemProgram, metas, func(tx *Tx) error {
		payerView, err := tx.Account(0)
		if err != nil {
			return err
		}
		target, err := tx.Account(1)
		if err != nil {
			return err
		}
		if !target.acc.IsEmpty() {
			return fmt.Errorf("%w: %s", ErrAccountExists, addr)
		}
		if err := payerView.Debit(deposit); err != nil {
			return err
		}
		target.acc.Owner = owner
		target.acc.Data = make([]byte, size)
		target.acc.Balance = deposit
		return nil
	})
}

// Airdrop credits native balance out of thin air. Devnet bootstrap only; a
// production deployment would replace this with a bridge or genesis
// allocation. Unowned target accounts are claimed by the system program so
// they can later fund CreateAccount deposits.
func (l *Ledger) Airdrop(addr Address, amount uint64) error {
	metas := []AccountMeta{{Address: addr, Writable: true}}
	return l.Execute(addr, SystemProgram, metas, func(tx *Tx) error {
		v, err := tx.Account(0)
		if err != nil {
			return err
		}
		if v.acc.Owner.IsZero() {
			v.acc.Owner = SystemProgram
		}
		return v.Credit(amount)
	})
}
