package ledger

// Account is the unit of ledger storage: a native balance (which doubles as
// the durability deposit), an owning program, and an opaque data block whose
// layout is the owning program's business.
//
// An address with no stored account behaves as the zero-value Account: zero
// balance, zero owner, no data. Programs therefore never observe "not found"
// for accounts in their request's account list.
type Account struct {
	Balance uint64  `json:"balance"`
	Owner   Address `json:"owner"`
	Data    []byte  `json:"data,omitempty"`
}

// IsEmpty reports whether the account is indistinguishable from an address
// that was never written: no balance, no owner, no data.
func (a *Account) IsEmpty() bool {
	return a.Balance == 0 && a.Owner.IsZero() && len(a.Data) == 0
}

// Clone returns a deep copy. Transaction overlays snapshot accounts with
// Clone so a failed request cannot leak partial mutations.
func (a *Account) Clone() *Account {
	c := &Account{Balance: a.Balance, Owner: a.Owner}
	if len(a.Data) > 0 {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return c
}
