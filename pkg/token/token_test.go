package token

import (
	"errors"
	"testing"

	"github.com/swapslot/escrowd/pkg/ledger"
)

func testAddr(tag string) ledger.Address {
	return ledger.DeriveAddress([]byte("test"), []byte(tag))
}

type harness struct {
	t     *testing.T
	l     *ledger.Ledger
	payer ledger.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l, err := ledger.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	payer := testAddr("payer")
	if err := l.Airdrop(payer, 1_000_000); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	return &harness{t: t, l: l, payer: payer}
}

func (h *harness) allocate(addr ledger.Address, size int) {
	h.t.Helper()
	rent, err := h.l.Rent()
	if err != nil {
		h.t.Fatalf("rent: %v", err)
	}
	if err := h.l.CreateAccount(h.payer, addr, ProgramAddress, size, rent.MinimumBalance(size)); err != nil {
		h.t.Fatalf("create account: %v", err)
	}
}

func (h *harness) newMint(tag string, authority ledger.Address) ledger.Address {
	h.t.Helper()
	addr := testAddr(tag)
	h.allocate(addr, MintSize)
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	err := h.l.Execute(h.payer, ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return InitializeMint(tx, v, authority)
	})
	if err != nil {
		h.t.Fatalf("init mint: %v", err)
	}
	return addr
}

func (h *harness) newAccount(tag string, mint, holder ledger.Address) ledger.Address {
	h.t.Helper()
	addr := testAddr(tag)
	h.allocate(addr, AccountSize)
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	err := h.l.Execute(h.payer, ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return InitializeAccount(tx, v, mint, holder)
	})
	if err != nil {
		h.t.Fatalf("init token account: %v", err)
	}
	return addr
}

// mintTo issues units acting as the given authority.
func (h *harness) mintTo(mint, dest ledger.Address, amount uint64, authority ledger.Address) error {
	metas := []ledger.AccountMeta{
		{Address: mint, Writable: true},
		{Address: dest, Writable: true},
	}
	return h.l.Execute(authority, ProgramAddress, metas, func(tx *ledger.Tx) error {
		m, _ := tx.Account(0)
		d, _ := tx.Account(1)
		return MintTo(tx, m, d, amount, tx.Signer())
	})
}

// transfer moves units acting as the given signer.
func (h *harness) transfer(source, dest ledger.Address, amount uint64, signer ledger.Address) error {
	metas := []ledger.AccountMeta{
		{Address: source, Writable: true},
		{Address: dest, Writable: true},
	}
	return h.l.Execute(signer, ProgramAddress, metas, func(tx *ledger.Tx) error {
		s, _ := tx.Account(0)
		d, _ := tx.Account(1)
		return Transfer(tx, s, d, amount, tx.Signer())
	})
}

func (h *harness) balance(addr ledger.Address) uint64 {
	h.t.Helper()
	acc, err := h.l.Account(addr)
	if err != nil {
		h.t.Fatalf("account: %v", err)
	}
	rec, err := UnpackAccount(acc.Data)
	if err != nil {
		h.t.Fatalf("unpack: %v", err)
	}
	return rec.Amount
}

func TestInitialize_RejectsDoubleInit(t *testing.T) {
	h := newHarness(t)
	authority := testAddr("authority")
	holder := testAddr("holder")
	mint := h.newMint("mint", authority)
	acct := h.newAccount("acct", mint, holder)

	metas := []ledger.AccountMeta{{Address: mint, Writable: true}}
	err := h.l.Execute(h.payer, ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return InitializeMint(tx, v, authority)
	})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("mint double-init err = %v, want ErrAlreadyInitialized", err)
	}

	metas = []ledger.AccountMeta{{Address: acct, Writable: true}}
	err = h.l.Execute(h.payer, ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return InitializeAccount(tx, v, mint, holder)
	})
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("account double-init err = %v, want ErrAlreadyInitialized", err)
	}
}

func TestMintTo(t *testing.T) {
	h := newHarness(t)
	authority := testAddr("authority")
	holder := testAddr("holder")
	mint := h.newMint("mint", authority)
	acct := h.newAccount("acct", mint, holder)

	if err := h.mintTo(mint, acct, 750, authority); err != nil {
		t.Fatalf("mint to: %v", err)
	}
	if got := h.balance(acct); got != 750 {
		t.Errorf("balance = %d, want 750", got)
	}
	mintAcc, _ := h.l.Account(mint)
	rec, _ := UnpackMint(mintAcc.Data)
	if rec.Supply != 750 {
		t.Errorf("supply = %d, want 750", rec.Supply)
	}

	// Only the issuing authority may mint
	if err := h.mintTo(mint, acct, 1, testAddr("impostor")); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("impostor mint err = %v, want ErrUnauthorized", err)
	}

	// Destination must belong to the mint
	other := h.newMint("other-mint", authority)
	stranger := h.newAccount("stranger", other, holder)
	if err := h.mintTo(mint, stranger, 1, authority); !errors.Is(err, ErrMintMismatch) {
		t.Errorf("cross-mint err = %v, want ErrMintMismatch", err)
	}
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	authority := testAddr("authority")
	alice := testAddr("alice")
	bob := testAddr("bob")
	mint := h.newMint("mint", authority)
	aliceAcct := h.newAccount("alice-acct", mint, alice)
	bobAcct := h.newAccount("bob-acct", mint, bob)
	if err := h.mintTo(mint, aliceAcct, 500, authority); err != nil {
		t.Fatalf("mint to: %v", err)
	}

	if err := h.transfer(aliceAcct, bobAcct, 200, alice); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := h.balance(aliceAcct); got != 300 {
		t.Errorf("alice = %d, want 300", got)
	}
	if got := h.balance(bobAcct); got != 200 {
		t.Errorf("bob = %d, want 200", got)
	}
}

func TestTransfer_Rejections(t *testing.T) {
	h := newHarness(t)
	authority := testAddr("authority")
	alice := testAddr("alice")
	bob := testAddr("bob")
	mintA := h.newMint("mint-a", authority)
	mintB := h.newMint("mint-b", authority)
	aliceA := h.newAccount("alice-a", mintA, alice)
	bobA := h.newAccount("bob-a", mintA, bob)
	bobB := h.newAccount("bob-b", mintB, bob)
	if err := h.mintTo(mintA, aliceA, 100, authority); err != nil {
		t.Fatalf("mint to: %v", err)
	}

	// Only the holder's authority moves funds
	if err := h.transfer(aliceA, bobA, 10, bob); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("non-holder err = %v, want ErrUnauthorized", err)
	}
	// Endpoints must share a mint
	if err := h.transfer(aliceA, bobB, 10, alice); !errors.Is(err, ErrMintMismatch) {
		t.Errorf("cross-mint err = %v, want ErrMintMismatch", err)
	}
	// Balance must cover the amount
	if err := h.transfer(aliceA, bobA, 101, alice); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraft err = %v, want ErrInsufficientBalance", err)
	}
	// Self transfers are meaningless
	if err := h.transfer(aliceA, aliceA, 10, alice); !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Errorf("self transfer err = %v, want ErrInvalidArgument", err)
	}

	// Nothing moved
	if got := h.balance(aliceA); got != 100 {
		t.Errorf("alice = %d, want 100", got)
	}
	if got := h.balance(bobA); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}

func TestRecordCodecs_LengthChecked(t *testing.T) {
	acct := Account{Mint: testAddr("m"), Holder: testAddr("h"), Amount: 9}
	packedAcct := acct.Pack()
	got, err := UnpackAccount(packedAcct[:])
	if err != nil || got != acct {
		t.Fatalf("account round trip: %v %+v", err, got)
	}
	if _, err := UnpackAccount(packedAcct[:AccountSize-1]); !errors.Is(err, ledger.ErrLengthMismatch) {
		t.Errorf("short account err = %v, want ErrLengthMismatch", err)
	}

	m := Mint{Authority: testAddr("a"), Supply: 12}
	packedMint := m.Pack()
	gotM, err := UnpackMint(packedMint[:])
	if err != nil || gotM != m {
		t.Fatalf("mint round trip: %v %+v", err, gotM)
	}
	if _, err := UnpackMint(nil); !errors.Is(err, ledger.ErrLengthMismatch) {
		t.Errorf("nil mint err = %v, want ErrLengthMismatch", err)
	}
}
