package escrow

import (
	"errors"
	"testing"
	"time"

	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/token"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fixture wires a full two-asset escrow scene: maker deposits mint A and
// asks for mint B; the taker holds B and wants A.
type fixture struct {
	t       *testing.T
	l       *ledger.Ledger
	program *Program

	maker, taker, payer ledger.Address
	mintAuthority       ledger.Address
	mintA, mintB        ledger.Address

	slot           ledger.Address // escrow slot
	makerFunding   ledger.Address // mint A, held by maker (deposit source)
	makerReceiving ledger.Address // mint B, held by maker (taker pays here)
	holding        ledger.Address // mint A, held by the escrow authority
	takerPaying    ledger.Address // mint B, held by taker
	takerReceiving ledger.Address // mint A, held by taker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := ledger.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	f := &fixture{
		t:             t,
		l:             l,
		program:       NewProgram(fixedClock{now: time.Unix(1700000000, 0)}),
		maker:         testAddr("maker"),
		taker:         testAddr("taker"),
		payer:         testAddr("payer"),
		mintAuthority: testAddr("mint-authority"),
		mintA:         testAddr("mint-a"),
		mintB:         testAddr("mint-b"),

		slot:           testAddr("slot"),
		makerFunding:   testAddr("maker-funding"),
		makerReceiving: testAddr("maker-receiving"),
		holding:        testAddr("holding"),
		takerPaying:    testAddr("taker-paying"),
		takerReceiving: testAddr("taker-receiving"),
	}

	if err := l.Airdrop(f.payer, 10_000_000); err != nil {
		t.Fatalf("airdrop: %v", err)
	}

	f.createMint(f.mintA)
	f.createMint(f.mintB)
	f.createTokenAccount(f.makerFunding, f.mintA, f.maker)
	f.createTokenAccount(f.makerReceiving, f.mintB, f.maker)
	f.createTokenAccount(f.holding, f.mintA, AuthorityAddress())
	f.createTokenAccount(f.takerPaying, f.mintB, f.taker)
	f.createTokenAccount(f.takerReceiving, f.mintA, f.taker)
	f.mintTo(f.mintA, f.makerFunding, 10_000)

	f.createSlot(f.slot, 0) // 0 = exact exemption minimum
	return f
}

// createSlot allocates the escrow slot with the exemption minimum plus
// delta (negative delta produces an underfunded slot).
func (f *fixture) createSlot(addr ledger.Address, delta int64) {
	f.t.Helper()
	rent, err := f.l.Rent()
	if err != nil {
		f.t.Fatalf("rent: %v", err)
	}
	deposit := uint64(int64(rent.MinimumBalance(TradeSize)) + delta)
	if err := f.l.CreateAccount(f.payer, addr, ProgramAddress, TradeSize, deposit); err != nil {
		f.t.Fatalf("create slot: %v", err)
	}
}

func (f *fixture) createMint(addr ledger.Address) {
	f.t.Helper()
	rent, _ := f.l.Rent()
	if err := f.l.CreateAccount(f.payer, addr, token.ProgramAddress, token.MintSize, rent.MinimumBalance(token.MintSize)); err != nil {
		f.t.Fatalf("create mint account: %v", err)
	}
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	err := f.l.Execute(f.payer, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return token.InitializeMint(tx, v, f.mintAuthority)
	})
	if err != nil {
		f.t.Fatalf("init mint: %v", err)
	}
}

func (f *fixture) createTokenAccount(addr, mint, holder ledger.Address) {
	f.t.Helper()
	rent, _ := f.l.Rent()
	if err := f.l.CreateAccount(f.payer, addr, token.ProgramAddress, token.AccountSize, rent.MinimumBalance(token.AccountSize)); err != nil {
		f.t.Fatalf("create token account: %v", err)
	}
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	err := f.l.Execute(f.payer, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, _ := tx.Account(0)
		return token.InitializeAccount(tx, v, mint, holder)
	})
	if err != nil {
		f.t.Fatalf("init token account: %v", err)
	}
}

func (f *fixture) mintTo(mint, dest ledger.Address, amount uint64) {
	f.t.Helper()
	metas := []ledger.AccountMeta{
		{Address: mint, Writable: true},
		{Address: dest, Writable: true},
	}
	err := f.l.Execute(f.mintAuthority, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		mintView, _ := tx.Account(0)
		destView, _ := tx.Account(1)
		return token.MintTo(tx, mintView, destView, amount, tx.Signer())
	})
	if err != nil {
		f.t.Fatalf("mint to: %v", err)
	}
}

func (f *fixture) tokenBalance(addr ledger.Address) uint64 {
	f.t.Helper()
	acc, err := f.l.Account(addr)
	if err != nil {
		f.t.Fatalf("account: %v", err)
	}
	rec, err := token.UnpackAccount(acc.Data)
	if err != nil {
		f.t.Fatalf("unpack token account: %v", err)
	}
	return rec.Amount
}

func (f *fixture) slotRecord(addr ledger.Address) Trade {
	f.t.Helper()
	acc, err := f.l.Account(addr)
	if err != nil {
		f.t.Fatalf("account: %v", err)
	}
	rec, err := UnpackTrade(acc.Data)
	if err != nil {
		f.t.Fatalf("unpack trade: %v", err)
	}
	return rec
}

func (f *fixture) defaultParams() CreateTradeParams {
	return CreateTradeParams{
		TakerAmount:       300,
		MakerAmount:       500,
		TakerAssetAccount: f.makerReceiving,
		MakerAssetAccount: f.holding,
	}
}

// runCreate executes a CreateTrade request with the canonical account list.
func (f *fixture) runCreate(params CreateTradeParams) error {
	metas := []ledger.AccountMeta{
		{Address: f.slot, Writable: true},
		{Address: params.TakerAssetAccount},
		{Address: f.makerFunding, Writable: true},
		{Address: ledger.RentSysvar},
		{Address: params.MakerAssetAccount, Writable: true},
		{Address: token.ProgramAddress},
	}
	return f.l.Execute(f.maker, ProgramAddress, metas, func(tx *ledger.Tx) error {
		_, err := f.program.Execute(tx, EncodeCreateTrade(params))
		return err
	})
}

// runComplete executes a CompleteTrade request with the canonical account
// list; takerReceiving lets the atomicity test aim the released leg at a
// wrong-mint destination.
func (f *fixture) runComplete(takerReceiving ledger.Address) error {
	metas := []ledger.AccountMeta{
		{Address: f.slot, Writable: true},
		{Address: f.takerPaying, Writable: true},
		{Address: f.makerReceiving, Writable: true},
		{Address: f.holding, Writable: true},
		{Address: AuthorityAddress()},
		{Address: token.ProgramAddress},
		{Address: takerReceiving, Writable: true},
		{Address: f.maker, Writable: true},
	}
	return f.l.Execute(f.taker, ProgramAddress, metas, func(tx *ledger.Tx) error {
		_, err := f.program.Execute(tx, EncodeCompleteTrade())
		return err
	})
}

func TestCreateTrade_Success(t *testing.T) {
	f := newFixture(t)
	params := f.defaultParams()

	if err := f.runCreate(params); err != nil {
		t.Fatalf("create trade: %v", err)
	}

	rec := f.slotRecord(f.slot)
	if !rec.IsOccupied() {
		t.Fatal("slot must be occupied after creation")
	}
	if rec.Maker != f.maker {
		t.Errorf("maker = %s, want %s", rec.Maker, f.maker)
	}
	if rec.TakerAmount != 300 || rec.MakerAmount != 500 {
		t.Errorf("amounts = %d/%d, want 300/500", rec.TakerAmount, rec.MakerAmount)
	}
	if rec.TakerAssetAccount != f.makerReceiving || rec.MakerAssetAccount != f.holding {
		t.Error("asset account references do not echo the input")
	}
	if rec.CreatedAt != 1700000000 {
		t.Errorf("created_at = %d, want clock time", rec.CreatedAt)
	}

	if got := f.tokenBalance(f.makerFunding); got != 10_000-500 {
		t.Errorf("maker funding balance = %d, want %d", got, 10_000-500)
	}
	if got := f.tokenBalance(f.holding); got != 500 {
		t.Errorf("holding balance = %d, want 500", got)
	}
}

func TestCreateTrade_OccupiedSlotRejected(t *testing.T) {
	f := newFixture(t)
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	before := f.slotRecord(f.slot)
	fundingBefore := f.tokenBalance(f.makerFunding)

	err := f.runCreate(f.defaultParams())
	if !errors.Is(err, ErrTradeAlreadyExist) {
		t.Fatalf("second create err = %v, want ErrTradeAlreadyExist", err)
	}

	if f.slotRecord(f.slot) != before {
		t.Error("existing record changed by rejected creation")
	}
	if f.tokenBalance(f.makerFunding) != fundingBefore {
		t.Error("maker funding changed by rejected creation")
	}
}

func TestCreateTrade_BelowMinimumFailsBeforeTransfer(t *testing.T) {
	f := newFixture(t)

	params := f.defaultParams()
	params.MakerAmount = 99

	err := f.runCreate(params)
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if got := f.tokenBalance(f.makerFunding); got != 10_000 {
		t.Errorf("maker funding = %d, transfer must not have occurred", got)
	}
	if got := f.tokenBalance(f.holding); got != 0 {
		t.Errorf("holding = %d, transfer must not have occurred", got)
	}
	if f.slotRecord(f.slot).IsOccupied() {
		t.Error("slot occupied after rejected creation")
	}

	params = f.defaultParams()
	params.TakerAmount = 99
	if err := f.runCreate(params); !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("taker amount err = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateTrade_NotRentExempt(t *testing.T) {
	f := newFixture(t)
	underfunded := testAddr("underfunded-slot")
	f.createSlot(underfunded, -1)
	f.slot = underfunded

	err := f.runCreate(f.defaultParams())
	if !errors.Is(err, ledger.ErrNotRentExempt) {
		t.Fatalf("err = %v, want ErrNotRentExempt", err)
	}
}

func TestCreateTrade_HoldingNotAuthorityHeld(t *testing.T) {
	f := newFixture(t)
	rogue := testAddr("rogue-holding")
	f.createTokenAccount(rogue, f.mintA, f.maker)

	params := f.defaultParams()
	params.MakerAssetAccount = rogue
	err := f.runCreate(params)
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestCompleteTrade_EmptySlot(t *testing.T) {
	f := newFixture(t)
	f.mintTo(f.mintB, f.takerPaying, 1_000)

	err := f.runComplete(f.takerReceiving)
	if !errors.Is(err, ErrTradeNotFound) {
		t.Fatalf("err = %v, want ErrTradeNotFound", err)
	}
}

func TestCompleteTrade_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.mintTo(f.mintB, f.takerPaying, 299) // one short of taker_amount

	before := f.slotRecord(f.slot)
	err := f.runComplete(f.takerReceiving)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	if f.slotRecord(f.slot) != before {
		t.Error("record changed by rejected completion")
	}
	if got := f.tokenBalance(f.takerPaying); got != 299 {
		t.Errorf("taker paying = %d, want 299", got)
	}
	if got := f.tokenBalance(f.holding); got != 500 {
		t.Errorf("holding = %d, want 500", got)
	}
}

func TestCompleteTrade_AccountMismatch(t *testing.T) {
	f := newFixture(t)
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.mintTo(f.mintB, f.takerPaying, 1_000)

	// Swap in a maker receiving account the record does not name
	wrong := testAddr("wrong-receiving")
	f.createTokenAccount(wrong, f.mintB, f.maker)
	saved := f.makerReceiving
	f.makerReceiving = wrong
	err := f.runComplete(f.takerReceiving)
	f.makerReceiving = saved
	if !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if got := f.tokenBalance(f.takerPaying); got != 1_000 {
		t.Errorf("taker paying = %d, rejected completion must not move funds", got)
	}
}

func TestCompleteTrade_SecondLegFailureRollsBackFirst(t *testing.T) {
	f := newFixture(t)
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.mintTo(f.mintB, f.takerPaying, 1_000)

	// Aim the released leg at a mint-B account: leg 1 (taker pays maker)
	// succeeds in the overlay, leg 2 fails on mint mismatch. Nothing may
	// persist.
	err := f.runComplete(f.takerPaying)
	if err == nil {
		t.Fatal("expected completion to fail")
	}

	if got := f.tokenBalance(f.takerPaying); got != 1_000 {
		t.Errorf("taker paying = %d, want 1000 (leg 1 must roll back)", got)
	}
	if got := f.tokenBalance(f.makerReceiving); got != 0 {
		t.Errorf("maker receiving = %d, want 0 (leg 1 must roll back)", got)
	}
	if got := f.tokenBalance(f.holding); got != 500 {
		t.Errorf("holding = %d, want 500", got)
	}
	if !f.slotRecord(f.slot).IsOccupied() {
		t.Error("record cleared by failed completion")
	}
}

func TestEndToEnd_CreateThenComplete(t *testing.T) {
	f := newFixture(t)
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.mintTo(f.mintB, f.takerPaying, 300)

	rent, _ := f.l.Rent()
	deposit := rent.MinimumBalance(TradeSize)

	if err := f.runComplete(f.takerReceiving); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Slot is free again and its durability deposit went back to the maker
	if f.slotRecord(f.slot).IsOccupied() {
		t.Error("slot still occupied after completion")
	}
	slotAcc, _ := f.l.Account(f.slot)
	if slotAcc.Balance != 0 {
		t.Errorf("slot balance = %d, want 0", slotAcc.Balance)
	}
	makerAcc, _ := f.l.Account(f.maker)
	if makerAcc.Balance != deposit {
		t.Errorf("maker native balance = %d, want refunded deposit %d", makerAcc.Balance, deposit)
	}

	// Both legs landed
	if got := f.tokenBalance(f.makerReceiving); got != 300 {
		t.Errorf("maker receiving = %d, want 300", got)
	}
	if got := f.tokenBalance(f.takerReceiving); got != 500 {
		t.Errorf("taker receiving = %d, want 500", got)
	}
	if got := f.tokenBalance(f.takerPaying); got != 0 {
		t.Errorf("taker paying = %d, want 0", got)
	}
	if got := f.tokenBalance(f.holding); got != 0 {
		t.Errorf("holding = %d, want 0", got)
	}

	// Slot is reusable: a fresh trade needs a fresh deposit
	f.createSlot(testAddr("slot-2"), 0)
	f.slot = testAddr("slot-2")
	if err := f.runCreate(f.defaultParams()); err != nil {
		t.Fatalf("create on fresh slot: %v", err)
	}
}
