package escrow

import (
	"fmt"

	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/token"
	"github.com/swapslot/escrowd/pkg/util"
)

// ProgramAddress is the escrow program's derived id. Slot accounts are
// owned by it, which is what lets it rewrite records and reclaim deposits.
var ProgramAddress = ledger.DeriveAddress([]byte("program"), []byte("escrow"))

// authoritySeeds derive the escrow authority, the keyless signing identity
// that holds every escrowed token account. The token service trusts the
// matching handle because only this program's execution context can mint it.
var authoritySeeds = [][]byte{[]byte("escrow"), []byte("authority")}

// AuthorityAddress returns the escrow authority's address. Deterministic,
// so makers can initialize holding accounts for it before any trade exists.
func AuthorityAddress() ledger.Address {
	return ledger.DeriveProgramAddress(ProgramAddress, authoritySeeds...)
}

// Positional account lists. Order is part of the external contract; the
// program never searches accounts by role.
const (
	// CreateTrade
	createIdxSlot         = 0 // escrow slot (writable, owned by this program, TradeSize data)
	createIdxTakerAsset   = 1 // taker asset account reference (stored, not mutated)
	createIdxMakerFunding = 2 // maker's funding token account (writable, deposit source)
	createIdxRent         = 3 // rent sysvar (read-only)
	createIdxHolding      = 4 // escrow holding token account (writable, held by the authority)
	createIdxTokenProgram = 5 // token program reference
	createAccountCount    = 6

	// CompleteTrade
	completeIdxSlot           = 0 // escrow slot (writable, occupied)
	completeIdxTakerPaying    = 1 // taker's paying token account (writable)
	completeIdxMakerReceiving = 2 // maker's receiving token account (writable)
	completeIdxHolding        = 3 // escrow holding token account (writable)
	completeIdxAuthority      = 4 // escrow authority reference (read-only)
	completeIdxTokenProgram   = 5 // token program reference
	completeIdxTakerReceiving = 6 // taker's receiving token account (writable, paid from escrow)
	completeIdxMakerRefund    = 7 // maker's native account (writable, deposit refund target)
	completeAccountCount      = 8
)

// Program is the trade lifecycle state machine. It is a pure state
// transition over the accounts supplied to it: no locking, no I/O, no
// retries — atomicity and serialization belong to the ledger runtime.
type Program struct {
	clock util.Clock
}

// NewProgram builds the program with the clock oracle used for creation
// timestamps.
func NewProgram(clock util.Clock) *Program {
	return &Program{clock: clock}
}

// Result reports what a successful instruction did, for the node's
// settlement event surface. Trade is the record as written (CreateTrade) or
// as consumed (CompleteTrade).
type Result struct {
	Kind  InstructionKind
	Slot  ledger.Address
	Trade Trade
}

// Execute decodes the payload and routes to the matching handler. Every
// precondition check returns on first violation with nothing written; the
// ledger overlay discards all partial mutations on error.
func (p *Program) Execute(tx *ledger.Tx, data []byte) (*Result, error) {
	ins, err := ParseInstruction(data)
	if err != nil {
		return nil, err
	}
	switch ins.Kind {
	case CreateTrade:
		return p.createTrade(tx, ins.Create)
	case CompleteTrade:
		return p.completeTrade(tx)
	}
	return nil, fmt.Errorf("%w: kind %d", ErrInvalidInstruction, ins.Kind)
}

// slotView validates the shape of the escrow slot account: writable, owned
// by this program, allocated at exactly TradeSize.
func (p *Program) slotView(tx *ledger.Tx, idx int) (*ledger.AccountView, error) {
	slot, err := tx.Account(idx)
	if err != nil {
		return nil, err
	}
	if !slot.Writable() {
		return nil, fmt.Errorf("%w: slot %s", ledger.ErrNotWritable, slot.Address())
	}
	if slot.Owner() != ProgramAddress {
		return nil, fmt.Errorf("%w: %s is not an escrow slot", ledger.ErrInvalidArgument, slot.Address())
	}
	if len(slot.Data()) != TradeSize {
		return nil, fmt.Errorf("%w: slot allocated %d bytes, want %d", ledger.ErrLengthMismatch, len(slot.Data()), TradeSize)
	}
	return slot, nil
}

// createTrade validates the maker's terms and an exempt, unoccupied slot,
// deposits the maker's asset into the escrow-held account, and writes the
// record. The deposit and the record write live in one overlay: a failed
// deposit leaves no record behind.
func (p *Program) createTrade(tx *ledger.Tx, params *CreateTradeParams) (*Result, error) {
	if tx.NumAccounts() != createAccountCount {
		return nil, fmt.Errorf("%w: create_trade needs %d accounts, got %d", ledger.ErrMissingAccount, createAccountCount, tx.NumAccounts())
	}
	slot, err := p.slotView(tx, createIdxSlot)
	if err != nil {
		return nil, err
	}
	takerAsset, err := tx.Account(createIdxTakerAsset)
	if err != nil {
		return nil, err
	}
	makerFunding, err := tx.Account(createIdxMakerFunding)
	if err != nil {
		return nil, err
	}
	rent, err := tx.Account(createIdxRent)
	if err != nil {
		return nil, err
	}
	holding, err := tx.Account(createIdxHolding)
	if err != nil {
		return nil, err
	}
	tokenProgram, err := tx.Account(createIdxTokenProgram)
	if err != nil {
		return nil, err
	}

	// Durability: the slot must already prepay its exemption threshold,
	// or the record could be reclaimed mid-trade.
	if rent.Address() != ledger.RentSysvar {
		return nil, fmt.Errorf("%w: account %d must be the rent sysvar", ledger.ErrInvalidArgument, createIdxRent)
	}
	rentParams, err := ledger.UnpackRentParams(rent.Data())
	if err != nil {
		return nil, err
	}
	if !rentParams.IsExempt(slot.Balance(), len(slot.Data())) {
		return nil, fmt.Errorf("%w: slot balance %d below minimum %d", ledger.ErrNotRentExempt, slot.Balance(), rentParams.MinimumBalance(len(slot.Data())))
	}

	record, err := UnpackTrade(slot.Data())
	if err != nil {
		return nil, err
	}
	if record.IsOccupied() {
		return nil, fmt.Errorf("%w: slot %s", ErrTradeAlreadyExist, slot.Address())
	}

	if params.TakerAmount < MinimumTradeAmount || params.MakerAmount < MinimumTradeAmount {
		return nil, fmt.Errorf("%w: amounts %d/%d below minimum %d", ledger.ErrInvalidArgument, params.TakerAmount, params.MakerAmount, MinimumTradeAmount)
	}

	// The positional accounts must match the declared terms.
	if takerAsset.Address() != params.TakerAssetAccount {
		return nil, fmt.Errorf("%w: taker asset account mismatch", ledger.ErrInvalidArgument)
	}
	if holding.Address() != params.MakerAssetAccount {
		return nil, fmt.Errorf("%w: holding account mismatch", ledger.ErrInvalidArgument)
	}
	if tokenProgram.Address() != token.ProgramAddress {
		return nil, fmt.Errorf("%w: account %d must be the token program", ledger.ErrInvalidArgument, createIdxTokenProgram)
	}

	// The holding account must be held by the escrow authority, or the
	// deposit would land somewhere this program cannot release from.
	holdingRec, err := token.UnpackAccount(holding.Data())
	if err != nil {
		return nil, err
	}
	if holdingRec.Holder != AuthorityAddress() {
		return nil, fmt.Errorf("%w: holding account %s is not held by the escrow authority", ledger.ErrInvalidArgument, holding.Address())
	}

	// Deposit, then write the record.
	if err := token.Transfer(tx, makerFunding, holding, params.MakerAmount, tx.Signer()); err != nil {
		return nil, err
	}
	record = Trade{
		Maker:             tx.Principal(),
		TakerAmount:       params.TakerAmount,
		MakerAmount:       params.MakerAmount,
		TakerAssetAccount: params.TakerAssetAccount,
		MakerAssetAccount: params.MakerAssetAccount,
		CreatedAt:         p.clock.Now().Unix(),
	}
	packed := record.Pack()
	if err := slot.SetData(packed[:]); err != nil {
		return nil, err
	}
	return &Result{Kind: CreateTrade, Slot: slot.Address(), Trade: record}, nil
}

// completeTrade validates the taker's fulfillment against the stored
// record, performs the two-legged transfer, clears the slot, and refunds the
// durability deposit to the maker. Both legs, the record clear, and the
// refund commit in one overlay — or none of them do.
func (p *Program) completeTrade(tx *ledger.Tx) (*Result, error) {
	if tx.NumAccounts() != completeAccountCount {
		return nil, fmt.Errorf("%w: complete_trade needs %d accounts, got %d", ledger.ErrMissingAccount, completeAccountCount, tx.NumAccounts())
	}
	slot, err := p.slotView(tx, completeIdxSlot)
	if err != nil {
		return nil, err
	}
	takerPaying, err := tx.Account(completeIdxTakerPaying)
	if err != nil {
		return nil, err
	}
	makerReceiving, err := tx.Account(completeIdxMakerReceiving)
	if err != nil {
		return nil, err
	}
	holding, err := tx.Account(completeIdxHolding)
	if err != nil {
		return nil, err
	}
	authorityRef, err := tx.Account(completeIdxAuthority)
	if err != nil {
		return nil, err
	}
	tokenProgram, err := tx.Account(completeIdxTokenProgram)
	if err != nil {
		return nil, err
	}
	takerReceiving, err := tx.Account(completeIdxTakerReceiving)
	if err != nil {
		return nil, err
	}
	makerRefund, err := tx.Account(completeIdxMakerRefund)
	if err != nil {
		return nil, err
	}

	record, err := UnpackTrade(slot.Data())
	if err != nil {
		return nil, err
	}
	if !record.IsOccupied() {
		return nil, fmt.Errorf("%w: slot %s", ErrTradeNotFound, slot.Address())
	}

	// The supplied accounts must match the stored record — completing
	// against the wrong counter-asset is a caller input error.
	if makerReceiving.Address() != record.TakerAssetAccount {
		return nil, fmt.Errorf("%w: maker receiving account does not match record", ledger.ErrInvalidArgument)
	}
	if holding.Address() != record.MakerAssetAccount {
		return nil, fmt.Errorf("%w: holding account does not match record", ledger.ErrInvalidArgument)
	}
	if authorityRef.Address() != AuthorityAddress() {
		return nil, fmt.Errorf("%w: account %d must be the escrow authority", ledger.ErrInvalidArgument, completeIdxAuthority)
	}
	if tokenProgram.Address() != token.ProgramAddress {
		return nil, fmt.Errorf("%w: account %d must be the token program", ledger.ErrInvalidArgument, completeIdxTokenProgram)
	}
	if makerRefund.Address() != record.Maker {
		return nil, fmt.Errorf("%w: refund account must be the maker", ledger.ErrInvalidArgument)
	}

	payingRec, err := token.UnpackAccount(takerPaying.Data())
	if err != nil {
		return nil, err
	}
	if payingRec.Amount < record.TakerAmount {
		return nil, fmt.Errorf("%w: taker holds %d, trade asks %d", ErrInsufficientFunds, payingRec.Amount, record.TakerAmount)
	}

	// Leg 1: taker pays the maker's receiving account.
	if err := token.Transfer(tx, takerPaying, makerReceiving, record.TakerAmount, tx.Signer()); err != nil {
		return nil, err
	}
	// Leg 2: the escrow authority releases the deposit to the taker.
	if err := token.Transfer(tx, holding, takerReceiving, record.MakerAmount, tx.ProgramSigner(authoritySeeds...)); err != nil {
		return nil, err
	}

	// Clear the slot and return its durability deposit to the maker,
	// freeing the slot for reuse.
	empty := Trade{}.Pack()
	if err := slot.SetData(empty[:]); err != nil {
		return nil, err
	}
	deposit := slot.Balance()
	if err := slot.Debit(deposit); err != nil {
		return nil, err
	}
	if err := makerRefund.Credit(deposit); err != nil {
		return nil, err
	}
	return &Result{Kind: CompleteTrade, Slot: slot.Address(), Trade: record}, nil
}
