package node

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/swapslot/escrowd/pkg/crypto"
	"github.com/swapslot/escrowd/pkg/escrow"
	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/token"
	"github.com/swapslot/escrowd/pkg/util"
)

// Node is the settlement daemon's application layer: it verifies request
// envelopes, dispatches them into the ledger runtime, and emits attested
// settlement events to the journal and any feed hooks.
type Node struct {
	ledger   *ledger.Ledger
	program  *escrow.Program
	clock    util.Clock
	attester *crypto.BLSSigner
	journal  *Journal
	log      *zap.SugaredLogger

	// OnEvent, when set, receives every settlement event after it is
	// journaled. The daemon wires it to the WebSocket hub and gossip.
	OnEvent func(*Event)

	// nonceMu serializes the check-then-bump on replay nonces. Account
	// state itself is guarded by the ledger's per-address locks.
	nonceMu sync.Mutex
}

// Config carries the node's collaborators.
type Config struct {
	Ledger   *ledger.Ledger
	Clock    util.Clock
	Attester *crypto.BLSSigner
	Journal  *Journal
	Logger   *zap.SugaredLogger
}

// New builds a node.
func New(cfg Config) *Node {
	return &Node{
		ledger:   cfg.Ledger,
		program:  escrow.NewProgram(cfg.Clock),
		clock:    cfg.Clock,
		attester: cfg.Attester,
		journal:  cfg.Journal,
		log:      cfg.Logger,
	}
}

// Submit verifies and executes one signed request. The flow: recover the
// principal from the envelope signature, consume the replay nonce, run the
// program inside one atomic ledger transaction, then attest and publish the
// settlement event. The nonce is consumed once the envelope validates,
// whether or not execution succeeds — a failed request must be resubmitted
// with a fresh nonce.
func (n *Node) Submit(req *Request) (*Event, error) {
	principal, err := req.Recover()
	if err != nil {
		return nil, err
	}

	if req.Program != escrow.ProgramAddress {
		return nil, fmt.Errorf("%w: unknown program %s", ledger.ErrInvalidArgument, req.Program)
	}

	if err := n.consumeNonce(principal, req.Nonce); err != nil {
		return nil, err
	}

	var result *escrow.Result
	execErr := n.ledger.Execute(principal, req.Program, req.Metas(), func(tx *ledger.Tx) error {
		var err error
		result, err = n.program.Execute(tx, req.Data)
		return err
	})
	if execErr != nil {
		if n.log != nil {
			n.log.Infow("request_rejected", "principal", principal.Hex(), "nonce", req.Nonce, "err", execErr)
		}
		return nil, execErr
	}

	event := n.buildEvent(result, principal)
	if n.journal != nil {
		if err := n.journal.Append(event); err != nil && n.log != nil {
			n.log.Warnw("journal_append_failed", "event", event.ID, "err", err)
		}
	}
	if n.log != nil {
		n.log.Infow("trade_executed",
			"event", event.ID,
			"type", string(event.Type),
			"slot", event.Slot.Hex(),
			"maker_amount", event.MakerAmount,
			"taker_amount", event.TakerAmount)
	}
	if n.OnEvent != nil {
		n.OnEvent(event)
	}
	return event, nil
}

// consumeNonce enforces strictly increasing per-principal nonces.
func (n *Node) consumeNonce(principal ledger.Address, nonce uint64) error {
	n.nonceMu.Lock()
	defer n.nonceMu.Unlock()
	stored, err := n.ledger.Store().GetNonce(principal)
	if err != nil {
		return err
	}
	if nonce <= stored {
		return fmt.Errorf("%w: nonce %d not above %d", ledger.ErrInvalidArgument, nonce, stored)
	}
	return n.ledger.Store().SetNonce(principal, nonce)
}

// buildEvent shapes a settlement event from a program result and signs the
// attestation.
func (n *Node) buildEvent(res *escrow.Result, principal ledger.Address) *Event {
	e := &Event{
		ID:                newEventID(),
		Slot:              res.Slot,
		Maker:             res.Trade.Maker,
		TakerAmount:       res.Trade.TakerAmount,
		MakerAmount:       res.Trade.MakerAmount,
		TakerAssetAccount: res.Trade.TakerAssetAccount,
		MakerAssetAccount: res.Trade.MakerAssetAccount,
		Timestamp:         n.clock.Now().Unix(),
	}
	switch res.Kind {
	case escrow.CreateTrade:
		e.Type = EventTradeCreated
	case escrow.CompleteTrade:
		e.Type = EventTradeSettled
		e.Taker = principal
	}
	if n.attester != nil {
		digest := e.Digest()
		e.Attestation = n.attester.Sign(digest[:])
		e.AttesterKey = n.attester.PubkeyBytes()
	}
	return e
}

// AttesterKey returns the node's BLS attestation key, or nil when
// attestation is disabled.
func (n *Node) AttesterKey() []byte {
	if n.attester == nil {
		return nil
	}
	return n.attester.PubkeyBytes()
}

// ==============================
// Query surface
// ==============================

// Slot returns the explicit state view of one escrow slot.
func (n *Node) Slot(addr ledger.Address) (escrow.Slot, error) {
	acc, err := n.ledger.Account(addr)
	if err != nil {
		return escrow.Slot{}, err
	}
	if acc.Owner != escrow.ProgramAddress {
		return escrow.Slot{}, fmt.Errorf("%w: %s is not an escrow slot", ledger.ErrInvalidArgument, addr)
	}
	return escrow.DecodeSlot(acc.Data)
}

// OpenTrades lists every occupied escrow slot.
func (n *Node) OpenTrades() (map[ledger.Address]escrow.Trade, error) {
	accounts, err := n.ledger.Store().AccountsOwnedBy(escrow.ProgramAddress)
	if err != nil {
		return nil, err
	}
	out := make(map[ledger.Address]escrow.Trade)
	for addr, acc := range accounts {
		t, err := escrow.UnpackTrade(acc.Data)
		if err != nil {
			continue // not a slot-shaped account
		}
		if t.IsOccupied() {
			out[addr] = t
		}
	}
	return out, nil
}

// NativeAccount returns the raw ledger account at addr.
func (n *Node) NativeAccount(addr ledger.Address) (*ledger.Account, error) {
	return n.ledger.Account(addr)
}

// TokenAccount decodes the token record at addr.
func (n *Node) TokenAccount(addr ledger.Address) (token.Account, error) {
	acc, err := n.ledger.Account(addr)
	if err != nil {
		return token.Account{}, err
	}
	if acc.Owner != token.ProgramAddress {
		return token.Account{}, fmt.Errorf("%w: %s is not a token account", ledger.ErrInvalidArgument, addr)
	}
	return token.UnpackAccount(acc.Data)
}

// ==============================
// Bootstrap services (devnet conveniences, no envelope signatures)
// ==============================

// Faucet airdrops native balance.
func (n *Node) Faucet(addr ledger.Address, amount uint64) error {
	return n.ledger.Airdrop(addr, amount)
}

// CreateSlot allocates a rent-exempt escrow slot paid for by payer.
func (n *Node) CreateSlot(payer, addr ledger.Address) error {
	rent, err := n.ledger.Rent()
	if err != nil {
		return err
	}
	deposit := rent.MinimumBalance(escrow.TradeSize)
	return n.ledger.CreateAccount(payer, addr, escrow.ProgramAddress, escrow.TradeSize, deposit)
}

// CreateMint allocates and initializes a mint with the given issuing
// authority.
func (n *Node) CreateMint(payer, addr, authority ledger.Address) error {
	rent, err := n.ledger.Rent()
	if err != nil {
		return err
	}
	deposit := rent.MinimumBalance(token.MintSize)
	if err := n.ledger.CreateAccount(payer, addr, token.ProgramAddress, token.MintSize, deposit); err != nil {
		return err
	}
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	return n.ledger.Execute(payer, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, err := tx.Account(0)
		if err != nil {
			return err
		}
		return token.InitializeMint(tx, v, authority)
	})
}

// CreateTokenAccount allocates and initializes a token account bound to
// mint and holder.
func (n *Node) CreateTokenAccount(payer, addr, mint, holder ledger.Address) error {
	rent, err := n.ledger.Rent()
	if err != nil {
		return err
	}
	deposit := rent.MinimumBalance(token.AccountSize)
	if err := n.ledger.CreateAccount(payer, addr, token.ProgramAddress, token.AccountSize, deposit); err != nil {
		return err
	}
	metas := []ledger.AccountMeta{{Address: addr, Writable: true}}
	return n.ledger.Execute(payer, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		v, err := tx.Account(0)
		if err != nil {
			return err
		}
		return token.InitializeAccount(tx, v, mint, holder)
	})
}

// MintTo issues supply into dest under the mint's recorded authority. As a
// bootstrap service it acts for the authority without a signature; the
// production path would be a signed request to the token program.
func (n *Node) MintTo(mint, dest ledger.Address, amount uint64) error {
	mintAcc, err := n.ledger.Account(mint)
	if err != nil {
		return err
	}
	rec, err := token.UnpackMint(mintAcc.Data)
	if err != nil {
		return err
	}
	metas := []ledger.AccountMeta{
		{Address: mint, Writable: true},
		{Address: dest, Writable: true},
	}
	return n.ledger.Execute(rec.Authority, token.ProgramAddress, metas, func(tx *ledger.Tx) error {
		mintView, err := tx.Account(0)
		if err != nil {
			return err
		}
		destView, err := tx.Account(1)
		if err != nil {
			return err
		}
		return token.MintTo(tx, mintView, destView, amount, tx.Signer())
	})
}
