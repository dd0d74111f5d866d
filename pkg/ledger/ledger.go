package ledger

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Ledger is the host runtime: account storage with a durability (rent)
// model, and atomic per-request execution. Each request runs as a pure,
// synchronous state transition over the accounts it names; requests touching
// disjoint account sets execute concurrently, overlapping sets serialize on
// per-address locks. There is no retry, cancellation, or timeout inside a
// request: it fully succeeds and commits, or fully fails and is discarded.
type Ledger struct {
	store *Store
	log   *zap.SugaredLogger

	mu    sync.Mutex // guards locks
	locks map[Address]*sync.RWMutex
}

// Open opens the ledger at the given path and bootstraps the rent sysvar
// with default parameters if it does not exist yet.
func Open(dbPath string, log *zap.SugaredLogger) (*Ledger, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		store: store,
		log:   log,
		locks: make(map[Address]*sync.RWMutex),
	}
	if err := l.bootstrapRentSysvar(); err != nil {
		store.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// Store exposes the persistence layer for query surfaces.
func (l *Ledger) Store() *Store { return l.store }

// Account loads an account snapshot outside any transaction. Unwritten
// addresses yield the zero-value account.
func (l *Ledger) Account(addr Address) (*Account, error) {
	acc, err := l.store.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return &Account{}, nil
	}
	return acc, nil
}

// Rent reads the current durability parameters from the rent sysvar.
func (l *Ledger) Rent() (RentParams, error) {
	acc, err := l.Account(RentSysvar)
	if err != nil {
		return RentParams{}, err
	}
	return UnpackRentParams(acc.Data)
}

// bootstrapRentSysvar writes the rent parameter block at genesis.
func (l *Ledger) bootstrapRentSysvar() error {
	acc, err := l.store.GetAccount(RentSysvar)
	if err != nil {
		return err
	}
	if acc != nil {
		return nil // already bootstrapped
	}
	packed := DefaultRentParams().Pack()
	batch := l.store.NewBatch()
	defer batch.Close()
	if err := batch.SetAccount(RentSysvar, &Account{
		Owner: SystemProgram,
		Data:  packed[:],
	}); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to bootstrap rent sysvar: %w", err)
	}
	if l.log != nil {
		l.log.Infow("rent_sysvar_bootstrapped", "address", RentSysvar.Hex())
	}
	return nil
}

// lockFor returns the lock guarding one address, creating it on first use.
func (l *Ledger) lockFor(addr Address) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[addr]
	if !ok {
		lk = &sync.RWMutex{}
		l.locks[addr] = lk
	}
	return lk
}

// Execute runs fn as one atomic request on behalf of principal, executing
// under the given program, over the ordered account list metas.
//
// Lock discipline: the deduplicated address set is sorted and acquired in
// order (write locks for writable metas, read locks otherwise), which makes
// deadlock between concurrent requests impossible. The overlay snapshots
// every named account; on nil error all writable snapshots commit in a
// single durable Pebble batch, otherwise everything is discarded.
func (l *Ledger) Execute(principal, program Address, metas []AccountMeta, fn func(*Tx) error) error {
	if program.IsZero() {
		return fmt.Errorf("%w: zero program address", ErrInvalidArgument)
	}
	for _, m := range metas {
		if m.Address.IsZero() {
			return fmt.Errorf("%w: zero account address in list", ErrInvalidArgument)
		}
	}

	// Deduplicate the lock set; an address named both writable and
	// read-only is locked with the stronger mode.
	writable := make(map[Address]bool, len(metas))
	for _, m := range metas {
		writable[m.Address] = writable[m.Address] || m.Writable
	}
	addrs := make([]Address, 0, len(writable))
	for a := range writable {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})

	for _, a := range addrs {
		if writable[a] {
			l.lockFor(a).Lock()
		} else {
			l.lockFor(a).RLock()
		}
	}
	defer func() {
		for i := len(addrs) - 1; i >= 0; i-- {
			a := addrs[i]
			if writable[a] {
				l.lockFor(a).Unlock()
			} else {
				l.lockFor(a).RUnlock()
			}
		}
	}()

	// Snapshot the touched accounts into the overlay.
	tx := &Tx{
		ledger:    l,
		program:   program,
		principal: principal,
		metas:     metas,
		accounts:  make(map[Address]*Account, len(writable)),
	}
	for _, a := range addrs {
		stored, err := l.store.GetAccount(a)
		if err != nil {
			return err
		}
		if stored == nil {
			stored = &Account{}
		}
		tx.accounts[a] = stored.Clone()
	}
	tx.views = make([]*AccountView, len(metas))
	for i, m := range metas {
		tx.views[i] = &AccountView{tx: tx, meta: m, acc: tx.accounts[m.Address]}
	}

	if err := fn(tx); err != nil {
		return err
	}

	// Commit every writable snapshot in one atomic batch.
	batch := l.store.NewBatch()
	defer batch.Close()
	for _, a := range addrs {
		if !writable[a] {
			continue
		}
		if err := batch.SetAccount(a, tx.accounts[a]); err != nil {
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit request: %w", err)
	}
	return nil
}
