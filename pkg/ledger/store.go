package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Store provides Pebble-based persistence for accounts and nonces.
// Thread-safety comes from the Ledger's per-address locks; the store itself
// only guarantees that a Batch commits atomically.
type Store struct {
	db *pebble.DB
}

// OpenStore opens a Pebble database at the given path.
func OpenStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:          32 << 20,                  // 32MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccount loads an account from Pebble.
// Returns nil if the address was never written.
func (s *Store) GetAccount(addr Address) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &acc, nil
}

// GetNonce loads a principal's replay nonce. Unwritten principals start at 0.
func (s *Store) GetNonce(addr Address) (uint64, error) {
	data, closer, err := s.db.Get(nonceKey(addr))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	defer closer.Close()

	if len(data) != 8 {
		return 0, fmt.Errorf("%w: nonce must be 8 bytes, got %d", ErrLengthMismatch, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetNonce durably records a principal's replay nonce.
func (s *Store) SetNonce(addr Address, nonce uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	if err := s.db.Set(nonceKey(addr), buf[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to set nonce: %w", err)
	}
	return nil
}

// AccountsOwnedBy scans every stored account and returns those owned by the
// given program. Used by query surfaces (list open escrow slots), not by the
// execution path.
func (s *Store) AccountsOwnedBy(owner Address) (map[Address]*Account, error) {
	prefix := accountPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	out := make(map[Address]*Account)
	for iter.First(); iter.Valid(); iter.Next() {
		addr, err := addressFromAccountKey(iter.Key())
		if err != nil {
			continue // skip malformed keys
		}
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue
		}
		if acc.Owner == owner {
			out[addr] = &acc
		}
	}
	return out, nil
}

// Batch accumulates account writes and commits them atomically.
type Batch struct {
	batch *pebble.Batch
}

// NewBatch creates a new batch writer.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SetAccount adds an account write to the batch.
func (b *Batch) SetAccount(addr Address, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return b.batch.Set(accountKey(addr), data, nil)
}

// Commit writes the batch to Pebble atomically and durably.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
