package node

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/swapslot/escrowd/pkg/crypto"
	"github.com/swapslot/escrowd/pkg/ledger"
)

// AccountRef names one account in a request's ordered list.
type AccountRef struct {
	Address  ledger.Address `json:"address"`
	Writable bool           `json:"writable"`
}

// Request is the signed envelope callers submit: the target program, the
// positional account list, the raw instruction payload, a strictly
// increasing per-principal nonce, and a secp256k1 signature over Digest.
type Request struct {
	Program   ledger.Address `json:"program"`
	Accounts  []AccountRef   `json:"accounts"`
	Data      hexutil.Bytes  `json:"data"`
	Nonce     uint64         `json:"nonce"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Digest computes the canonical keccak-256 the envelope is signed over.
// Every variable-length field is length-prefixed so distinct requests can
// never collide.
func (r *Request) Digest() [32]byte {
	buf := make([]byte, 0, 32+8+2+len(r.Accounts)*33+4+len(r.Data))
	buf = append(buf, r.Program[:]...)

	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], r.Nonce)
	buf = append(buf, u64[:]...)

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], uint16(len(r.Accounts)))
	buf = append(buf, u16[:]...)
	for _, a := range r.Accounts {
		buf = append(buf, a.Address[:]...)
		if a.Writable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(r.Data)))
	buf = append(buf, u32[:]...)
	buf = append(buf, r.Data...)

	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// Recover verifies the envelope signature and returns the signing
// principal.
func (r *Request) Recover() (ledger.Address, error) {
	if len(r.Signature) != 65 {
		return ledger.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", ledger.ErrInvalidArgument, len(r.Signature))
	}
	digest := r.Digest()
	principal, err := crypto.RecoverPrincipal(digest[:], r.Signature)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err)
	}
	return principal, nil
}

// SignRequest fills in the envelope signature with the given signer.
func SignRequest(r *Request, signer *crypto.Signer) error {
	digest := r.Digest()
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return err
	}
	r.Signature = sig
	return nil
}

// Metas converts the account list into ledger metas.
func (r *Request) Metas() []ledger.AccountMeta {
	metas := make([]ledger.AccountMeta, len(r.Accounts))
	for i, a := range r.Accounts {
		metas[i] = ledger.AccountMeta{Address: a.Address, Writable: a.Writable}
	}
	return metas
}
