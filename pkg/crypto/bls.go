package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]

// BLSSigner attests settlement events so downstream consumers (gossip
// subscribers, journal readers) can verify a feed without trusting the
// transport.
type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a deterministic key pair from a seed of at
// least 32 bytes.
func NewBLSSignerFromSeed(seed []byte) *BLSSigner {
	sk, _ := bls.KeyGen[scheme](seed, nil, nil)
	pk := sk.PublicKey()
	return &BLSSigner{sk: sk, pk: pk}
}

func (s *BLSSigner) Pubkey() *BLSPubKey { return s.pk }

// PubkeyBytes returns the compressed public key for wire embedding.
func (s *BLSSigner) PubkeyBytes() []byte {
	b, _ := s.pk.MarshalBinary()
	return b
}

func (s *BLSSigner) Sign(msg []byte) []byte {
	return bls.Sign(s.sk, msg)
}

// VerifyBLS verifies a signature against a compressed public key.
func VerifyBLS(pkBytes, msg, sigBytes []byte) bool {
	var pk BLSPubKey
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return false
	}
	return bls.Verify(&pk, msg, bls.Signature(sigBytes))
}
