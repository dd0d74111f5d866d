package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/swapslot/escrowd/pkg/ledger"
)

// Signer manages a secp256k1 key pair for signing requests. Principals are
// the full keccak-256 of the uncompressed public key — 32 bytes, no
// EVM-style truncation.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	principal  ledger.Address
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Signer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newSigner(privateKey)
}

// FromPrivateKeyHex creates a Signer from a hex-encoded private key
// (64 hex chars, optional 0x prefix handled by the caller).
func FromPrivateKeyHex(hexKey string) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newSigner(privateKey)
}

func newSigner(privateKey *ecdsa.PrivateKey) (*Signer, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	principal, err := ledger.AddressFromPubkey(crypto.FromECDSAPub(publicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to derive principal: %w", err)
	}
	return &Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		principal:  principal,
	}, nil
}

// Principal returns the 32-byte principal derived from the public key.
func (s *Signer) Principal() ledger.Address {
	return s.principal
}

// PrivateKeyHex returns the private key as a hex string (no 0x prefix).
// WARNING: keep this secret, never log it.
func (s *Signer) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// Sign signs a 32-byte digest and returns the 65-byte [R || S || V]
// signature with recovery id.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signature, nil
}

// RecoverPrincipal recovers the signing principal from a digest and a
// 65-byte signature.
func RecoverPrincipal(digest []byte, signature []byte) (ledger.Address, error) {
	if len(signature) != 65 {
		return ledger.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(digest) != 32 {
		return ledger.Address{}, fmt.Errorf("invalid digest length: %d", len(digest))
	}
	publicKeyBytes, err := crypto.Ecrecover(digest, signature)
	if err != nil {
		return ledger.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return ledger.AddressFromPubkey(publicKeyBytes)
}

// VerifySignature reports whether signature over digest was created by the
// given principal.
func VerifySignature(principal ledger.Address, digest []byte, signature []byte) bool {
	recovered, err := RecoverPrincipal(digest, signature)
	if err != nil {
		return false
	}
	return recovered == principal
}

// Keccak256 hashes arbitrary bytes to a 32-byte digest.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}
