package ledger

import "fmt"

// Pebble key schema. Prefix-based so owners and nonces can be range-scanned;
// the address hex form keeps keys human-readable in debugging tools.
const (
	prefixAccount = "acc:"   // account state (JSON)
	prefixNonce   = "nonce:" // per-principal replay nonce (8 bytes, big-endian)
)

// accountKey returns the key for an account.
// Format: "acc:{address}"
func accountKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, addr.Hex()))
}

// nonceKey returns the key for a principal's replay nonce.
// Format: "nonce:{address}"
func nonceKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixNonce, addr.Hex()))
}

// accountPrefix is the range prefix covering every stored account.
func accountPrefix() []byte {
	return []byte(prefixAccount)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan by
// incrementing the prefix's last byte.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// addressFromAccountKey recovers the address from an account key. Inverse of
// accountKey, used when iterating.
func addressFromAccountKey(key []byte) (Address, error) {
	if len(key) <= len(prefixAccount) {
		return Address{}, fmt.Errorf("%w: short account key", ErrInvalidArgument)
	}
	return HexToAddress(string(key[len(prefixAccount):]))
}
