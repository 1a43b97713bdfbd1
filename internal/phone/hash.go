package phone

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

const (
	clearPrefix = 4
	clearSuffix = 2
)

// Hasher turns a normalized number into a stable pseudonymous identifier.
// Implementations must be deterministic: merges and cache keys depend on it.
type Hasher interface {
	Hash(normalized string) string
}

// LegacyHasher keeps the first four and last two digits in clear text for
// regional analytics and replaces the rest with an additive 31-multiplier
// digest. It is pseudonymization only and offers no unlinkability.
type LegacyHasher struct{}

func (LegacyHasher) Hash(normalized string) string {
	var h uint32
	for _, r := range normalized {
		h = h*31 + uint32(r)
	}
	return layout(normalized, strconv.FormatUint(uint64(h), 36))
}

// KeyedHasher uses the same layout as LegacyHasher but digests the number
// with keyed BLAKE2b, so identifiers cannot be recomputed without the key.
type KeyedHasher struct {
	key []byte
}

// NewKeyedHasher validates the key length (1..64 bytes).
func NewKeyedHasher(key []byte) (*KeyedHasher, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("hash key must be 1..%d bytes, got %d", blake2b.Size, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &KeyedHasher{key: k}, nil
}

func (k *KeyedHasher) Hash(normalized string) string {
	// key length is checked in NewKeyedHasher
	h, _ := blake2b.New256(k.key)
	h.Write([]byte(normalized))
	sum := h.Sum(nil)
	return layout(normalized, hex.EncodeToString(sum[:8]))
}

// NewHasher returns a KeyedHasher when key is non-empty, LegacyHasher otherwise.
func NewHasher(key string) (Hasher, error) {
	if key == "" {
		return LegacyHasher{}, nil
	}
	return NewKeyedHasher([]byte(key))
}

func layout(normalized, digest string) string {
	if len(normalized) <= clearPrefix+clearSuffix {
		return "h-" + digest
	}
	return normalized[:clearPrefix] + "-" + digest + "-" + normalized[len(normalized)-clearSuffix:]
}
