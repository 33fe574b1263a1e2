package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const (
	tokenHashThreads = 1
	tokenHashKeyLen  = 32
)

// TokenHasher derives the stored form of a refresh-token bearer. The hash is
// argon2id over the bearer with a server-wide salt, so equal bearers always
// map to the same hex string and rows can be looked up by it.
type TokenHasher struct {
	salt      []byte
	time      uint32
	memoryKiB uint32
}

// NewTokenHasher returns a hasher with the given salt, iteration count and
// memory (KiB).
func NewTokenHasher(salt string, iterations, memoryKiB uint32) *TokenHasher {
	return &TokenHasher{
		salt:      []byte(salt),
		time:      iterations,
		memoryKiB: memoryKiB,
	}
}

// Hash returns hex(argon2id(bearer)).
func (h *TokenHasher) Hash(bearer string) string {
	key := argon2.IDKey([]byte(bearer), h.salt, h.time, h.memoryKiB, tokenHashThreads, tokenHashKeyLen)
	return hex.EncodeToString(key)
}
