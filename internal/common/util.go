package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter is the number of random bytes, so the result is twice
// as long. It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns n bytes read from crypto/rand.
// It panics if the system random source fails.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites b with zeros. Nil slices are ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NormalizeEmail trims and lower-cases an email address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
