package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authsession/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes and checks passwords with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify compares password with hash in constant time. A mismatch yields
// common.ErrInvalidCredentials; a malformed hash is reported as is.
func (h *BcryptHasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return common.ErrInvalidCredentials
	default:
		return fmt.Errorf("verify password: %w", err)
	}
}
