package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
)

// UserFinder looks users up by normalised email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// CredentialVerifier checks an email/password pair against stored users.
type CredentialVerifier struct {
	users  UserFinder
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier returns a verifier reading users from users.
func NewCredentialVerifier(users UserFinder, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher}
}

// Verify returns the user owning email when password matches. Unknown users
// and wrong passwords both yield common.ErrInvalidCredentials after a full
// hash comparison.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.users.FindByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = v.hasher.Verify(v.dummy(), password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find user: %v", common.ErrorInternal, err)
	}

	if err := v.hasher.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return user, nil
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
		if err == nil {
			v.dummyHash = h
		}
	})
	return v.dummyHash
}
