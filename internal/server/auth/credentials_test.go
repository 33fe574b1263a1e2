package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubFinder struct {
	users map[string]*models.User
	err   error
	asked []string
}

func (s *stubFinder) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.asked = append(s.asked, email)
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type countingHasher struct {
	*BcryptHasher
	verifies int
}

func (c *countingHasher) Verify(hash, password string) error {
	c.verifies++
	return c.BcryptHasher.Verify(hash, password)
}

func newVerifier(t *testing.T) (*CredentialVerifier, *stubFinder, *countingHasher) {
	t.Helper()

	hasher := &countingHasher{BcryptHasher: NewBcryptHasher(bcrypt.MinCost)}
	hash, err := hasher.Hash("Aa1!aaaa")
	require.NoError(t, err)

	finder := &stubFinder{users: map[string]*models.User{
		"a@x.com": {ID: "u1", Email: "a@x.com", PasswordHash: hash},
	}}
	return NewCredentialVerifier(finder, hasher), finder, hasher
}

func TestVerify_Success(t *testing.T) {
	v, finder, _ := newVerifier(t)

	u, err := v.Verify(context.Background(), "  A@X.com ", "Aa1!aaaa")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{"a@x.com"}, finder.asked)
}

func TestVerify_WrongPassword(t *testing.T) {
	v, _, _ := newVerifier(t)

	_, err := v.Verify(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestVerify_UnknownUserStillCompares(t *testing.T) {
	v, _, hasher := newVerifier(t)

	_, err := v.Verify(context.Background(), "nobody@x.com", "Aa1!aaaa")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, 1, hasher.verifies)
}

func TestVerify_RepositoryFailure(t *testing.T) {
	v, finder, _ := newVerifier(t)
	finder.err = errors.New("db down")

	_, err := v.Verify(context.Background(), "a@x.com", "Aa1!aaaa")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}
