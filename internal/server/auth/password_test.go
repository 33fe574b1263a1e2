package auth

import (
	"testing"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	assert.NotEqual(t, "Aa1!aaaa", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NoError(t, h.Verify(hash, "Aa1!aaaa"))
	assert.ErrorIs(t, h.Verify(hash, "Aa1!aaab"), common.ErrInvalidCredentials)
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	t.Parallel()

	err := NewBcryptHasher(bcrypt.MinCost).Verify("not-a-hash", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestNewBcryptHasher_OutOfRangeCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
}
