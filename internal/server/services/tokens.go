package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
	"github.com/oklog/ulid/v2"
)

// bearerBytes is the entropy of a refresh-token bearer; the bearer is its
// hex encoding.
const bearerBytes = 32

// errExpiredRefreshToken marks a consumed row that was already past expiry.
var errExpiredRefreshToken = fmt.Errorf("%w: expired", common.ErrInvalidRefreshToken)

// TokenHasher maps a bearer to its stored, indexable hash.
type TokenHasher interface {
	Hash(bearer string) string
}

// RefreshTokenStore issues and resolves refresh tokens. Only hashes reach
// the repository.
type RefreshTokenStore struct {
	repo   refreshtokens.Repository
	hasher TokenHasher
	now    func() time.Time
}

// NewRefreshTokenStore returns a store over repo.
func NewRefreshTokenStore(repo refreshtokens.Repository, hasher TokenHasher) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo, hasher: hasher, now: time.Now}
}

// With returns a copy of the store bound to repo, typically a transactional
// one.
func (s *RefreshTokenStore) With(repo refreshtokens.Repository) *RefreshTokenStore {
	c := *s
	c.repo = repo
	return &c
}

// Hash returns the stored form of bearer.
func (s *RefreshTokenStore) Hash(bearer string) string {
	return s.hasher.Hash(bearer)
}

// Create issues a new bearer for user expiring at expiry (epoch seconds) and
// persists its hash.
func (s *RefreshTokenStore) Create(ctx context.Context, user *models.User, expiry int64) (string, *models.RefreshToken, error) {
	bearer, err := common.MakeRandHexString(bearerBytes)
	if err != nil {
		return "", nil, fmt.Errorf("%w: generate refresh token: %v", common.ErrorInternal, err)
	}

	row := &models.RefreshToken{
		ID:         ulid.Make().String(),
		Token:      s.hasher.Hash(bearer),
		ExpiryDate: expiry,
		UserID:     user.ID,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return "", nil, fmt.Errorf("%w: store refresh token: %v", common.ErrorInternal, err)
	}

	return bearer, row, nil
}

// FindByBearer resolves bearer to its row. Unknown and expired bearers both
// yield common.ErrInvalidRefreshToken.
func (s *RefreshTokenStore) FindByBearer(ctx context.Context, bearer string) (*models.RefreshToken, error) {
	row, err := s.repo.FindByHash(ctx, s.hasher.Hash(bearer))
	if err != nil {
		return nil, s.mapLookupErr(err)
	}
	if row.Expired(s.now().Unix()) {
		return nil, common.ErrInvalidRefreshToken
	}
	return row, nil
}

// Consume atomically resolves and deletes the row of bearer. An expired row
// is still deleted; it is returned together with an error matching
// common.ErrInvalidRefreshToken.
func (s *RefreshTokenStore) Consume(ctx context.Context, bearer string) (*models.RefreshToken, error) {
	row, err := s.repo.Consume(ctx, s.hasher.Hash(bearer))
	if err != nil {
		return nil, s.mapLookupErr(err)
	}
	if row.Expired(s.now().Unix()) {
		return row, errExpiredRefreshToken
	}
	return row, nil
}

// Delete removes the row with hash.
func (s *RefreshTokenStore) Delete(ctx context.Context, hash string) error {
	if err := s.repo.Delete(ctx, hash); err != nil {
		return s.mapLookupErr(err)
	}
	return nil
}

// DeleteMany removes rows of userID matching hash or expired before now.
func (s *RefreshTokenStore) DeleteMany(ctx context.Context, userID, hash string, now int64) (int64, error) {
	return s.repo.DeleteForUser(ctx, userID, hash, now)
}

// DeleteExpired removes all rows expired before now.
func (s *RefreshTokenStore) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	return s.repo.DeleteExpired(ctx, now)
}

func (s *RefreshTokenStore) mapLookupErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrInvalidRefreshToken
	}
	return fmt.Errorf("%w: %v", common.ErrorInternal, err)
}
