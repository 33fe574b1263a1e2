// Package services contains the session core: the refresh-token store, the
// session manager built on it, the expiry sweeper and user registration.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/metrics"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/repomanager"
)

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*models.User, error)
}

// AccessTokenIssuer mints access tokens.
type AccessTokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

// SessionManager runs Login, Refresh and SignOut.
type SessionManager struct {
	repos      repomanager.Manager
	verifier   CredentialVerifier
	issuer     AccessTokenIssuer
	store      *RefreshTokenStore
	sweeper    *ExpirySweeper
	refreshTTL time.Duration
	metrics    *metrics.Recorder
	logger     logging.Logger
	now        func() time.Time
}

// Deps are the collaborators of a SessionManager.
type Deps struct {
	Repos    repomanager.Manager
	Verifier CredentialVerifier
	Issuer   AccessTokenIssuer
	Store    *RefreshTokenStore
	Sweeper  *ExpirySweeper
	Metrics  *metrics.Recorder
	Logger   logging.Logger
}

// NewSessionManager wires a SessionManager from explicit collaborators.
func NewSessionManager(d Deps, refreshTTL time.Duration) *SessionManager {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionManager{
		repos:      d.Repos,
		verifier:   d.Verifier,
		issuer:     d.Issuer,
		store:      d.Store,
		sweeper:    d.Sweeper,
		refreshTTL: refreshTTL,
		metrics:    d.Metrics,
		logger:     logger.With("module", "sessions"),
		now:        time.Now,
	}
}

// NewDefaultDeps builds the standard collaborators from cfg: bcrypt
// credential checks, an HS256 issuer and an argon2id-hashed token store over
// repos.
func NewDefaultDeps(repos repomanager.Manager, cfg *config.Config, logger logging.Logger, rec *metrics.Recorder) (Deps, *auth.AccessTokenIssuer) {
	issuer := auth.NewAccessTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.Location())
	hasher := auth.NewTokenHasher(cfg.RefreshTokenHashSalt, cfg.RefreshTokenHashCost, cfg.RefreshTokenHashMemoryKiB)
	store := NewRefreshTokenStore(repos.RefreshTokens(), hasher)

	return Deps{
		Repos:    repos,
		Verifier: auth.NewCredentialVerifier(repos.Users(), auth.NewBcryptHasher(cfg.PasswordHashCost)),
		Issuer:   issuer,
		Store:    store,
		Sweeper:  NewExpirySweeper(store, logger, rec),
		Metrics:  rec,
		Logger:   logger,
	}, issuer
}

// Login verifies credentials and opens a new session. Existing sessions of
// the user are left alone.
func (m *SessionManager) Login(ctx context.Context, email, password string) (payload *models.AuthPayload, err error) {
	defer m.observe(ctx, metrics.OpLogin, time.Now(), &err)

	user, err := m.verifier.Verify(ctx, email, password)
	if err != nil {
		return nil, err
	}

	payload, err = m.openSession(ctx, m.store, user)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return payload, nil
}

// Refresh rotates bearer: the presented row is consumed and a new one
// created in the same unit of work. A bearer is accepted at most once.
func (m *SessionManager) Refresh(ctx context.Context, bearer string) (payload *models.AuthPayload, err error) {
	defer m.observe(ctx, metrics.OpRefresh, time.Now(), &err)

	if bearer == "" {
		return nil, common.ErrMissingToken
	}

	var consumed *models.RefreshToken
	var expired bool

	err = m.repos.InTx(ctx, func(ctx context.Context, s repomanager.Scope) error {
		store := m.store.With(s.RefreshTokens())

		row, err := store.Consume(ctx, bearer)
		if errors.Is(err, errExpiredRefreshToken) {
			// keep the delete
			consumed, expired = row, true
			return nil
		}
		if err != nil {
			return err
		}

		user, err := s.Users().FindByID(ctx, row.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidUser
			}
			return fmt.Errorf("%w: find user: %v", common.ErrorInternal, err)
		}

		payload, err = m.openSession(ctx, store, user)
		if err != nil {
			return err
		}
		consumed = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.sweeper.SweepUser(ctx, consumed.UserID, consumed.Token)

	if expired {
		return nil, common.ErrInvalidRefreshToken
	}

	m.logger.Info(ctx, "session refreshed", "user_id", consumed.UserID, "replaced", consumed.ID)
	return payload, nil
}

// SignOut ends the session of bearer, which must belong to userID. Other
// sessions of the user are left alone.
func (m *SessionManager) SignOut(ctx context.Context, userID, bearer string) (err error) {
	defer m.observe(ctx, metrics.OpSignOut, time.Now(), &err)

	if bearer == "" {
		return common.ErrMissingToken
	}

	user, err := m.repos.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidUser
		}
		return fmt.Errorf("%w: find user: %v", common.ErrorInternal, err)
	}

	row, err := m.store.FindByBearer(ctx, bearer)
	if err != nil {
		return err
	}
	if row.UserID != user.ID {
		return common.ErrInvalidRefreshToken
	}

	if err := m.store.Delete(ctx, row.Token); err != nil {
		return err
	}

	m.sweeper.SweepUser(ctx, user.ID, row.Token)

	m.logger.Info(ctx, "user signed out", "user_id", user.ID, "session", row.ID)
	return nil
}

func (m *SessionManager) openSession(ctx context.Context, store *RefreshTokenStore, user *models.User) (*models.AuthPayload, error) {
	access, accessExpiry, err := m.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}

	refreshExpiry := m.now().Add(m.refreshTTL).Unix()
	bearer, _, err := store.Create(ctx, user, refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &models.AuthPayload{
		AccessToken:   access,
		AccessExpiry:  accessExpiry,
		RefreshToken:  bearer,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func (m *SessionManager) observe(ctx context.Context, op string, start time.Time, err *error) {
	m.metrics.Observe(op, start, *err)
	if *err != nil && errors.Is(*err, common.ErrorInternal) {
		m.logger.Error(ctx, "session operation failed", "operation", op, "error", *err)
	}
}
