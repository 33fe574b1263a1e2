package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/users"
)

// UserService creates accounts. It is the only user write path.
type UserService struct {
	users  users.Repository
	hasher auth.PasswordHasher
}

// NewUserService returns a service writing to repo.
func NewUserService(repo users.Repository, hasher auth.PasswordHasher) *UserService {
	return &UserService{users: repo, hasher: hasher}
}

// Register stores a new user with a hashed password. The email is
// normalised first; a taken email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string, isAdmin bool) (*models.User, error) {
	email = common.NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email", common.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", common.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	u, err := s.users.Create(ctx, &models.User{Email: email, PasswordHash: hash, IsAdmin: isAdmin})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}
