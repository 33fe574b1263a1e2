// Package users declares the account repository and its PostgreSQL and
// in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/server/models"
)

// Repository reads and creates user accounts. Lookups return
// common.ErrorNotFound when no user matches; Create returns
// common.ErrorAlreadyExists for a taken email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}
