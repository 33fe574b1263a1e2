// Package refreshtokens declares the server-side repository contract for
// stored refresh tokens, with PostgreSQL, Redis and in-memory
// implementations. Rows are addressed by the hash of the bearer.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/server/models"
)

// Repository defines operations for storing, resolving and revoking refresh
// tokens.
type Repository interface {
	// Create stores token. A hash that already exists yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the row with the given hash, or common.ErrorNotFound.
	// Expired rows are returned as well; callers decide.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Consume deletes the row with the given hash and returns it. Of several
	// concurrent callers at most one receives the row; the others get
	// common.ErrorNotFound.
	Consume(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Delete removes the row with the given hash. A missing row yields
	// common.ErrorNotFound.
	Delete(ctx context.Context, hash string) error

	// DeleteForUser removes rows of userID whose hash equals hash or whose
	// expiry is before now (epoch seconds). It returns the number removed.
	DeleteForUser(ctx context.Context, userID, hash string, now int64) (int64, error)

	// DeleteExpired removes every row expiring before now.
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}
