package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/dbx"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, token, expiry_date, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, token.ID, token.Token, token.ExpiryDate, token.UserID).
		Scan(&token.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, token, expiry_date, user_id, created_at
		FROM refresh_tokens
		WHERE token = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, hash))
}

// Consume is a single DELETE ... RETURNING, so the row lock taken by the
// delete decides which of several concurrent callers gets the row.
func (r *PostgresRepository) Consume(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
		RETURNING id, token, expiry_date, user_id, created_at
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, hash))
}

func (r *PostgresRepository) Delete(ctx context.Context, hash string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	res, err := r.db.ExecContext(ctx, query, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteForUser(ctx context.Context, userID, hash string, now int64) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND (token = $2 OR expiry_date < $3)
	`
	return r.execCount(ctx, query, userID, hash, now)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expiry_date < $1
	`
	return r.execCount(ctx, query, now)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	if err := row.Scan(&t.ID, &t.Token, &t.ExpiryDate, &t.UserID, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}
