package repomanager

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/authsession/internal/dbx"
	"github.com/dmitrijs2005/authsession/internal/server/migrations"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresManager vends PostgreSQL-backed repositories and runs units of
// work in database transactions.
type PostgresManager struct {
	db     *sql.DB
	tokens refreshtokens.Repository
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn and wraps it.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresManager(db, opts...), nil
}

// NewPostgresManager wraps an open database. A refresh-token repository
// passed with WithRefreshTokens replaces the SQL one.
func NewPostgresManager(db *sql.DB, opts ...Option) *PostgresManager {
	o := buildOptions(opts)
	return &PostgresManager{db: db, tokens: o.refreshTokens}
}

// Users returns a users.Repository bound to the pool.
func (m *PostgresManager) Users() users.Repository {
	return users.NewPostgresRepository(m.db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the pool.
func (m *PostgresManager) RefreshTokens() refreshtokens.Repository {
	if m.tokens != nil {
		return m.tokens
	}
	return refreshtokens.NewPostgresRepository(m.db)
}

// InTx runs fn in a database transaction. With an external refresh-token
// repository its writes are journaled and undone when the transaction fails.
func (m *PostgresManager) InTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error {
	var j *journal
	if m.tokens != nil {
		j = &journal{}
	}

	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s := &scope{users: users.NewPostgresRepository(tx)}
		if j != nil {
			s.tokens = &journaledTokens{Repository: m.tokens, j: j}
		} else {
			s.tokens = refreshtokens.NewPostgresRepository(tx)
		}
		return fn(ctx, s)
	})

	if err != nil && j != nil {
		if rbErr := j.rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
	}
	return err
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and applies them.
func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}
