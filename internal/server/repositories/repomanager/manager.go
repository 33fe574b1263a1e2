// Package repomanager vends the repositories of one storage backend and runs
// units of work against them.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/users"
)

// Scope is the set of repositories visible to one unit of work.
type Scope interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
}

// Manager is implemented by each storage backend.
//
// InTx runs fn inside a transaction. When fn returns an error every write it
// made through the Scope is undone: SQL writes by rolling back, writes to
// non-transactional stores (memory, Redis) by replaying an undo journal.
type Manager interface {
	Scope
	InTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Option customises a Manager.
type Option func(*options)

type options struct {
	refreshTokens refreshtokens.Repository
}

// WithRefreshTokens replaces the backend's own refresh-token repository,
// e.g. with a Redis one.
func WithRefreshTokens(repo refreshtokens.Repository) Option {
	return func(o *options) { o.refreshTokens = repo }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
