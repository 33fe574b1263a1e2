package repomanager

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authsession/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/users"
)

// MemoryManager keeps everything in process memory.
type MemoryManager struct {
	users  *users.MemoryRepository
	tokens refreshtokens.Repository
}

// NewMemoryManager returns an empty in-memory backend.
func NewMemoryManager(opts ...Option) *MemoryManager {
	o := buildOptions(opts)
	tokens := o.refreshTokens
	if tokens == nil {
		tokens = refreshtokens.NewMemoryRepository()
	}
	return &MemoryManager{
		users:  users.NewMemoryRepository(),
		tokens: tokens,
	}
}

func (m *MemoryManager) Users() users.Repository {
	return m.users
}

func (m *MemoryManager) RefreshTokens() refreshtokens.Repository {
	return m.tokens
}

func (m *MemoryManager) InTx(ctx context.Context, fn func(ctx context.Context, s Scope) error) error {
	j := &journal{}
	s := &scope{
		users:  m.users,
		tokens: &journaledTokens{Repository: m.tokens, j: j},
	}
	if err := fn(ctx, s); err != nil {
		if rbErr := j.rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return nil
}

func (m *MemoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryManager) Ping(context.Context) error { return nil }

func (m *MemoryManager) Close() error { return nil }

type scope struct {
	users  users.Repository
	tokens refreshtokens.Repository
}

func (s *scope) Users() users.Repository                 { return s.users }
func (s *scope) RefreshTokens() refreshtokens.Repository { return s.tokens }
