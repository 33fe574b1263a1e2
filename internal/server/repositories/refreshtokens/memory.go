package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
)

// MemoryRepository keeps refresh tokens in a mutex-guarded map keyed by
// hash.
type MemoryRepository struct {
	mu     sync.Mutex
	byHash map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byHash: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[token.Token]; ok {
		return common.ErrorAlreadyExists
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	r.byHash[token.Token] = *token
	return nil
}

func (r *MemoryRepository) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) Consume(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.byHash, hash)
	return &t, nil
}

func (r *MemoryRepository) Delete(_ context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[hash]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byHash, hash)
	return nil
}

func (r *MemoryRepository) DeleteForUser(_ context.Context, userID, hash string, now int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, t := range r.byHash {
		if t.UserID == userID && (h == hash || t.Expired(now)) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for h, t := range r.byHash {
		if t.Expired(now) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}
