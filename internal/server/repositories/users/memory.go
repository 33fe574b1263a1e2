package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, ok := r.byID[user.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID

	return user, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := *stored
	return &u, nil
}

// Delete removes the user with id. Missing users are ignored.
func (r *MemoryRepository) Delete(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.byID[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.byID, id)
	}
}
