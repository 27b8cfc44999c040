package refreshtokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

// MemoryRepository keeps refresh tokens in process memory, keyed by token.
type MemoryRepository struct {
	mu      sync.RWMutex
	byToken map[string]models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byToken: make(map[string]models.RefreshToken)}
}

func (r *MemoryRepository) FindByToken(_ context.Context, token string) (models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byToken[token]
	if !ok {
		return models.RefreshToken{}, common.ErrorNotFound
	}
	return t, nil
}

func (r *MemoryRepository) Save(_ context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byToken[t.Token()]; taken {
		return models.RefreshToken{}, fmt.Errorf("%w: token", common.ErrConflict)
	}
	stored := models.RestoreRefreshToken(uuid.NewString(), t.Token(), t.UserID(), t.ExpiresAt())
	r.byToken[t.Token()] = stored
	return stored, nil
}

func (r *MemoryRepository) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byToken, token)
	return nil
}

func (r *MemoryRepository) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, t := range r.byToken {
		if t.UserID() == userID {
			delete(r.byToken, k)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Delete(_ context.Context, t models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byToken[t.Token()]
	if ok && (t.ID() == "" || stored.ID() == t.ID()) {
		delete(r.byToken, t.Token())
	}
	return nil
}

func (r *MemoryRepository) Consume(_ context.Context, token string) (models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byToken[token]
	if !ok {
		return models.RefreshToken{}, common.ErrorNotFound
	}
	delete(r.byToken, token)
	return t, nil
}
