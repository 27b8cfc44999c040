package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/users"
)

// InMemoryRepositoryManager keeps everything in process memory. WithinTx
// calls are serialized against each other, which is enough to make token
// rotation atomic; it does not roll back on error.
type InMemoryRepositoryManager struct {
	mu    sync.Mutex
	repos Repositories
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		repos: Repositories{
			Users:         users.NewMemoryRepository(),
			RefreshTokens: refreshtokens.NewMemoryRepository(),
		},
	}
}

func (m *InMemoryRepositoryManager) Repositories() Repositories {
	return m.repos
}

func (m *InMemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m.repos)
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Close(context.Context) error { return nil }
