package repomanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/users"
)

func TestInMemoryRepositoryManager_SharedStores(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	require.NoError(t, m.RunMigrations(ctx))

	err := m.WithinTx(ctx, func(ctx context.Context, repos Repositories) error {
		u, err := repos.Users.Save(ctx, &models.User{Email: "a@x.io"})
		if err != nil {
			return err
		}
		_, err = repos.RefreshTokens.Save(ctx, models.NewRefreshToken("t", u.ID, time.Now().Add(time.Hour)))
		return err
	})
	require.NoError(t, err)

	repos := m.Repositories()
	_, err = repos.Users.FindByEmail(ctx, "a@x.io")
	assert.NoError(t, err)
	_, err = repos.RefreshTokens.FindByToken(ctx, "t")
	assert.NoError(t, err)

	assert.NoError(t, m.Close(ctx))
}

func TestInMemoryRepositoryManager_WithinTxSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithinTx(ctx, func(context.Context, Repositories) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestMongoRepositoryManager_Repositories(t *testing.T) {
	// Connect is lazy; no server is contacted here.
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)

	m := NewMongoRepositoryManager(client, "auth_test")
	repos := m.Repositories()
	assert.IsType(t, &users.MongoRepository{}, repos.Users)
	assert.IsType(t, &refreshtokens.MongoRepository{}, repos.RefreshTokens)

	called := false
	require.NoError(t, m.WithinTx(context.Background(), func(_ context.Context, r Repositories) error {
		called = true
		assert.Equal(t, repos, r)
		return nil
	}))
	assert.True(t, called)

	assert.NoError(t, m.Close(context.Background()))
}
