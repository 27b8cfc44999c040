package users

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PostgresRepository)(nil)
var _ Repository = (*MongoRepository)(nil)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	saved, err := repo.Save(ctx, &models.User{Email: "a@x.io", PasswordHash: "h", Roles: []string{"b", "a"}})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, []string{"a", "b"}, saved.Roles)
	assert.False(t, saved.CreatedAt.IsZero())

	byEmail, err := repo.FindByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, saved, byEmail)

	byID, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, byID)

	exists, err := repo.ExistsByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "b@x.io")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByEmail(ctx, "b@x.io")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	saved, err := repo.Save(ctx, &models.User{Email: "a@x.io", Roles: []string{"member"}})
	require.NoError(t, err)

	saved.Roles[0] = "admin"
	saved.PasswordHash = "tampered"

	again, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, again.Roles)
	assert.Empty(t, again.PasswordHash)
}

func TestMemoryRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Save(ctx, &models.User{Email: "a@x.io"})
	require.NoError(t, err)

	_, err = repo.Save(ctx, &models.User{Email: "a@x.io"})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestMemoryRepository_ConcurrentSameEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	const workers = 32
	var (
		wg        sync.WaitGroup
		ok        atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Save(ctx, &models.User{Email: "race@x.io"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, workers-1, conflicts.Load())
}

func TestMemoryRepository_UpdateChangesEmailIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Save(ctx, &models.User{Email: "old@x.io"})
	require.NoError(t, err)

	u.Email = "new@x.io"
	_, err = repo.Save(ctx, u)
	require.NoError(t, err)

	_, err = repo.FindByEmail(ctx, "old@x.io")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	got, err := repo.FindByEmail(ctx, "new@x.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.Save(ctx, &models.User{ID: "missing", Email: "z@x.io"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_Mutations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Save(ctx, &models.User{Email: "a@x.io", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new"))

	exp := time.Now().Add(time.Minute)
	require.NoError(t, repo.SetPendingOTP(ctx, u.ID, "123456", exp))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	require.NotNil(t, got.OTP)
	assert.Equal(t, "123456", *got.OTP)
	assert.False(t, got.Verified)

	require.NoError(t, repo.MarkVerified(ctx, u.ID))
	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Nil(t, got.OTP)
	assert.Nil(t, got.OTPExpiresAt)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, "nope", "x"), common.ErrorNotFound)
	assert.ErrorIs(t, repo.MarkVerified(ctx, "nope"), common.ErrorNotFound)
}
