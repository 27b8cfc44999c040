package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

// MemoryRepository keeps users in process memory. The email index is
// checked and updated under the same lock as the insert.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Roles = append([]string{}, u.Roles...)
	if u.Phone != nil {
		v := *u.Phone
		c.Phone = &v
	}
	if u.Avatar != nil {
		v := *u.Avatar
		c.Avatar = &v
	}
	if u.OTP != nil {
		v := *u.OTP
		c.OTP = &v
	}
	if u.OTPExpiresAt != nil {
		v := *u.OTPExpiresAt
		c.OTPExpiresAt = &v
	}
	return &c
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) Save(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := cloneUser(user)
	saved.Roles = models.NormalizeRoles(user.Roles)
	now := r.now().UTC()

	if owner, taken := r.byEmail[saved.Email]; taken && owner != saved.ID {
		return nil, fmt.Errorf("%w: email", common.ErrConflict)
	}

	if saved.ID == "" {
		saved.ID = uuid.NewString()
		saved.CreatedAt = now
	} else {
		prev, ok := r.byID[saved.ID]
		if !ok {
			return nil, common.ErrorNotFound
		}
		saved.CreatedAt = prev.CreatedAt
		if prev.Email != saved.Email {
			delete(r.byEmail, prev.Email)
		}
	}
	saved.UpdatedAt = now

	r.byID[saved.ID] = saved
	r.byEmail[saved.Email] = saved.ID
	return cloneUser(saved), nil
}

func (r *MemoryRepository) update(id string, fn func(u *models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r *MemoryRepository) SetPendingOTP(_ context.Context, id string, code string, expiresAt time.Time) error {
	return r.update(id, func(u *models.User) {
		u.OTP = &code
		u.OTPExpiresAt = &expiresAt
	})
}

func (r *MemoryRepository) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) {
		u.Verified = true
		u.OTP = nil
		u.OTPExpiresAt = nil
	})
}
