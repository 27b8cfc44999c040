// Package users declares the credential store: user records keyed by a
// unique email, with Postgres, MongoDB and in-memory implementations.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

// Repository persists users. Lookups of missing users return
// common.ErrorNotFound; Save of an email that is already taken returns an
// error wrapping common.ErrConflict.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Save inserts a user without an ID and updates one that has it. The
	// returned copy carries the assigned ID and timestamps.
	Save(ctx context.Context, user *models.User) (*models.User, error)

	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetPendingOTP(ctx context.Context, id string, code string, expiresAt time.Time) error

	// MarkVerified sets the verified flag and clears any pending OTP.
	MarkVerified(ctx context.Context, id string) error
}
