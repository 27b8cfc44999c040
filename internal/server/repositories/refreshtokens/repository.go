// Package refreshtokens declares the refresh-token store and its Postgres,
// MongoDB and in-memory implementations.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

// Repository persists refresh tokens. Token strings are unique.
type Repository interface {
	// FindByToken returns common.ErrorNotFound for unknown tokens.
	FindByToken(ctx context.Context, token string) (models.RefreshToken, error)

	// Save stores a new token and returns it with its assigned ID.
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// DeleteByToken removes the token if present; a missing token is not an error.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteByUserID removes every token of the user and reports how many went.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// Delete removes a specific stored token; a missing one is not an error.
	Delete(ctx context.Context, token models.RefreshToken) error

	// Consume deletes the token and returns what was stored. Only one of
	// several concurrent callers gets the record; the rest see
	// common.ErrorNotFound.
	Consume(ctx context.Context, token string) (models.RefreshToken, error)
}
