// Package repomanager hands out the user and refresh-token repositories for
// the configured storage backend and runs work against them as one unit.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/users"
)

// Repositories bundles the stores a unit of work operates on.
type Repositories struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository
}

type RepositoryManager interface {
	// Repositories returns stores bound to the backend's default handle.
	Repositories() Repositories

	// WithinTx runs fn with stores that share one unit of work. On backends
	// with transactions a returned error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// RunMigrations brings the schema (tables or indexes) up to date.
	RunMigrations(ctx context.Context) error

	Close(ctx context.Context) error
}
