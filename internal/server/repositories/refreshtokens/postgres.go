package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/dbx"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (models.RefreshToken, error) {
	query := `
		SELECT id, user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1
	`
	var (
		id        string
		userID    string
		expiresAt time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&id, &userID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RefreshToken{}, common.ErrorNotFound
		}
		return models.RefreshToken{}, dbx.MapError(err)
	}
	return models.RestoreRefreshToken(id, token, userID, expiresAt), nil
}

// Save maps a duplicate token to common.ErrConflict and an unknown user to
// common.ErrorNotFound.
func (r *PostgresRepository) Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, t.UserID(), t.Token(), t.ExpiresAt()).Scan(&id); err != nil {
		return models.RefreshToken{}, dbx.MapError(err)
	}
	return models.RestoreRefreshToken(id, t.Token(), t.UserID(), t.ExpiresAt()), nil
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return dbx.MapError(err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, t models.RefreshToken) error {
	if t.ID() == "" {
		return r.DeleteByToken(ctx, t.Token())
	}
	query := `
		DELETE FROM refresh_tokens
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID()); err != nil {
		return dbx.MapError(err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, token string) (models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
		RETURNING id, user_id, expires_at
	`
	var (
		id        string
		userID    string
		expiresAt time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&id, &userID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RefreshToken{}, common.ErrorNotFound
		}
		return models.RefreshToken{}, dbx.MapError(err)
	}
	return models.RestoreRefreshToken(id, token, userID, expiresAt), nil
}
