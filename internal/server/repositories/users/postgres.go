package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/dbx"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, password_hash, name, phone, avatar, roles, verified, otp, otp_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var (
		u            models.User
		phone        sql.NullString
		avatar       sql.NullString
		roles        []byte
		otp          sql.NullString
		otpExpiresAt sql.NullTime
	)

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &phone, &avatar, &roles,
		&u.Verified, &otp, &otpExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		u.Phone = &phone.String
	}
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	if otp.Valid {
		u.OTP = &otp.String
	}
	if otpExpiresAt.Valid {
		u.OTPExpiresAt = &otpExpiresAt.Time
	}
	u.Roles = []string{}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &u.Roles); err != nil {
			return nil, fmt.Errorf("%w: decode roles: %w", common.ErrorInternal, err)
		}
	}

	return &u, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.MapError(err)
	}
	return user, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, dbx.MapError(err)
	}
	return exists, nil
}

func (r *PostgresRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	roles, err := json.Marshal(models.NormalizeRoles(user.Roles))
	if err != nil {
		return nil, fmt.Errorf("%w: encode roles: %w", common.ErrorInternal, err)
	}

	saved := *user
	saved.Roles = models.NormalizeRoles(user.Roles)

	if user.ID == "" {
		query :=
			`INSERT INTO users (email, password_hash, name, phone, avatar, roles, verified, otp, otp_expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, created_at, updated_at`

		err = r.db.QueryRowContext(ctx, query,
			user.Email, user.PasswordHash, user.Name, user.Phone, user.Avatar, string(roles),
			user.Verified, user.OTP, user.OTPExpiresAt,
		).Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			return nil, dbx.MapError(err)
		}
		return &saved, nil
	}

	query :=
		`UPDATE users
		 SET email = $2, password_hash = $3, name = $4, phone = $5, avatar = $6, roles = $7,
		     verified = $8, otp = $9, otp_expires_at = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Name, user.Phone, user.Avatar, string(roles),
		user.Verified, user.OTP, user.OTPExpiresAt,
	).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.MapError(err)
	}
	return &saved, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.MapError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
}

func (r *PostgresRepository) SetPendingOTP(ctx context.Context, id string, code string, expiresAt time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET otp = $2, otp_expires_at = $3, updated_at = now() WHERE id = $1`,
		id, code, expiresAt)
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE users SET verified = TRUE, otp = NULL, otp_expires_at = NULL, updated_at = now() WHERE id = $1`,
		id)
}
