package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`DROP TABLE IF EXISTS refresh_tokens`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE refresh_tokens (token TEXT PRIMARY KEY, user_id TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countTokens(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM refresh_tokens`).Scan(&n))
	return n
}

func insertToken(ctx context.Context, tx DBTX, token string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO refresh_tokens(token, user_id) VALUES (?, 'u1')`, token)
	return err
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return insertToken(ctx, tx, "t1")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countTokens(t, db))
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertToken(ctx, tx, "t1"))
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countTokens(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		require.NotNil(t, recover(), "expected panic to propagate")
		assert.Equal(t, 0, countTokens(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertToken(ctx, tx, "t1"))
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "unique violation", in: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, want: common.ErrConflict},
		{name: "foreign key violation", in: &pgconn.PgError{Code: "23503"}, want: common.ErrorNotFound},
		{name: "malformed uuid", in: &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}, want: common.ErrorNotFound},
		{name: "other pg error", in: &pgconn.PgError{Code: "57P01"}, want: common.ErrorInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.in), tt.want)
		})
	}

	t.Run("other errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		err := MapError(boom)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, common.ErrorInternal)
		assert.NotErrorIs(t, err, common.ErrConflict)
		assert.Contains(t, err.Error(), "db error: boom")
	})
}
