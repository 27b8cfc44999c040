package authctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/services"
)

type fakeService struct {
	regIn  services.RegisterParams
	regErr error

	revokeIn  string
	revokeN   int64
	revokeErr error
}

func (f *fakeService) Register(_ context.Context, p services.RegisterParams) (*models.User, error) {
	f.regIn = p
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "u1", Email: p.Email}, nil
}

func (f *fakeService) RevokeAll(_ context.Context, email string) (int64, error) {
	f.revokeIn = email
	return f.revokeN, f.revokeErr
}

// stubPasswords makes readPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		a := answers[i]
		i++
		return []byte(a), nil
	}
}

func newCommand(svc Service, stdin string) (*Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(svc, bufio.NewReader(strings.NewReader(stdin)), out), out
}

func TestRegister_WithFlags(t *testing.T) {
	stubPasswords(t, "s3cret", "s3cret")
	svc := &fakeService{}
	cmd, out := newCommand(svc, "")

	err := cmd.Run(context.Background(), "register", []string{"-b", "memory", "-email", "ops@example.com", "-roles", "admin,user"})
	require.NoError(t, err)

	assert.Equal(t, "ops@example.com", svc.regIn.Email)
	assert.Equal(t, "s3cret", svc.regIn.Password)
	assert.Equal(t, []string{"admin", "user"}, svc.regIn.Roles)
	assert.Contains(t, out.String(), "registered ops@example.com id=u1")
}

func TestRegister_PromptsForEmail(t *testing.T) {
	stubPasswords(t, "pw", "pw")
	svc := &fakeService{}
	cmd, _ := newCommand(svc, "typed@example.com\n")

	require.NoError(t, cmd.Run(context.Background(), "register", nil))
	assert.Equal(t, "typed@example.com", svc.regIn.Email)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	stubPasswords(t, "one", "two")
	svc := &fakeService{}
	cmd, _ := newCommand(svc, "")

	err := cmd.Run(context.Background(), "register", []string{"-email=ops@example.com"})
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, svc.regIn.Email)
}

func TestRegister_ServiceError(t *testing.T) {
	stubPasswords(t, "pw", "pw")
	cmd, _ := newCommand(&fakeService{regErr: common.ErrConflict}, "")

	err := cmd.Run(context.Background(), "register", []string{"-email", "ops@example.com"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestRevoke(t *testing.T) {
	svc := &fakeService{revokeN: 3}
	cmd, out := newCommand(svc, "")

	require.NoError(t, cmd.Run(context.Background(), "revoke", []string{"-email", "ops@example.com"}))
	assert.Equal(t, "ops@example.com", svc.revokeIn)
	assert.Contains(t, out.String(), "revoked 3 refresh token(s)")

	err := cmd.Run(context.Background(), "revoke", nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestUnknownCommand(t *testing.T) {
	cmd, out := newCommand(&fakeService{}, "")

	require.Error(t, cmd.Run(context.Background(), "frobnicate", nil))
	assert.Contains(t, out.String(), "usage: authctl")
}

func TestOwnArgs(t *testing.T) {
	got := ownArgs([]string{"-d", "postgres://x", "-email", "a@b.c", "-s=secret", "-name=Ops"}, "email", "name")
	assert.Equal(t, []string{"-email", "a@b.c", "-name=Ops"}, got)
}

func TestGetSimpleText_EOF(t *testing.T) {
	out := &bytes.Buffer{}

	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("partial")), "Email", out)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "Email", out)
	require.Error(t, err)
}
