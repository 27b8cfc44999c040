// Package services contains the auth server's business logic. AuthService
// handles registration, login, logout, refresh-token lifecycle, password
// changes and email verification.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/auth"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/config"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/otp"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/security"
)

// refreshTokenBytes gives 256 bits of entropy per refresh token.
const refreshTokenBytes = 32

// RegisterParams is the input of Register. Email and Password are required.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Phone    *string
	Roles    []string
}

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	ID           string
	Name         string
	Email        string
	AccessToken  string
	RefreshToken string
	Roles        []string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	repos      repomanager.RepositoryManager
	hasher     security.PasswordHasher
	signer     auth.TokenSigner
	otp        *otp.Registry
	logger     logging.Logger
	refreshTTL time.Duration
	now        func() time.Time

	// dummyHash is compared against on unknown-email logins so they cost
	// the same as a wrong password.
	dummyHash string
}

func NewAuthService(
	m repomanager.RepositoryManager,
	hasher security.PasswordHasher,
	signer auth.TokenSigner,
	registry *otp.Registry,
	logger logging.Logger,
	cfg *config.Config,
) (*AuthService, error) {
	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		repos:      m,
		hasher:     hasher,
		signer:     signer,
		otp:        registry,
		logger:     logger.With("module", "auth"),
		refreshTTL: cfg.RefreshTokenValidityDuration,
		now:        time.Now,
		dummyHash:  dummy,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func requireCredentials(email, password string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	return nil
}

// Register creates an unverified user. The password is stored only as a hash.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	email := normalizeEmail(p.Email)
	if err := requireCredentials(email, p.Password); err != nil {
		return nil, err
	}

	users := s.repos.Repositories().Users
	exists, err := users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The store's unique email index settles races the check above misses.
	user, err := users.Save(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(p.Name),
		Phone:        p.Phone,
		Roles:        p.Roles,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "email", email, "user_id", user.ID)
	return user, nil
}

// Login checks credentials and issues an access token plus a stored refresh
// token. Unknown email and wrong password both yield common.ErrorUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := requireCredentials(email, password); err != nil {
		return nil, err
	}

	user, err := s.checkPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	access, err := s.issueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "email", email, "user_id", user.ID)
	return &LoginResult{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		Roles:        user.Roles,
	}, nil
}

// Logout deletes the refresh token. Unknown tokens are already logged out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", common.ErrValidation)
	}
	if err := s.repos.Repositories().RefreshTokens.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// IssueRefreshToken stores a new random token for user that expires after the
// configured refresh lifetime, and returns the token string.
func (s *AuthService) IssueRefreshToken(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	return s.issueRefreshToken(ctx, s.repos.Repositories().RefreshTokens, user.ID)
}

func (s *AuthService) issueRefreshToken(ctx context.Context, repo refreshtokens.Repository, userID string) (string, error) {
	token, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	if _, err := repo.Save(ctx, models.NewRefreshToken(token, userID, s.now().Add(s.refreshTTL))); err != nil {
		return "", fmt.Errorf("save refresh token: %w", err)
	}
	return token, nil
}

// ValidateRefreshToken reports whether the token exists and has not expired.
// An expired token is deleted on the way out.
func (s *AuthService) ValidateRefreshToken(ctx context.Context, refreshToken string) (bool, error) {
	repo := s.repos.Repositories().RefreshTokens

	t, err := repo.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find refresh token: %w", err)
	}

	if t.Expired(s.now()) {
		if err := repo.Delete(ctx, t); err != nil {
			s.logger.Warn(ctx, "expired refresh token cleanup failed", "user_id", t.UserID(), "error", err)
		}
		return false, nil
	}
	return true, nil
}

// RefreshAccessToken trades a live refresh token for a new pair. The old
// token is consumed, so it works at most once. Unknown tokens yield
// common.ErrorUnauthorized and expired ones common.ErrRefreshTokenExpired.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrValidation)
	}

	var (
		pair    *TokenPair
		expired bool
	)
	err := s.repos.WithinTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		old, err := repos.RefreshTokens.Consume(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("consume refresh token: %w", err)
		}
		// Committing with the token gone is the cleanup.
		if old.Expired(s.now()) {
			expired = true
			return nil
		}

		user, err := repos.Users.FindByID(ctx, old.UserID())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("find user: %w", err)
		}

		access, err := s.issueAccessToken(user)
		if err != nil {
			return err
		}
		refresh, err := s.issueRefreshToken(ctx, repos.RefreshTokens, user.ID)
		if err != nil {
			return err
		}
		pair = &TokenPair{AccessToken: access, RefreshToken: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrRefreshTokenExpired
	}
	return pair, nil
}

// ChangePassword replaces the password after checking the old one and
// revokes every refresh token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	email = normalizeEmail(email)
	if err := requireCredentials(email, oldPassword); err != nil {
		return err
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}

	user, err := s.checkPassword(ctx, email, oldPassword)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = s.repos.WithinTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if err := repos.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		n, err := repos.RefreshTokens.DeleteByUserID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		revoked = n
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID, "revoked_tokens", revoked)
	return nil
}

// RevokeAll deletes every refresh token of the user with the given email.
func (s *AuthService) RevokeAll(ctx context.Context, email string) (int64, error) {
	email = normalizeEmail(email)
	if email == "" {
		return 0, fmt.Errorf("%w: email is required", common.ErrValidation)
	}

	repos := s.repos.Repositories()
	user, err := repos.Users.FindByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	n, err := repos.RefreshTokens.DeleteByUserID(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.logger.Info(ctx, "refresh tokens revoked", "user_id", user.ID, "revoked_tokens", n)
	return n, nil
}

// RequestEmailVerification generates a code for the user, records it as
// pending on the user and mails it. Unknown emails are a silent no-op.
func (s *AuthService) RequestEmailVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}

	users := s.repos.Repositories().Users
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		// Unknown emails look accepted so the endpoint cannot enumerate accounts.
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "verification requested for unknown email", "email", email)
			return nil
		}
		return err
	}

	entry, err := s.otp.Generate(ctx, email)
	if err != nil {
		return err
	}
	if err := users.SetPendingOTP(ctx, user.ID, entry.Code, entry.ExpiresAt); err != nil {
		return fmt.Errorf("record pending otp: %w", err)
	}
	return s.otp.SendEmail(ctx, email)
}

// VerifyEmail checks the code and, when it matches, marks the user verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return false, fmt.Errorf("%w: email and code are required", common.ErrValidation)
	}

	ok, err := s.otp.Validate(ctx, code, email)
	if err != nil || !ok {
		return false, err
	}

	users := s.repos.Repositories().Users
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if err := users.MarkVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}

	s.logger.Info(ctx, "email verified", "email", email, "user_id", user.ID)
	return true, nil
}

// Authenticate resolves an access token to its principal.
func (s *AuthService) Authenticate(_ context.Context, accessToken string) (auth.Principal, error) {
	if accessToken == "" {
		return auth.Principal{}, common.ErrInvalidToken
	}
	return s.signer.Parse(accessToken)
}

// Profile loads the user behind a principal.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.repos.Repositories().Users.FindByID(ctx, userID)
}

func (s *AuthService) checkPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repos.Repositories().Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Matches(password, s.dummyHash)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.Matches(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *AuthService) issueAccessToken(user *models.User) (string, error) {
	token, err := s.signer.Issue(auth.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		Authorities: user.Roles,
	})
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}
