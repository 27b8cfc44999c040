// Package auth issues and verifies the short-lived HS256 access tokens handed
// out after a successful login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
)

// Principal is the authenticated identity carried by an access token.
type Principal struct {
	UserID      string
	Email       string
	Authorities []string
}

// Claims is the JWT payload: registered claims plus the user id and roles.
// The subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"uid"`
	Authorities []string `json:"authorities,omitempty"`
}

// TokenSigner turns a principal into a signed access token and back.
type TokenSigner interface {
	Issue(p Principal) (string, error)
	Parse(token string) (Principal, error)
}

// JWTSigner signs HS256 tokens bound to an issuer and audience.
type JWTSigner struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewJWTSigner(secret []byte, issuer, audience string, ttl time.Duration) *JWTSigner {
	return &JWTSigner{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *JWTSigner) Issue(p Principal) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Email,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:      p.UserID,
		Authorities: p.Authorities,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm, issuer, audience and lifetime.
// An expired token yields common.ErrTokenExpired; any other failure wraps
// common.ErrInvalidToken.
func (s *JWTSigner) Parse(tokenString string) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, common.ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return Principal{}, common.ErrInvalidToken
	}

	return Principal{
		UserID:      claims.UserID,
		Email:       claims.Subject,
		Authorities: claims.Authorities,
	}, nil
}
