package models

import "time"

// RefreshToken proves a prior successful login. It is built once and read
// through accessors; UserID is the only link to the owning user.
type RefreshToken struct {
	id        string
	token     string
	userID    string
	expiresAt time.Time
}

// NewRefreshToken builds a token that has not been stored yet.
func NewRefreshToken(token, userID string, expiresAt time.Time) RefreshToken {
	return RefreshToken{token: token, userID: userID, expiresAt: expiresAt}
}

// RestoreRefreshToken rebuilds a stored token, including its store-assigned id.
func RestoreRefreshToken(id, token, userID string, expiresAt time.Time) RefreshToken {
	return RefreshToken{id: id, token: token, userID: userID, expiresAt: expiresAt}
}

func (t RefreshToken) ID() string           { return t.id }
func (t RefreshToken) Token() string        { return t.token }
func (t RefreshToken) UserID() string       { return t.userID }
func (t RefreshToken) ExpiresAt() time.Time { return t.expiresAt }

// Expired reports whether the token's expiry lies before now.
func (t RefreshToken) Expired(now time.Time) bool {
	return t.expiresAt.Before(now)
}
