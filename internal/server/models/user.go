// Package models defines the server-side records persisted by the auth stores.
package models

import (
	"slices"
	"strings"
	"time"
)

// User is an identity record keyed by a unique email.
//
// PasswordHash always holds the output of a security.PasswordHasher, never the
// plaintext. OTP and OTPExpiresAt are set only while an email verification is
// pending.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        *string
	Avatar       *string
	Roles        []string
	Verified     bool
	OTP          *string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeRoles trims, de-duplicates and sorts role names. The result is
// never nil so stores persist an empty set rather than NULL.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}
