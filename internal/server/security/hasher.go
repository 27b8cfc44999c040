// Package security turns raw passwords into one-way hashes and checks them.
package security

import (
	"fmt"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
)

// PasswordHasher is a one-way password transform. Matches must hold for any
// password passed to Hash and fail for anything else.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(password, hash string) bool
}

// DefaultBcryptCost keeps a login under a few hundred milliseconds on
// current hardware.
const DefaultBcryptCost = 12

// Argon2Hasher produces PHC-encoded argon2id hashes ("$argon2id$v=19$...").
// The parameters travel with the hash, so changing them later does not
// invalidate stored passwords.
type Argon2Hasher struct {
	cfg argon2.Config
}

// NewArgon2Hasher uses one pass over 64 MiB with four lanes and a 32-byte key.
func NewArgon2Hasher() *Argon2Hasher {
	cfg := argon2.DefaultConfig()
	cfg.TimeCost = 1
	cfg.MemoryCost = 64 * 1024
	cfg.Parallelism = 4
	cfg.HashLength = 32
	cfg.Mode = argon2.ModeArgon2id
	return &Argon2Hasher{cfg: cfg}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	raw := []byte(password)
	defer common.WipeByteArray(raw)

	encoded, err := h.cfg.HashEncoded(raw)
	if err != nil {
		return "", fmt.Errorf("argon2 hash: %w", err)
	}
	return string(encoded), nil
}

func (h *Argon2Hasher) Matches(password, hash string) bool {
	raw := []byte(password)
	defer common.WipeByteArray(raw)

	ok, err := argon2.VerifyEncoded(raw, []byte(hash))
	return err == nil && ok
}

// BcryptHasher wraps golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to DefaultBcryptCost when cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Matches(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewPasswordHasher selects a hasher by algorithm name ("argon2" or "bcrypt").
func NewPasswordHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	switch algorithm {
	case "argon2":
		return NewArgon2Hasher(), nil
	case "bcrypt":
		return NewBcryptHasher(bcryptCost), nil
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", algorithm)
	}
}
