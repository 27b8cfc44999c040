// Package otp issues six-digit one-time passwords per email, delivers them by
// mail and checks them within their validity window.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/mailer"
)

const (
	DefaultTTL = 5 * time.Minute

	codeMin   = 100000
	codeRange = 900000

	emailSubject = "Your OTP Code"
)

// Registry maps an email to its latest code. Generating again for the same
// email replaces the previous code.
type Registry struct {
	store     Store
	sender    mailer.EmailSender
	logger    logging.Logger
	ttl       time.Duration
	singleUse bool
	now       func() time.Time
}

type Option func(*Registry)

// WithTTL sets how long a code stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithSingleUse makes a successful Validate consume the code.
func WithSingleUse(singleUse bool) Option {
	return func(r *Registry) { r.singleUse = singleUse }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry defaults to DefaultTTL and single-use codes.
func NewRegistry(store Store, sender mailer.EmailSender, logger logging.Logger, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		sender:    sender,
		logger:    logger.With("module", "otp"),
		ttl:       DefaultTTL,
		singleUse: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL is the validity window of newly generated codes.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// Generate creates a fresh code for email and returns it with its expiry.
func (r *Registry) Generate(ctx context.Context, email string) (Entry, error) {
	code, err := newCode()
	if err != nil {
		return Entry{}, fmt.Errorf("generate otp: %w", err)
	}

	e := Entry{Code: code, ExpiresAt: r.now().Add(r.ttl)}
	if err := r.store.Put(ctx, email, e); err != nil {
		return Entry{}, err
	}

	r.logger.Debug(ctx, "otp generated", "email", email, "expires_at", e.ExpiresAt)
	return e, nil
}

func (r *Registry) live(ctx context.Context, email string) (Entry, bool, error) {
	e, ok, err := r.store.Get(ctx, email)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if e.Expired(r.now()) {
		// Only the observed entry goes; a code generated meanwhile stays.
		if _, err := r.store.CompareAndDelete(ctx, email, e.Code); err != nil {
			r.logger.Warn(ctx, "expired otp cleanup failed", "email", email, "error", err)
		}
		return Entry{}, false, nil
	}
	return e, true, nil
}

func validityText(ttl time.Duration) string {
	if ttl%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(ttl/time.Minute))
	}
	return ttl.String()
}

// SendEmail mails the outstanding code for email. It fails with
// common.ErrOTPNotGenerated when there is no live code.
func (r *Registry) SendEmail(ctx context.Context, email string) error {
	e, ok, err := r.live(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrOTPNotGenerated
	}

	body := fmt.Sprintf("Your OTP is: %s\nValid for %s.", e.Code, validityText(r.ttl))
	if err := r.sender.Send(ctx, email, emailSubject, body); err != nil {
		return err
	}

	r.logger.Info(ctx, "otp sent", "email", email)
	return nil
}

// Validate reports whether code is the live code for email. Expired or
// missing entries never match. With single-use codes a match consumes the
// entry, so of two concurrent calls with the same code only one succeeds.
func (r *Registry) Validate(ctx context.Context, code, email string) (bool, error) {
	e, ok, err := r.live(ctx, email)
	if err != nil || !ok {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(e.Code), []byte(code)) != 1 {
		return false, nil
	}
	if !r.singleUse {
		return true, nil
	}
	return r.store.CompareAndDelete(ctx, email, code)
}

// Purge drops expired entries.
func (r *Registry) Purge(ctx context.Context) (int, error) {
	return r.store.Purge(ctx, r.now())
}

// RunPurger calls Purge every interval until ctx is done.
func (r *Registry) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Purge(ctx)
			if err != nil {
				r.logger.Warn(ctx, "otp purge failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug(ctx, "otp purge", "removed", n)
			}
		}
	}
}
