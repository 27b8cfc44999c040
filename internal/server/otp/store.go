package otp

import (
	"context"
	"sync"
	"time"
)

// Entry is an outstanding code for one email.
type Entry struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the entry is no longer usable at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store holds at most one Entry per email. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put replaces any entry for email.
	Put(ctx context.Context, email string, e Entry) error
	Get(ctx context.Context, email string) (Entry, bool, error)
	// CompareAndDelete removes the entry only if it still holds code and
	// reports whether it did.
	CompareAndDelete(ctx context.Context, email, code string) (bool, error)
	Delete(ctx context.Context, email string) error
	// Purge drops entries expired at now and returns how many went.
	Purge(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore is a mutex-guarded map, local to the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, email string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	return e, ok, nil
}

func (s *MemoryStore) CompareAndDelete(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok || e.Code != code {
		return false, nil
	}
	delete(s.entries, email)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, email)
			n++
		}
	}
	return n, nil
}
