package auth

import (
	"context"
	"sync"
	"time"

	"github.com/eishro/storeguard/internal/models"
)

// LoginAttemptTracker is the in-process attempt tracker. RecordAttempt is a
// single critical section so concurrent attempts for one identifier cannot
// both read the same count.
type LoginAttemptTracker struct {
	records map[string]*models.LoginAttempt
	mu      sync.Mutex
	policy  models.LockoutPolicy
	now     func() time.Time
}

func NewLoginAttemptTracker(policy models.LockoutPolicy, now func() time.Time) *LoginAttemptTracker {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = models.DefaultMaxLoginAttempts
	}
	if policy.LockoutDuration <= 0 {
		policy.LockoutDuration = models.DefaultLockoutDuration
	}
	if now == nil {
		now = time.Now
	}
	return &LoginAttemptTracker{
		records: make(map[string]*models.LoginAttempt),
		policy:  policy,
		now:     now,
	}
}

func (t *LoginAttemptTracker) Policy() models.LockoutPolicy { return t.policy }

func (t *LoginAttemptTracker) RecordAttempt(_ context.Context, identifier string) (models.AttemptResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[identifier]
	if !ok {
		rec = &models.LoginAttempt{Identifier: identifier}
		t.records[identifier] = rec
	}
	return t.policy.Apply(rec, t.now()), nil
}

func (t *LoginAttemptTracker) Reset(_ context.Context, identifier string) error {
	t.mu.Lock()
	delete(t.records, identifier)
	t.mu.Unlock()
	return nil
}

// Sweep evicts records whose window has lapsed.
func (t *LoginAttemptTracker) Sweep(_ context.Context) (int64, error) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int64
	for id, rec := range t.records {
		if t.policy.Expired(rec, now) {
			delete(t.records, id)
			removed++
		}
	}
	return removed, nil
}

func (t *LoginAttemptTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
