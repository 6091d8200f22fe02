package models

import "time"

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 15 * time.Minute
)

// LoginAttempt is the failed-attempt counter for one identifier (email or IP)
type LoginAttempt struct {
	Identifier  string    `db:"identifier"`
	Count       int       `db:"attempt_count"`
	WindowStart time.Time `db:"window_start"`
}

// AttemptResult is the outcome of recording one attempt
type AttemptResult struct {
	Allowed           bool `json:"allowed"`
	RemainingAttempts int  `json:"remainingAttempts"`
}

// LockoutPolicy decides how attempts advance a LoginAttempt. Both the memory
// and postgres trackers run records through Apply so they agree exactly.
type LockoutPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:     DefaultMaxLoginAttempts,
		LockoutDuration: DefaultLockoutDuration,
	}
}

// Expired reports whether rec's window has lapsed at now. A zero count is
// treated as expired.
func (p LockoutPolicy) Expired(rec *LoginAttempt, now time.Time) bool {
	return rec.Count == 0 || now.Sub(rec.WindowStart) > p.LockoutDuration
}

// Apply records one attempt against rec, mutating it in place.
//
// A lapsed window restarts the count at 1. A record already at MaxAttempts is
// denied without being touched. Otherwise the count grows and the window start
// moves to now, so the window slides with each attempt. The attempt that
// brings the count to MaxAttempts is the first one denied.
func (p LockoutPolicy) Apply(rec *LoginAttempt, now time.Time) AttemptResult {
	if p.Expired(rec, now) {
		rec.Count = 1
		rec.WindowStart = now
		return p.result(rec.Count)
	}

	if rec.Count >= p.MaxAttempts {
		return AttemptResult{Allowed: false, RemainingAttempts: 0}
	}

	rec.Count++
	rec.WindowStart = now
	return p.result(rec.Count)
}

func (p LockoutPolicy) result(count int) AttemptResult {
	return AttemptResult{
		Allowed:           count < p.MaxAttempts,
		RemainingAttempts: max(p.MaxAttempts-count, 0),
	}
}
