package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/eishro/storeguard/internal/database"
	"github.com/eishro/storeguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db     *database.DB
	policy models.LockoutPolicy
	now    func() time.Time
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB, policy models.LockoutPolicy, now func() time.Time) *LoginAttemptRepository {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = models.DefaultMaxLoginAttempts
	}
	if policy.LockoutDuration <= 0 {
		policy.LockoutDuration = models.DefaultLockoutDuration
	}
	if now == nil {
		now = time.Now
	}
	return &LoginAttemptRepository{db: db, policy: policy, now: now}
}

// RecordAttempt applies the lockout policy to identifier's row under a row lock
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, identifier string) (models.AttemptResult, error) {
	var result models.AttemptResult
	now := r.now()

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO login_attempts (identifier, attempt_count, window_start)
			VALUES ($1, 0, $2)
			ON CONFLICT (identifier) DO NOTHING
		`, identifier, now); err != nil {
			return err
		}

		rec := models.LoginAttempt{Identifier: identifier}
		if err := tx.QueryRow(ctx, `
			SELECT attempt_count, window_start FROM login_attempts
			WHERE identifier = $1 FOR UPDATE
		`, identifier).Scan(&rec.Count, &rec.WindowStart); err != nil {
			return err
		}

		result = r.policy.Apply(&rec, now)

		_, err := tx.Exec(ctx, `
			UPDATE login_attempts SET attempt_count = $2, window_start = $3
			WHERE identifier = $1
		`, identifier, rec.Count, rec.WindowStart)
		return err
	})
	if err != nil {
		return models.AttemptResult{}, fmt.Errorf("record login attempt: %w", database.MapPostgresError(err))
	}
	return result, nil
}

// Reset clears identifier's counter
func (r *LoginAttemptRepository) Reset(ctx context.Context, identifier string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE identifier = $1`, identifier); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

// Sweep removes counters whose window has lapsed
func (r *LoginAttemptRepository) Sweep(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE attempt_count = 0 OR window_start < $1`,
		r.now().Add(-r.policy.LockoutDuration),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
