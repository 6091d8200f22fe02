package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/eishro/storeguard/internal/database"
	"github.com/eishro/storeguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// RateLimitRepository is the postgres sliding-window request log. One row per
// recorded request; counts are taken over (key, hit_at).
type RateLimitRepository struct {
	db        *database.DB
	retention time.Duration
	now       func() time.Time
}

func NewRateLimitRepository(db *database.DB, retention time.Duration, now func() time.Time) *RateLimitRepository {
	if retention <= 0 {
		retention = models.DefaultRateLimitRetention
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimitRepository{db: db, retention: retention, now: now}
}

func (r *RateLimitRepository) RecordRequest(ctx context.Context, key string, _ time.Duration) (bool, error) {
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO rate_limit_hits (key, hit_at) VALUES ($1, $2)`, key, r.now(),
	); err != nil {
		return false, fmt.Errorf("record request: %w", err)
	}
	return true, nil
}

// Allow counts and records key's hit in one transaction. A transaction-scoped
// advisory lock on the key serializes concurrent callers, so no more than
// limit hits land inside window.
func (r *RateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	if window <= 0 {
		window = models.DefaultRateLimitWindow
	}
	now := r.now()
	var allowed bool
	var remaining int

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return err
		}

		var n int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM rate_limit_hits WHERE key = $1 AND hit_at > $2`,
			key, now.Add(-window),
		).Scan(&n); err != nil {
			return err
		}
		if n >= limit {
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO rate_limit_hits (key, hit_at) VALUES ($1, $2)`, key, now,
		); err != nil {
			return err
		}
		allowed, remaining = true, limit-n-1
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("allow request: %w", database.MapPostgresError(err))
	}
	return allowed, remaining, nil
}

func (r *RateLimitRepository) count(ctx context.Context, key string, window time.Duration) (int, error) {
	if window <= 0 {
		window = models.DefaultRateLimitWindow
	}
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limit_hits WHERE key = $1 AND hit_at > $2`,
		key, r.now().Add(-window),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

func (r *RateLimitRepository) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := r.count(ctx, key, window)
	if err != nil {
		return false, err
	}
	return n >= limit, nil
}

func (r *RateLimitRepository) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	n, err := r.count(ctx, key, window)
	if err != nil {
		return 0, err
	}
	return max(limit-n, 0), nil
}

func (r *RateLimitRepository) Reset(ctx context.Context, key string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM rate_limit_hits WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// Cleanup deletes hits older than the retention horizon and returns the
// number of rows removed.
func (r *RateLimitRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM rate_limit_hits WHERE hit_at <= $1`, r.now().Add(-r.retention),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limit hits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RateLimitRepository) Sweep(ctx context.Context) (int64, error) {
	return r.Cleanup(ctx)
}
