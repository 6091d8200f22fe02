package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eishro/storeguard/internal/database"
	"github.com/eishro/storeguard/internal/models"
	pkgauth "github.com/eishro/storeguard/pkg/auth"
	"github.com/jackc/pgx/v5"
)

// CSRFTokenRepository is the postgres CSRF token store. It keeps the same
// one-token-per-session, single-use semantics as auth.CSRFTokenManager.
type CSRFTokenRepository struct {
	db         *database.DB
	tokenBytes int
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewCSRFTokenRepository(db *database.DB, tokenBytes int, tokenTTL time.Duration, now func() time.Time) *CSRFTokenRepository {
	if tokenBytes <= 0 {
		tokenBytes = models.DefaultCSRFTokenBytes
	}
	if tokenTTL <= 0 {
		tokenTTL = models.DefaultCSRFTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CSRFTokenRepository{db: db, tokenBytes: tokenBytes, tokenTTL: tokenTTL, now: now}
}

// Issue stores the hash of a new token for sessionID, replacing any previous one
func (r *CSRFTokenRepository) Issue(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("issue csrf token: empty session id: %w", models.ErrBadRequest)
	}

	token, err := pkgauth.GenerateSecureRandomToken(r.tokenBytes)
	if err != nil {
		return "", fmt.Errorf("issue csrf token: %w", err)
	}

	query := `
		INSERT INTO csrf_tokens (session_id, token_hash, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, issued_at = EXCLUDED.issued_at
	`
	if _, err := r.db.Pool.Exec(ctx, query, sessionID, pkgauth.HashToken(token), r.now()); err != nil {
		return "", fmt.Errorf("store csrf token: %w", database.MapPostgresError(err))
	}

	return token, nil
}

// Verify consumes the session's token if candidate matches it. The row is
// locked for the duration so two concurrent requests cannot both consume it.
func (r *CSRFTokenRepository) Verify(ctx context.Context, sessionID, candidate string) (bool, error) {
	if sessionID == "" || candidate == "" {
		return false, nil
	}

	var ok bool
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var rec models.CSRFToken
		err := tx.QueryRow(ctx,
			`SELECT session_id, token_hash, issued_at FROM csrf_tokens WHERE session_id = $1 FOR UPDATE`,
			sessionID,
		).Scan(&rec.SessionID, &rec.TokenHash, &rec.IssuedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if rec.Expired(r.now(), r.tokenTTL) {
			_, err := tx.Exec(ctx, `DELETE FROM csrf_tokens WHERE session_id = $1`, sessionID)
			return err
		}
		if !pkgauth.TokenMatchesHash(candidate, rec.TokenHash) {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM csrf_tokens WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("verify csrf token: %w", err)
	}
	return ok, nil
}

// Sweep deletes tokens older than the TTL
func (r *CSRFTokenRepository) Sweep(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM csrf_tokens WHERE issued_at < $1`, r.now().Add(-r.tokenTTL))
	if err != nil {
		return 0, fmt.Errorf("sweep csrf tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
