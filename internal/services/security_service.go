package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/eishro/storeguard/internal/models"
	"github.com/eishro/storeguard/pkg/logger"
)

// CSRFTokenStore is implemented by auth.CSRFTokenManager and repositories.CSRFTokenRepository
type CSRFTokenStore interface {
	Issue(ctx context.Context, sessionID string) (string, error)
	Verify(ctx context.Context, sessionID, candidate string) (bool, error)
	Sweep(ctx context.Context) (int64, error)
}

// LoginAttemptStore is implemented by auth.LoginAttemptTracker and repositories.LoginAttemptRepository
type LoginAttemptStore interface {
	RecordAttempt(ctx context.Context, identifier string) (models.AttemptResult, error)
	Reset(ctx context.Context, identifier string) error
	Sweep(ctx context.Context) (int64, error)
}

// RequestRateStore is implemented by ratelimit.MemoryStore and repositories.RateLimitRepository
type RequestRateStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
	RecordRequest(ctx context.Context, key string, window time.Duration) (bool, error)
	IsRateLimited(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, max int, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
	Cleanup(ctx context.Context) (int64, error)
}

// LockoutNotifier is told when an identifier first hits the lockout threshold
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, identifier string, policy models.LockoutPolicy) error
}

// RateDecision is the outcome of CheckRateLimit
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

const lockoutNoticePrefix = "lockout-notice:"

// SecurityService composes the three stores behind the policy decisions the
// middleware needs. Failure handling differs per store: CSRF verification
// fails closed, attempt tracking and rate limiting fail open.
type SecurityService struct {
	csrf     CSRFTokenStore
	attempts LoginAttemptStore
	rates    RequestRateStore
	policy   models.LockoutPolicy
	notifier LockoutNotifier
	logger   *slog.Logger
}

func NewSecurityService(csrf CSRFTokenStore, attempts LoginAttemptStore, rates RequestRateStore, policy models.LockoutPolicy, logger *slog.Logger) *SecurityService {
	return &SecurityService{
		csrf:     csrf,
		attempts: attempts,
		rates:    rates,
		policy:   policy,
		logger:   logger,
	}
}

// SetLockoutNotifier enables lockout alerts. Alerts are deduplicated to one per
// identifier per lockout window through the rate store.
func (s *SecurityService) SetLockoutNotifier(n LockoutNotifier) {
	s.notifier = n
}

func (s *SecurityService) Policy() models.LockoutPolicy { return s.policy }

func (s *SecurityService) IssueCSRFToken(ctx context.Context, sessionID string) (string, error) {
	return s.csrf.Issue(ctx, sessionID)
}

// VerifyCSRFToken reports whether candidate is the live token for sessionID,
// consuming it on success. Store errors count as a failed verification.
func (s *SecurityService) VerifyCSRFToken(ctx context.Context, sessionID, candidate string) bool {
	ok, err := s.csrf.Verify(ctx, sessionID, candidate)
	if err != nil {
		s.logger.Error("csrf verification failed", slog.Any("error", err))
		return false
	}
	return ok
}

// RecordLoginAttempt counts one attempt for identifier. If the tracker is
// unavailable the attempt is allowed and the error logged.
func (s *SecurityService) RecordLoginAttempt(ctx context.Context, identifier string) models.AttemptResult {
	res, err := s.attempts.RecordAttempt(ctx, identifier)
	if err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("identifier", logger.MaskIdentifier(identifier)),
			slog.Any("error", err))
		// Fail open for availability - store errors shouldn't block legitimate users
		return models.AttemptResult{Allowed: true, RemainingAttempts: s.policy.MaxAttempts}
	}

	if !res.Allowed {
		s.notifyLockout(ctx, identifier)
	}
	return res
}

// ResetLoginAttempts clears identifier after a successful login.
func (s *SecurityService) ResetLoginAttempts(ctx context.Context, identifier string) {
	if err := s.attempts.Reset(ctx, identifier); err != nil {
		s.logger.Error("failed to reset login attempts",
			slog.String("identifier", logger.MaskIdentifier(identifier)),
			slog.Any("error", err))
	}
}

// CheckRateLimit admits the request unless key already has max requests in
// window. Admitted requests are recorded; rejected ones are not.
func (s *SecurityService) CheckRateLimit(ctx context.Context, key string, max int, window time.Duration) RateDecision {
	allowed, remaining, err := s.rates.Allow(ctx, key, max, window)
	if err != nil {
		s.logger.Error("failed to check rate limit", slog.String("key", key), slog.Any("error", err))
		return RateDecision{Allowed: true, Limit: max, Remaining: max}
	}
	if !allowed {
		return RateDecision{Allowed: false, Limit: max, Remaining: 0}
	}
	return RateDecision{Allowed: true, Limit: max, Remaining: remaining}
}

func (s *SecurityService) notifyLockout(ctx context.Context, identifier string) {
	if s.notifier == nil {
		return
	}

	key := lockoutNoticePrefix + identifier
	first, _, err := s.rates.Allow(ctx, key, 1, s.policy.LockoutDuration)
	if err != nil || !first {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.notifier.NotifyLockout(notifyCtx, identifier, s.policy); err != nil {
		s.logger.Error("failed to send lockout notice",
			slog.String("identifier", logger.MaskIdentifier(identifier)),
			slog.Any("error", err))
	}
}
