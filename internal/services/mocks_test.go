package services_test

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/eishro/storeguard/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// MockCSRFTokenStore implements CSRFTokenStore for testing
type MockCSRFTokenStore struct {
	IssueFunc  func(ctx context.Context, sessionID string) (string, error)
	VerifyFunc func(ctx context.Context, sessionID, candidate string) (bool, error)
}

func (m *MockCSRFTokenStore) Issue(ctx context.Context, sessionID string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, sessionID)
	}
	return "token", nil
}

func (m *MockCSRFTokenStore) Verify(ctx context.Context, sessionID, candidate string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, sessionID, candidate)
	}
	return false, nil
}

func (m *MockCSRFTokenStore) Sweep(ctx context.Context) (int64, error) { return 0, nil }

// MockLoginAttemptStore implements LoginAttemptStore for testing
type MockLoginAttemptStore struct {
	RecordAttemptFunc func(ctx context.Context, identifier string) (models.AttemptResult, error)
	ResetFunc         func(ctx context.Context, identifier string) error
}

func (m *MockLoginAttemptStore) RecordAttempt(ctx context.Context, identifier string) (models.AttemptResult, error) {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, identifier)
	}
	return models.AttemptResult{Allowed: true}, nil
}

func (m *MockLoginAttemptStore) Reset(ctx context.Context, identifier string) error {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, identifier)
	}
	return nil
}

func (m *MockLoginAttemptStore) Sweep(ctx context.Context) (int64, error) { return 0, nil }

// MockRequestRateStore implements RequestRateStore for testing
type MockRequestRateStore struct {
	Err error
}

func (m *MockRequestRateStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	return m.Err == nil, limit - 1, m.Err
}

func (m *MockRequestRateStore) RecordRequest(ctx context.Context, key string, window time.Duration) (bool, error) {
	return m.Err == nil, m.Err
}

func (m *MockRequestRateStore) IsRateLimited(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	return false, m.Err
}

func (m *MockRequestRateStore) Remaining(ctx context.Context, key string, max int, window time.Duration) (int, error) {
	return max, m.Err
}

func (m *MockRequestRateStore) Reset(ctx context.Context, key string) error { return m.Err }

func (m *MockRequestRateStore) Cleanup(ctx context.Context) (int64, error) { return 0, m.Err }

// recordingNotifier counts lockout notices
type recordingNotifier struct {
	identifiers []string
	err         error
}

func (n *recordingNotifier) NotifyLockout(ctx context.Context, identifier string, policy models.LockoutPolicy) error {
	n.identifiers = append(n.identifiers, identifier)
	return n.err
}

// fakeSES captures SendEmail input
type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	id := "msg-1"
	return &ses.SendEmailOutput{MessageId: &id}, nil
}
