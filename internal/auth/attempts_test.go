package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eishro/storeguard/internal/auth"
	"github.com/eishro/storeguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginAttemptTracker_Threshold(t *testing.T) {
	ctx := context.Background()
	tracker := auth.NewLoginAttemptTracker(models.DefaultLockoutPolicy(), newFakeClock().Now)

	for i := 1; i < 5; i++ {
		res, err := tracker.RecordAttempt(ctx, "user@example.com")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, 5-i, res.RemainingAttempts)
	}

	// the fifth attempt and everything after it inside the window is denied
	for i := 0; i < 3; i++ {
		res, err := tracker.RecordAttempt(ctx, "user@example.com")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.RemainingAttempts)
	}

	// other identifiers are independent
	res, err := tracker.RecordAttempt(ctx, "other@example.com")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoginAttemptTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tracker := auth.NewLoginAttemptTracker(models.DefaultLockoutPolicy(), newFakeClock().Now)

	for i := 0; i < 6; i++ {
		_, err := tracker.RecordAttempt(ctx, "id")
		require.NoError(t, err)
	}

	require.NoError(t, tracker.Reset(ctx, "id"))

	res, err := tracker.RecordAttempt(ctx, "id")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.RemainingAttempts)
}

func TestLoginAttemptTracker_LockoutLapses(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	tracker := auth.NewLoginAttemptTracker(models.DefaultLockoutPolicy(), clock.Now)

	for i := 0; i < 4; i++ {
		_, _ = tracker.RecordAttempt(ctx, "id")
	}
	res, _ := tracker.RecordAttempt(ctx, "id")
	require.False(t, res.Allowed)

	clock.Advance(15*time.Minute + time.Second)

	res, err := tracker.RecordAttempt(ctx, "id")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.RemainingAttempts)
}

func TestLoginAttemptTracker_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	tracker := auth.NewLoginAttemptTracker(models.DefaultLockoutPolicy(), clock.Now)

	_, _ = tracker.RecordAttempt(ctx, "old")
	clock.Advance(10 * time.Minute)
	_, _ = tracker.RecordAttempt(ctx, "recent")
	clock.Advance(6 * time.Minute)

	removed, err := tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 1, tracker.Len())
}

func TestLoginAttemptTracker_ConcurrentAttempts(t *testing.T) {
	ctx := context.Background()
	tracker := auth.NewLoginAttemptTracker(models.LockoutPolicy{MaxAttempts: 10, LockoutDuration: time.Hour}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := tracker.RecordAttempt(ctx, "id")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, allowed)
}
