package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastConfig() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithBackoff_GivesUp(t *testing.T) {
	boom := errors.New("boom")
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "op failed after 3 attempts")
}

func TestWithBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithBackoff(ctx, fastConfig(), zap.NewNop(), "op", func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, calculateBackoff(cfg, 1))
	assert.Equal(t, 4*time.Second, calculateBackoff(cfg, 3))
	assert.Equal(t, 5*time.Second, calculateBackoff(cfg, 10))

	cfg.JitterEnabled = true
	d := calculateBackoff(cfg, 2)
	assert.GreaterOrEqual(t, d, time.Duration(float64(2*time.Second)*0.85))
	assert.LessOrEqual(t, d, time.Duration(float64(2*time.Second)*1.15))
}

func TestWithBackoff_PermanentStopsImmediately(t *testing.T) {
	attempts := 0
	bad := errors.New("404")
	err := WithBackoff(context.Background(), fastConfig(), zap.NewNop(), "op", func() error {
		attempts++
		return Permanent(bad)
	})
	require.ErrorIs(t, err, bad)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.NoError(t, Permanent(nil))
}
