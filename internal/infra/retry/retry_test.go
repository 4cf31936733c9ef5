package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, p.RetryDelay)
	assert.Equal(t, 3600*time.Second, p.QuotaCooldown)
	require.NoError(t, p.Validate())
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"zero attempts", Policy{MaxAttempts: 0}},
		{"negative retry delay", Policy{MaxAttempts: 1, RetryDelay: -time.Second}},
		{"negative cooldown", Policy{MaxAttempts: 1, QuotaCooldown: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.policy.Validate())
		})
	}
}

func TestSleepReturnsAfterDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Sleep(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSleepZeroDuration(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}

func TestHTTPErrorMessage(t *testing.T) {
	assert.Equal(t, "http error (502)", (&HTTPError{StatusCode: 502}).Error())
	assert.Equal(t, "http error (500): boom", (&HTTPError{StatusCode: 500, Body: []byte("boom")}).Error())
}
