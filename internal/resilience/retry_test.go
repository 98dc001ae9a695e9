package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		JitterFraction: -1, // disables jitter via applyDefaults clamp
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("boom"), 503)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoValReturnsValue(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(errors.New("flaky"), 429)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 2, calls)
}

func TestDoValHonorsServerAdvisedDelay(t *testing.T) {
	var start time.Time
	calls := 0
	_, err := DoVal(context.Background(), RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			start = time.Now()
			return 0, &TransientError{
				Err:        errors.New("rate limited"),
				StatusCode: 429,
				RetryAfter: 50 * time.Millisecond,
			}
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: time.Hour,
	}, func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("boom"), 500)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("parse error")))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 502)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.True(t, IsTransient(errors.New("connection reset by peer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
