package agentclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsColdStart_MatchesKnownMarkers(t *testing.T) {
	assert.True(t, isColdStart(errors.New("error starting the runtime: connection refused")))
	assert.True(t, isColdStart(errors.New("RuntimeClientError: pod not ready")))
	assert.False(t, isColdStart(errors.New("invalid request payload")))
	assert.False(t, isColdStart(nil))
}

func TestIsColdStart_RetryableAgentError(t *testing.T) {
	assert.True(t, isColdStart(&AgentError{Retryable: true}))
	assert.False(t, isColdStart(&AgentError{Retryable: false}))
}

func TestCallWithRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	body, err := callWithRetry(context.Background(), []int{0, 0, 0}, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_RetriesColdStartUntilSuccess(t *testing.T) {
	calls := 0
	body, err := callWithRetry(context.Background(), []int{0, 0, 0}, func(ctx context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("error starting the runtime")
		}
		return []byte("recovered"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), body)
	assert.Equal(t, 3, calls)
}

func TestCallWithRetry_StopsImmediatelyOnNonColdStartError(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), []int{0, 0, 0}, func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, errors.New("status: error, invalid payload")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ExhaustsAllAttempts(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), []int{0, 0}, func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, errors.New("RuntimeClientError: still starting")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCallWithRetry_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := callWithRetry(ctx, []int{1}, func(ctx context.Context) ([]byte, error) {
		t.Fatal("fn should not be called before the delay elapses")
		return nil, nil
	})

	require.ErrorIs(t, err, context.Canceled)
}
