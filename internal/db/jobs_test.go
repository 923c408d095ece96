package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	require.Equal(t, 2*time.Minute, RetryDelay(1))
	require.Equal(t, 4*time.Minute, RetryDelay(2))
	require.Equal(t, 8*time.Minute, RetryDelay(3))

	// Gaps between consecutive retries grow strictly.
	prev := RetryDelay(1)
	for n := 2; n <= 8; n++ {
		d := RetryDelay(n)
		require.Greater(t, d, prev)
		prev = d
	}
}

func TestFailedJobRetriesThenExhausts(t *testing.T) {
	const maxRetries = 4

	count := 0
	var delays []time.Duration
	for {
		next, delay, exhausted := retryDecision(count, maxRetries)
		count = next
		if exhausted {
			break
		}
		delays = append(delays, delay)
	}

	// A job whose handler always fails lands terminally failed with
	// retry_count equal to max_retries, after backed-off re-runs.
	require.Equal(t, maxRetries, count)
	require.Equal(t, []time.Duration{2 * time.Minute, 4 * time.Minute, 8 * time.Minute}, delays)
	for i := 1; i < len(delays); i++ {
		require.Equal(t, 2*delays[i-1], delays[i])
	}
}

func TestRetryDecisionLastAttemptIsTerminal(t *testing.T) {
	next, delay, exhausted := retryDecision(2, 3)
	require.Equal(t, 3, next)
	require.Zero(t, delay)
	require.True(t, exhausted)

	next, _, exhausted = retryDecision(0, 1)
	require.Equal(t, 1, next)
	require.True(t, exhausted)
}
