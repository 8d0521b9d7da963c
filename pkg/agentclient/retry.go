package agentclient

import (
	"context"
	"strings"
	"time"
)

// defaultRetryDelaysSeconds is the fixed delay table for cold-start
// retries: up to 4 attempts total (the 0 entry is the first, immediate
// attempt).
var defaultRetryDelaysSeconds = []int{0, 60, 90, 120}

// coldStartMarkers are the substrings that classify an error as a
// cold-start/runtime-startup failure, eligible for retry. All other
// failures (parse errors, explicit "status: error" responses) are not
// retried at this layer.
var coldStartMarkers = []string{
	"starting the runtime",
	"RuntimeClientError",
}

// isColdStart reports whether err's message matches a cold-start marker.
func isColdStart(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range coldStartMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	if ae, ok := err.(*AgentError); ok {
		return ae.Retryable
	}
	return false
}

// callWithRetry runs fn up to len(delays) times, sleeping delays[i] seconds
// before attempt i, but only continues retrying while the last error
// classifies as cold-start. Any other error returns immediately.
func callWithRetry(ctx context.Context, delays []int, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	var lastErr error
	for i, delay := range delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(delay) * time.Second):
			}
		}

		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isColdStart(err) {
			return nil, err
		}
		_ = i // attempt index, useful for logging at the call site
	}
	return nil, lastErr
}
