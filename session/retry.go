package session

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/chronos-ai/substrate/core"
)

// RetryPolicy bounds how DispatchSingleWithRetry retries a failed capability
// dispatch: exponential backoff with jitter, the same shape the teacher uses
// for retrying a failed model call, applied here to a failed agent
// invocation instead.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Retryable classifies which errors are worth retrying. Nil retries every
	// failure; UNKNOWN_CAPABILITY and DUPLICATE_CAPABILITY are never useful
	// to retry since the outcome cannot change between attempts, so callers
	// typically exclude them here.
	Retryable func(*core.SubstrateError) bool

	// Sleep is overridable for tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy retries only AGENT_ERROR up to 3 times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Retryable: func(e *core.SubstrateError) bool {
			return e != nil && e.Code == core.ErrAgentError
		},
	}
}

// DispatchSingleWithRetry calls d.DispatchSingle, retrying on a retryable
// failure up to policy.MaxRetries times with exponential backoff and ±25%
// jitter. Each attempt is a full DispatchSingle, so every attempt — success
// or failure — still appends its own capability_dispatched brackets to the
// trajectory; nothing here hides a retried attempt from the audit trail.
func DispatchSingleWithRetry(ctx context.Context, d *Dispatcher, sess *Session, call core.CapabilityCall, policy RetryPolicy) *core.InvokeResult {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var result *core.InvokeResult
	for attempt := 0; ; attempt++ {
		result = d.DispatchSingle(ctx, sess, call)
		if result.Success {
			return result
		}
		retryable := policy.Retryable == nil || policy.Retryable(result.Error)
		if !retryable || attempt >= policy.MaxRetries {
			return result
		}
		sleep(backoff(policy, attempt+1))
	}
}

func backoff(policy RetryPolicy, attempt int) time.Duration {
	base := float64(policy.BaseDelay)
	if base <= 0 {
		base = float64(50 * time.Millisecond)
	}
	maxDelay := float64(policy.MaxDelay)
	if maxDelay <= 0 {
		maxDelay = float64(2 * time.Second)
	}
	delay := base * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.25 * (rand.Float64()*2 - 1)
	delay += jitter
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
