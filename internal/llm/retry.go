package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// retrySignatures are matched case-insensitively against error text to
// classify rate-limit and transient server failures.
var retrySignatures = []string{
	"429", "rate_limit", "rate limit",
	"500", "502", "503", "504",
	"overloaded", "timeout", "connection",
}

// Retryable reports whether the error looks like a rate-limit or transient
// service failure worth retrying.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, sig := range retrySignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// RetryPolicy retries completion calls with exponential backoff plus jitter.
// It applies only to calls against the completion service; hosting-API calls
// are never wrapped.
type RetryPolicy struct {
	MaxAttempts int
	MaxDelay    time.Duration

	// sleep and jitter are test hooks.
	sleep  func(time.Duration)
	jitter func() float64
}

// DefaultRetryPolicy mirrors the agent defaults: 5 attempts, 40s delay cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, MaxDelay: 40 * time.Second}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The final error is propagated unmodified.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	jitter := p.jitter
	if jitter == nil {
		jitter = rand.Float64
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 || !Retryable(lastErr) {
			return lastErr
		}
		sleep(p.delay(attempt, jitter()))
	}
	return lastErr
}

// delay is 2^attempt seconds plus 0.5–2.5s of jitter, capped at MaxDelay.
func (p RetryPolicy) delay(attempt int, jitter float64) time.Duration {
	d := time.Duration(1<<uint(attempt))*time.Second +
		time.Duration((0.5+2.0*jitter)*float64(time.Second))
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 40 * time.Second
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
