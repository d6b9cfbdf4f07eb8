// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

// Package task runs named steps under an injectable retry policy. Batch
// jobs wrap each stage in Run so transient failures (a file still being
// uploaded, a database briefly locked) get a fixed number of spaced
// attempts before the job fails.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tripcast/tripcast/internal/logging"
)

// RetryPolicy fixes the attempt count and the constant delay between
// attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy mirrors the batch job defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, Delay: 10 * time.Second}
}

// Permanent marks an error as non-retryable; Run fails immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Run executes fn under the policy. Every attempt sees ctx; cancellation
// stops retrying and returns the context error. The returned error is the
// last attempt's error, wrapped with the step name.
func Run(ctx context.Context, name string, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		return fmt.Errorf("step %s: retry policy needs at least one attempt", name)
	}

	attempt := 0
	operation := func() error {
		attempt++
		return fn(ctx)
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(policy.Delay)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		logging.Warn().
			Err(err).
			Str("step", name).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Step failed, retrying")
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return fmt.Errorf("step %s failed after %d attempt(s): %w", name, attempt, err)
	}
	return nil
}
