// go-pasori
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pasori.
//
// go-pasori is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pasori is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pasori; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package pasori

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for opening readers and for the card
// polling loop
type RetryConfig struct {
	// MaxAttempts is the total number of attempts. Values below 1 mean a single
	// attempt for RetryWithConfig.
	MaxAttempts int
	// InitialBackoff is the wait after the first failed attempt
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts. Zero means no cap.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the wait after each attempt. Values of 1 or less
	// keep it constant.
	BackoffMultiplier float64
	// Jitter randomizes each wait by up to this fraction of it
	Jitter float64
	// RetryTimeout bounds the whole retry sequence. Zero means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// RetryWithConfig runs fn until it succeeds, fails with an error that is not
// retryable (see IsRetryable), runs out of attempts or ctx is done.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retryWhile(ctx, config, attempts, IsRetryable, fn)
}

// retryWhile is the retry loop behind RetryWithConfig and the card polling loop.
// attempts of 0 retries until ctx is done.
func retryWhile(
	ctx context.Context,
	config *RetryConfig,
	attempts int,
	shouldRetry func(error) bool,
	fn func() error,
) error {
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 1; attempts == 0 || attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelled(err, lastErr)
		}

		lastErr = fn()
		if lastErr == nil || !shouldRetry(lastErr) {
			return lastErr
		}
		if attempts != 0 && attempt == attempts {
			break
		}

		wait := withJitter(backoff, config.Jitter)
		debugf("attempt %d failed (%v), retrying in %v", attempt, lastErr, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelled(ctx.Err(), lastErr)
		case <-timer.C:
		}

		backoff = nextBackoff(backoff, config)
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func cancelled(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return errors.Join(ctxErr, lastErr)
}

func nextBackoff(current time.Duration, config *RetryConfig) time.Duration {
	next := current
	if config.BackoffMultiplier > 1 {
		next = time.Duration(float64(current) * config.BackoffMultiplier)
	}
	if config.MaxBackoff > 0 && next > config.MaxBackoff {
		next = config.MaxBackoff
	}
	return next
}

func withJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || d <= 0 {
		return d
	}
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(d) * jitter * (2*rand.Float64() - 1)
	return d + time.Duration(delta)
}
