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

// Package transport holds helpers shared by the concrete transports.
package transport

import (
	"context"
	"time"

	pasori "github.com/ZaparooProject/go-pasori"
)

// Attempt is one try of a repeated operation. It returns the result, whether
// the try failed temporarily and should be repeated, and an error that ends
// the loop.
type Attempt[T any] func() (T, bool, error)

// RetryConfig configures WithRetry
type RetryConfig struct {
	// OnRetry runs before each repeat with the number of failed tries so far.
	// An error from it ends the loop.
	OnRetry func(failed int) error
	// Op and Port label the error returned when retries run out
	Op         string
	Port       string
	MaxRetries int
	RetryDelay time.Duration
}

// WithRetry runs attempt until it succeeds, fails permanently or has been
// repeated MaxRetries times. Running out of retries is a transient
// ErrCommunicationFailed.
func WithRetry[T any](ctx context.Context, config RetryConfig, attempt Attempt[T]) (T, error) {
	var zero T

	for failed := 0; ; failed++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, temporary, err := attempt()
		switch {
		case err != nil:
			return zero, err
		case !temporary:
			return result, nil
		case failed >= config.MaxRetries:
			return zero, exhausted(config)
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(failed + 1); err != nil {
				return zero, err
			}
		}
		if err := sleep(ctx, config.RetryDelay); err != nil {
			return zero, err
		}
	}
}

func exhausted(config RetryConfig) error {
	op := config.Op
	if op == "" {
		op = "retry"
	}
	return pasori.NewTransportError(op, config.Port, pasori.ErrCommunicationFailed, pasori.ErrorTypeTransient)
}

// PollUntil repeats attempt every interval while it fails temporarily. It
// gives up with a timeout error once timeout has passed.
func PollUntil[T any](ctx context.Context, timeout, interval time.Duration, attempt Attempt[T]) (T, error) {
	var zero T
	if interval <= 0 {
		interval = time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		result, temporary, err := attempt()
		if err != nil {
			return zero, err
		}
		if !temporary {
			return result, nil
		}
		if time.Now().Add(interval).After(deadline) {
			return zero, pasori.NewTimeoutError("wait", "")
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
