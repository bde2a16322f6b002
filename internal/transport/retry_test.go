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

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	t.Parallel()

	errBusy := errors.New("busy")

	tests := []struct {
		wantErr   error
		name      string
		retries   int
		succeedAt int
		failAt    int
		wantCalls int
	}{
		{name: "first attempt", retries: 3, succeedAt: 1, wantCalls: 1},
		{name: "after retries", retries: 3, succeedAt: 3, wantCalls: 3},
		{name: "exhausted", retries: 2, succeedAt: 10, wantCalls: 3, wantErr: pasori.ErrCommunicationFailed},
		{name: "permanent error", retries: 3, succeedAt: 10, failAt: 2, wantCalls: 2, wantErr: errBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls, retried := 0, 0
			config := RetryConfig{
				Op:         "claim interface",
				Port:       "RC-S380/P",
				MaxRetries: tt.retries,
				RetryDelay: time.Millisecond,
				OnRetry: func(failed int) error {
					retried++
					assert.Equal(t, retried, failed)
					return nil
				},
			}
			got, err := WithRetry(context.Background(), config, func() (int, bool, error) {
				calls++
				if calls == tt.failAt {
					return 0, false, errBusy
				}
				return calls, calls < tt.succeedAt, nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.succeedAt, got)
			assert.Equal(t, calls-1, retried)
		})
	}
}

func TestWithRetryCallbackStops(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	calls := 0
	_, err := WithRetry(context.Background(), RetryConfig{
		MaxRetries: 5,
		OnRetry:    func(int) error { return errStop },
	}, func() (struct{}, bool, error) {
		calls++
		return struct{}{}, true, nil
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestWithRetryExhaustedLabels(t *testing.T) {
	t.Parallel()

	_, err := WithRetry(context.Background(), RetryConfig{Port: "RC-S300/P"}, func() (struct{}, bool, error) {
		return struct{}{}, true, nil
	})

	var te *pasori.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "retry", te.Op)
	assert.Equal(t, "RC-S300/P", te.Port)
	assert.True(t, pasori.IsRetryable(err))
}

func TestWithRetryCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := WithRetry(ctx, RetryConfig{MaxRetries: 3}, func() (int, bool, error) {
		calls++
		return 0, true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestPollUntil(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := PollUntil(context.Background(), time.Second, time.Millisecond, func() (string, bool, error) {
		calls++
		if calls < 3 {
			return "", true, nil
		}
		return "found", false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "found", got)
	assert.Equal(t, 3, calls)
}

func TestPollUntilExpires(t *testing.T) {
	t.Parallel()

	_, err := PollUntil(context.Background(), 10*time.Millisecond, time.Millisecond, func() (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, pasori.ErrTransportTimeout)
	assert.Equal(t, pasori.ErrorTypeTimeout, pasori.GetErrorType(err))
}
