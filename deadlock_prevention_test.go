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
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-pasori/felica"
	testutil "github.com/ZaparooProject/go-pasori/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	defer goleak.VerifyTestMain(m)
	m.Run()
}

// TestMutexReleaseOnTransportFailure verifies that the reader lock is released
// when a blocked exchange times out
func TestMutexReleaseOnTransportFailure(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.Block()
	defer func() { _ = mock.Close() }()

	reader := newRCS380Reader(mock, rcs380Product(t), 0)
	reader.initialized = true

	const numGoroutines = 3

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
			defer cancel()

			_, err := reader.SendFelicaCommand(ctx, felica.BuildPolling(felica.DefaultPollingRequest()), time.Millisecond)
			if err == nil {
				t.Error("Expected timeout error, got nil")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Deadlock detected - operations did not complete")
	}
}

// TestContextCancellationDuringBlockedOperation verifies that cancelling the
// context ends a blocked read
func TestContextCancellationDuringBlockedOperation(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.Block()
	defer func() { _ = mock.Close() }()

	reader := newRCS300Reader(mock, rcs300Product(t), 0)
	reader.initialized = true

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := reader.SendFelicaCommand(ctx, []byte{0x06, 0x00, 0xFF, 0xFF, 0x00, 0x00}, time.Millisecond)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, IsRetryable(err))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Operation did not return after cancellation")
	}
}

// TestConcurrentSessionAccess runs card reads from several goroutines against
// one session
func TestConcurrentSessionAccess(t *testing.T) {
	t.Parallel()

	card := testutil.NewVirtualCard(nil, "12345")
	session, _ := newTestSession(t, card)

	const numGoroutines = 5

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := session.ReadCard(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if got.StudentID != "12345" {
				errs <- errors.New("unexpected student ID " + got.StudentID)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, numGoroutines, card.Polls())
	assert.Equal(t, numGoroutines, card.Reads())
}

// TestDisconnectDuringWait verifies that a pending wait ends once the session
// is disconnected
func TestDisconnectDuringWait(t *testing.T) {
	t.Parallel()

	card := testutil.NewVirtualCard(nil, "12345")
	card.Remove()
	session, _ := newTestSession(t, card)

	errCh := make(chan error, 1)
	go func() {
		_, err := session.WaitForCardID(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, session.Disconnect(context.Background()))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("WaitForCardID did not return after Disconnect")
	}
}

// TestSlowTransportHonorsIOTimeout verifies that each exchange is bounded by
// the I/O timeout rather than the caller's context
func TestSlowTransportHonorsIOTimeout(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetDelay(time.Second)
	defer func() { _ = mock.Close() }()

	reader := newRCS300Reader(mock, rcs300Product(t), 10*time.Millisecond)
	reader.initialized = true

	start := time.Now()
	_, err := reader.SendFelicaCommand(context.Background(), []byte{0x06, 0x00, 0xFF, 0xFF, 0x00, 0x00}, time.Millisecond)
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.True(t, IsRetryable(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
