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
	"sync"
	"time"

	"github.com/ZaparooProject/go-pasori/detection"
)

// MockTransport is a scripted Transport for tests. Written frames are recorded
// and passed to the responder, whose frames are queued for subsequent reads.
// A read with nothing queued returns an empty slice, like a bulk transfer
// that completed without data.
type MockTransport struct {
	writeErr  error
	readErr   error
	responder func(frame []byte) [][]byte
	blockChan chan struct{}
	product   detection.Product
	writes    [][]byte
	reads     [][]byte
	delay     time.Duration
	mu        sync.Mutex
	closes    int
	closed    bool
}

// NewMockTransport creates a connected mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// NewMockTransportFor creates a mock transport bound to a product and answered
// by respond, e.g. an emulated reader's Respond method
func NewMockTransportFor(product detection.Product, respond func(frame []byte) [][]byte) *MockTransport {
	m := NewMockTransport()
	m.product = product
	m.responder = respond
	return m
}

// SetResponder sets the function answering written frames
func (m *MockTransport) SetResponder(fn func(frame []byte) [][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// SetProduct sets the product reported through ProductTransport
func (m *MockTransport) SetProduct(product detection.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.product = product
}

// QueueRead queues frames returned by subsequent reads
func (m *MockTransport) QueueRead(frames ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range frames {
		m.reads = append(m.reads, append([]byte{}, f...))
	}
}

// SetWriteError makes every write fail with err. nil clears it.
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadError makes every read fail with err. nil clears it.
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetDelay delays every read
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// Block makes reads wait until Unblock, Close or the read context ends
func (m *MockTransport) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blockChan == nil {
		m.blockChan = make(chan struct{})
	}
}

// Unblock releases reads waiting after Block
func (m *MockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blockChan != nil {
		close(m.blockChan)
		m.blockChan = nil
	}
}

// Writes returns a copy of every frame written
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount returns the number of frames written
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// CloseCount returns how many times Close was called
func (m *MockTransport) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Write records data and queues the responder's reply
func (m *MockTransport) Write(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrTransportClosed
	}
	m.writes = append(m.writes, append([]byte{}, data...))
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if m.responder != nil {
		m.reads = append(m.reads, m.responder(data)...)
	}
	return len(data), nil
}

// Read returns the next queued frame, truncated to maxBytes
func (m *MockTransport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	m.mu.Lock()
	delay, block := m.delay, m.blockChan
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransportClosed
	}
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.reads) == 0 {
		return []byte{}, nil
	}

	next := m.reads[0]
	m.reads = m.reads[1:]
	if len(next) > maxBytes {
		next = next[:maxBytes]
	}
	return next, nil
}

// Close marks the transport closed and releases blocked reads
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if !m.closed {
		m.closed = true
		if m.blockChan != nil {
			close(m.blockChan)
			m.blockChan = nil
		}
	}
	return nil
}

// IsConnected returns true until Close
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Product returns the product set with SetProduct or NewMockTransportFor
func (m *MockTransport) Product() detection.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.product
}
