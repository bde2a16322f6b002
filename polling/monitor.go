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

package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-pasori"
)

// CardReader is the part of a pasori.Session the monitor drives
type CardReader interface {
	CardID(ctx context.Context) ([]byte, error)
	StudentID(ctx context.Context, idm []byte) (string, error)
	Close() error
}

var _ CardReader = (*pasori.Session)(nil)

// Monitor handles continuous card monitoring with state machine
type Monitor struct {
	reader         CardReader
	config         *Config
	OnCardDetected func(card pasori.Card) error
	OnCardRemoved  func()
	OnCardChanged  func(card pasori.Card) error
	state          CardState
	mu             sync.Mutex
	// generation invalidates removal timers armed before the latest transition
	generation uint64
	isPaused   atomic.Bool
}

// NewMonitor creates a new card monitor
func NewMonitor(reader CardReader, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		reader: reader,
		config: config,
	}
}

// Start polls until ctx is done or the session is closed
func (m *Monitor) Start(ctx context.Context) error {
	return m.continuousPolling(ctx)
}

// Pause suspends polling. A card in the field is kept until polling resumes.
func (m *Monitor) Pause() {
	m.isPaused.Store(true)
}

// Resume restarts polling after Pause
func (m *Monitor) Resume() {
	m.isPaused.Store(false)
}

// GetState returns a copy of the current card state
func (m *Monitor) GetState() CardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetReader returns the underlying card reader
func (m *Monitor) GetReader() CardReader {
	return m.reader
}

// Close stops the removal timer and closes the reader
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.generation++
	safeTimerStop(m.state.RemovalTimer)
	m.state.RemovalTimer = nil
	m.mu.Unlock()

	if err := m.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}
	return nil
}

func (m *Monitor) continuousPolling(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !m.isPaused.Load() {
			idm, err := m.performSinglePoll(ctx)
			switch {
			case errors.Is(err, pasori.ErrSessionClosed):
				m.handleCardRemoval(m.currentGeneration())
				return err
			case errors.Is(err, ErrNoCardInPoll):
				// removal is left to the timer
			case err != nil:
				m.handlePollingError(err)
			default:
				m.processPollingResults(ctx, idm)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.PollInterval):
		}
	}
}

// performSinglePoll polls once for a card
func (m *Monitor) performSinglePoll(ctx context.Context) ([]byte, error) {
	idm, err := m.reader.CardID(ctx)
	if err != nil {
		if errors.Is(err, pasori.ErrNoCard) {
			return nil, ErrNoCardInPoll
		}
		return nil, fmt.Errorf("card detection failed: %w", err)
	}
	return idm, nil
}

// handlePollingError handles errors from polling operations
func (m *Monitor) handlePollingError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if pasori.IsRetryable(err) {
		// transient failures are covered by the removal timer
		return
	}

	// a broken reader cannot see the card anymore
	m.handleCardRemoval(m.currentGeneration())
}

func (m *Monitor) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// removalCallback arms a timer callback valid for the next generation.
// Callers hold m.mu.
func (m *Monitor) removalCallback() func() {
	m.generation++
	gen := m.generation
	return func() {
		m.handleCardRemoval(gen)
	}
}

// handleCardRemoval reports the card as removed unless a newer transition
// superseded gen
func (m *Monitor) handleCardRemoval(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || !m.state.Present {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.state.TransitionToIdle()
	m.mu.Unlock()

	if m.OnCardRemoved != nil {
		m.OnCardRemoved()
	}
}

// processPollingResults updates the state for a card seen by a poll and
// reads the student number of a card not reported yet
func (m *Monitor) processPollingResults(ctx context.Context, idm []byte) {
	key := pasori.Card{IDm: idm}.IDmString()

	m.mu.Lock()
	m.state.Present = true
	m.state.LastIDm = key
	if !m.shouldReadCard(key) {
		m.state.TransitionToDetected(m.config.CardRemovalTimeout, m.removalCallback())
		m.mu.Unlock()
		return
	}
	previous := m.state.ReadIDm
	m.generation++
	m.state.TransitionToReading()
	m.mu.Unlock()

	card, err := m.readCard(ctx, idm)
	if err != nil {
		m.mu.Lock()
		m.state.TransitionToDetected(m.config.CardRemovalTimeout, m.removalCallback())
		m.mu.Unlock()
		m.handlePollingError(err)
		return
	}

	m.mu.Lock()
	m.state.ReadIDm = key
	m.state.LastStudentID = card.StudentID
	m.state.TransitionToPostReadGrace(m.config.CardRemovalTimeout, m.removalCallback())
	m.mu.Unlock()

	switch {
	case previous == "":
		if m.OnCardDetected != nil {
			_ = m.OnCardDetected(card)
		}
	default:
		if m.OnCardChanged != nil {
			_ = m.OnCardChanged(card)
		}
	}
}

// shouldReadCard determines if the card still has to be read.
// Callers hold m.mu.
func (m *Monitor) shouldReadCard(key string) bool {
	return m.state.ReadIDm != key
}

// readCard reads the student number. A card without one is still reported.
func (m *Monitor) readCard(ctx context.Context, idm []byte) (pasori.Card, error) {
	id, err := m.reader.StudentID(ctx, idm)
	if err != nil && !errors.Is(err, pasori.ErrNoStudentID) {
		return pasori.Card{}, err
	}
	return pasori.Card{IDm: idm, StudentID: id}, nil
}
