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
	"sync"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/felica"
)

// Card is a card read by a session
type Card struct {
	// IDm is the 8-byte card identifier
	IDm []byte
	// StudentID is the decoded student number, empty if it could not be read
	StudentID string
}

// IDmString returns the IDm as upper case hex
func (c Card) IDmString() string {
	return fmt.Sprintf("%X", c.IDm)
}

// Session owns at most one reader at a time and reads student cards through
// it. A Session is safe for concurrent use; operations are serialized.
type Session struct {
	config    *Config
	transport Transport
	reader    Reader
	mu        sync.Mutex
	closed    bool
}

// NewSession creates a session. No device is touched until InitDevice.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{config: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return s, nil
}

// Config returns a copy of the session configuration
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.config
}

// Reader returns the active reader, or nil before InitDevice
func (s *Session) Reader() Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader
}

// InitDevice opens and brings up the reader. Calling it again returns the
// reader that is already active.
func (s *Session) InitDevice(ctx context.Context) (Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.reader != nil {
		return s.reader, nil
	}

	transport, product, err := s.openTransport(ctx)
	if err != nil {
		return nil, err
	}

	reader, err := NewReader(transport, product, s.config.IOTimeout)
	if err != nil {
		_ = transport.Close()
		s.transport = nil
		return nil, err
	}

	if err := reader.Init(ctx); err != nil {
		_ = transport.Close()
		s.transport = nil
		return nil, fmt.Errorf("failed to initialize %s: %w", product.Name, err)
	}

	debugf("%s ready on %s", product.Name, transport.Type())
	s.transport = transport
	s.reader = reader
	return reader, nil
}

// openTransport returns the preset transport or detects a reader and opens it
func (s *Session) openTransport(ctx context.Context) (Transport, detection.Product, error) {
	if s.transport != nil {
		product, ok := s.presetProduct()
		if !ok {
			return nil, detection.Product{}, fmt.Errorf("%w: cannot tell which reader the transport is bound to",
				ErrUnsupportedDevice)
		}
		return s.transport, product, nil
	}

	if s.config.TransportFactory == nil {
		return nil, detection.Product{}, fmt.Errorf("%w: no transport factory", ErrInvalidParameter)
	}

	device, err := s.selectDevice(ctx)
	if err != nil {
		return nil, detection.Product{}, err
	}
	product, ok := device.Product()
	if !ok {
		return nil, detection.Product{}, fmt.Errorf("%w: %s", ErrUnsupportedDevice, device.VIDPID())
	}

	var transport Transport
	err = RetryWithConfig(ctx, s.config.RetryConfig, func() error {
		var openErr error
		transport, openErr = s.config.TransportFactory(ctx, device)
		return openErr
	})
	if err != nil {
		return nil, detection.Product{}, fmt.Errorf("failed to open %s: %w", device, err)
	}
	return transport, product, nil
}

func (s *Session) presetProduct() (detection.Product, bool) {
	if pt, ok := s.transport.(ProductTransport); ok {
		if product := pt.Product(); product.Chipset != detection.ChipsetUnknown {
			return product, true
		}
	}
	if s.config.Device != nil {
		return s.config.Device.Product()
	}
	return detection.Product{}, false
}

// selectDevice returns the configured device or the first supported one
// detected
func (s *Session) selectDevice(ctx context.Context) (detection.DeviceInfo, error) {
	if s.config.Device != nil {
		return *s.config.Device, nil
	}

	opts := s.config.DetectionOptions
	if opts == nil {
		defaults := detection.DefaultOptions()
		opts = &defaults
	}
	devices, err := detection.DetectAllContext(ctx, opts)
	if err != nil {
		return detection.DeviceInfo{}, fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	}
	for _, d := range devices {
		if detection.IsSupported(d.VendorID, d.ProductID) {
			return d, nil
		}
	}
	return detection.DeviceInfo{}, ErrDeviceNotFound
}

// activeReader returns the reader for a command. Callers hold s.mu.
func (s *Session) activeReader() (Reader, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.reader == nil {
		return nil, ErrNotInitialized
	}
	return s.reader, nil
}

// CardID polls once and returns the IDm of the card in the field. An empty
// reply is ErrNoCard, which callers retry; an IDm that is not 8 bytes is
// ErrInvalidCardID.
func (s *Session) CardID(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.activeReader()
	if err != nil {
		return nil, err
	}

	req := felica.PollingRequest{
		SystemCode:  s.config.SystemCode,
		RequestCode: felica.DefaultRequestCode,
		TimeSlot:    felica.DefaultTimeSlot,
	}
	resp, err := Polling(ctx, reader, req, s.config.PollingTimeout)
	if err != nil {
		return nil, fmt.Errorf("polling failed: %w", err)
	}

	idm := resp.IDm()
	switch {
	case len(idm) == 0:
		return nil, ErrNoCard
	case len(idm) != felica.IDmLength:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidCardID, len(idm))
	}
	debugf("card %X", idm)
	return idm, nil
}

// WaitForCardID polls until a card answers or ctx is done. The wait between
// empty polls starts at PollInterval and grows to MaxPollInterval. Errors
// other than ErrNoCard end the wait.
func (s *Session) WaitForCardID(ctx context.Context) ([]byte, error) {
	backoff := &RetryConfig{
		InitialBackoff:    s.config.PollInterval,
		MaxBackoff:        s.config.MaxPollInterval,
		BackoffMultiplier: 1.5,
	}

	var idm []byte
	err := retryWhile(ctx, backoff, 0, func(err error) bool {
		return errors.Is(err, ErrNoCard)
	}, func() error {
		var pollErr error
		idm, pollErr = s.CardID(ctx)
		return pollErr
	})
	if err != nil {
		return nil, err
	}
	return idm, nil
}

// StudentID reads the student number block of the card with the given IDm.
// A block that cannot be decoded returns ErrNoStudentID and an empty string.
func (s *Session) StudentID(ctx context.Context, idm []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.activeReader()
	if err != nil {
		return "", err
	}

	req := felica.StudentIDRequest(idm, s.config.ServiceCode)
	resp, err := ReadWithoutEncryption(ctx, reader, req, s.config.ReadTimeout)
	if err != nil {
		return "", fmt.Errorf("read without encryption failed: %w", err)
	}

	id, ok := resp.StudentID()
	if !ok {
		return "", ErrNoStudentID
	}
	return id, nil
}

// ReadCard waits for a card and reads its student number. A card whose block
// cannot be decoded is returned with an empty StudentID and ErrNoStudentID.
func (s *Session) ReadCard(ctx context.Context) (Card, error) {
	idm, err := s.WaitForCardID(ctx)
	if err != nil {
		return Card{}, err
	}

	id, err := s.StudentID(ctx, idm)
	return Card{IDm: idm, StudentID: id}, err
}

// Disconnect powers the reader down and releases it. Later calls are no-ops
// and every other operation returns ErrSessionClosed.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	reader, transport := s.reader, s.transport
	s.reader, s.transport = nil, nil

	if reader != nil {
		return reader.Disconnect(ctx)
	}
	if transport != nil {
		return transport.Close()
	}
	return nil
}

// Close disconnects with a background context
func (s *Session) Close() error {
	return s.Disconnect(context.Background())
}
