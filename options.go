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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/felica"
)

// Config holds session configuration
type Config struct {
	// TransportFactory opens the transport for the chosen reader
	TransportFactory TransportFactory
	// Device selects the reader; nil means the first detected one
	Device *detection.DeviceInfo
	// DetectionOptions configures detection when Device is nil
	DetectionOptions *detection.Options
	// RetryConfig governs opening the transport
	RetryConfig *RetryConfig
	// IOTimeout bounds each host-side write and read
	IOTimeout time.Duration
	// PollInterval is the first wait between empty polls in WaitForCardID
	PollInterval time.Duration
	// MaxPollInterval caps the wait between empty polls
	MaxPollInterval time.Duration
	// PollingTimeout is the card-side wait for a Polling reply
	PollingTimeout time.Duration
	// ReadTimeout is the card-side wait for a Read Without Encryption reply
	ReadTimeout time.Duration
	// SystemCode is polled for
	SystemCode uint16
	// ServiceCode holds the student number block
	ServiceCode uint16
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		RetryConfig:     DefaultRetryConfig(),
		IOTimeout:       DefaultIOTimeout,
		PollInterval:    250 * time.Millisecond,
		MaxPollInterval: 1 * time.Second,
		PollingTimeout:  felica.DefaultPollingTimeout,
		ReadTimeout:     felica.DefaultReadTimeout,
		SystemCode:      felica.DefaultSystemCode,
		ServiceCode:     felica.DefaultServiceCode,
	}
}

// Option configures a Session
type Option func(*Session) error

// WithTransportFactory sets the function used to open the reader's transport
func WithTransportFactory(factory TransportFactory) Option {
	return func(s *Session) error {
		if factory == nil {
			return fmt.Errorf("%w: nil transport factory", ErrInvalidParameter)
		}
		s.config.TransportFactory = factory
		return nil
	}
}

// WithTransport uses an already open transport instead of detecting a reader.
// The session owns it from then on. The reader model is taken from the
// transport when it implements ProductTransport, otherwise from WithDeviceInfo.
func WithTransport(transport Transport) Option {
	return func(s *Session) error {
		if transport == nil {
			return fmt.Errorf("%w: nil transport", ErrInvalidParameter)
		}
		s.transport = transport
		return nil
	}
}

// WithDeviceInfo selects the reader to open instead of detecting one
func WithDeviceInfo(device detection.DeviceInfo) Option {
	return func(s *Session) error {
		if _, ok := device.Product(); !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedDevice, device.VIDPID())
		}
		s.config.Device = &device
		return nil
	}
}

// WithDetectionOptions sets the options used to detect a reader
func WithDetectionOptions(opts detection.Options) Option {
	return func(s *Session) error {
		s.config.DetectionOptions = &opts
		return nil
	}
}

// WithRetryConfig sets the retry configuration for opening the transport. The
// session keeps its own copy.
func WithRetryConfig(config *RetryConfig) Option {
	return func(s *Session) error {
		if config == nil {
			return fmt.Errorf("%w: nil retry config", ErrInvalidParameter)
		}
		cfg := *config
		s.config.RetryConfig = &cfg
		return nil
	}
}

// WithMaxRetries sets the number of attempts to open the transport
func WithMaxRetries(maxAttempts int) Option {
	return func(s *Session) error {
		s.config.RetryConfig.MaxAttempts = maxAttempts
		return nil
	}
}

// WithRetryBackoff sets the initial backoff between attempts to open the transport
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(s *Session) error {
		s.config.RetryConfig.InitialBackoff = initialBackoff
		return nil
	}
}

// WithIOTimeout bounds each host-side write and read. Zero disables the bound.
func WithIOTimeout(timeout time.Duration) Option {
	return func(s *Session) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative I/O timeout", ErrInvalidParameter)
		}
		s.config.IOTimeout = timeout
		return nil
	}
}

// WithPollInterval sets the first wait between empty polls
func WithPollInterval(interval time.Duration) Option {
	return func(s *Session) error {
		if interval <= 0 {
			return fmt.Errorf("%w: poll interval must be positive", ErrInvalidParameter)
		}
		s.config.PollInterval = interval
		if s.config.MaxPollInterval < interval {
			s.config.MaxPollInterval = interval
		}
		return nil
	}
}

// WithMaxPollInterval caps the wait between empty polls
func WithMaxPollInterval(interval time.Duration) Option {
	return func(s *Session) error {
		if interval < s.config.PollInterval {
			return fmt.Errorf("%w: max poll interval below poll interval", ErrInvalidParameter)
		}
		s.config.MaxPollInterval = interval
		return nil
	}
}

// WithCardTimeouts sets the card-side timeouts programmed into the reader for
// Polling and Read Without Encryption
func WithCardTimeouts(polling, read time.Duration) Option {
	return func(s *Session) error {
		if polling < 0 || read < 0 {
			return fmt.Errorf("%w: negative card timeout", ErrInvalidParameter)
		}
		s.config.PollingTimeout = polling
		s.config.ReadTimeout = read
		return nil
	}
}

// WithSystemCode sets the system code polled for
func WithSystemCode(code uint16) Option {
	return func(s *Session) error {
		s.config.SystemCode = code
		return nil
	}
}

// WithServiceCode sets the service holding the student number block
func WithServiceCode(code uint16) Option {
	return func(s *Session) error {
		s.config.ServiceCode = code
		return nil
	}
}
