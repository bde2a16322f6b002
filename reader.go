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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/felica"
)

// Chipset identifies the reader command set
type Chipset = detection.Chipset

// Supported chipsets
const (
	ChipsetRCS300 = detection.ChipsetRCS300
	ChipsetRCS380 = detection.ChipsetRCS380
)

// DefaultIOTimeout bounds each host-side transport exchange
const DefaultIOTimeout = 2 * time.Second

// DefaultCardTimeout is the FeliCa frame waiting time plus one delta. Both
// chipsets program it when a command is sent without a card-side timeout.
const DefaultCardTimeout = 2478 * time.Microsecond

// maxStaleFrames bounds how many leftover frames a command discards while
// looking for its own reply
const maxStaleFrames = 4

// Reader is a claimed reader running one of the supported command sets. All
// methods are safe for concurrent use; commands are serialized.
type Reader interface {
	// Init runs the chipset bring-up sequence
	Init(ctx context.Context) error

	// Disconnect powers the RF field down and closes the transport. The
	// transport is closed even if power-down fails.
	Disconnect(ctx context.Context) error

	// SendFelicaCommand passes a length-prefixed FeliCa command to the card.
	// timeout is the card-side wait programmed into the reader; zero or less
	// selects DefaultCardTimeout. A reply without a card response is an empty
	// felica.Response and no error.
	SendFelicaCommand(ctx context.Context, data []byte, timeout time.Duration) (felica.Response, error)

	// Chipset returns the reader command set
	Chipset() Chipset

	// Product returns the reader model
	Product() detection.Product
}

// NewReader returns the Reader implementation for product on an open transport.
// ioTimeout bounds each write and read; zero disables the bound.
func NewReader(transport Transport, product detection.Product, ioTimeout time.Duration) (Reader, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	switch product.Chipset {
	case ChipsetRCS300:
		return newRCS300Reader(transport, product, ioTimeout), nil
	case ChipsetRCS380:
		return newRCS380Reader(transport, product, ioTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDevice, product)
	}
}

// Polling sends a FeliCa Polling command
func Polling(
	ctx context.Context, r Reader, req felica.PollingRequest, timeout time.Duration,
) (felica.Response, error) {
	return r.SendFelicaCommand(ctx, felica.BuildPolling(req), timeout)
}

// ReadWithoutEncryption sends a FeliCa Read Without Encryption command
func ReadWithoutEncryption(
	ctx context.Context, r Reader, req felica.ReadRequest, timeout time.Duration,
) (felica.Response, error) {
	cmd, err := felica.BuildReadWithoutEncryption(req)
	if err != nil {
		return felica.Response{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return r.SendFelicaCommand(ctx, cmd, timeout)
}

// cardTimeout applies DefaultCardTimeout to unset timeouts
func cardTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultCardTimeout
	}
	return timeout
}

// withIOTimeout derives the context for one transport exchange
func withIOTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// transportName describes a transport for TransportError.Port
func transportName(t Transport, product detection.Product) string {
	return fmt.Sprintf("%s/%s", t.Type(), product.Name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
