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

// Package pcsc drives an RC-S300 through the platform PC/SC service. It is
// for hosts where the CCID driver owns the reader and its bulk endpoints
// cannot be claimed.
//
// The transport accepts the CCID escape frames written by the RC-S300 reader,
// forwards each command with SCardControl and queues the answer as the escape
// reply frame the reader would have sent.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	pcscdetect "github.com/ZaparooProject/go-pasori/detection/pcsc"
	"github.com/ZaparooProject/go-pasori/internal/frame"
	"github.com/ebfe/scard"
)

// escapeFunction is the CCID driver's escape function number
const escapeFunction = 3500

// CCID bStatus values used in synthesized replies
const (
	statusOK     = 0x00
	statusFailed = 0x40
)

// card is the part of *scard.Card the transport uses
type card interface {
	Control(ioctl uint32, in []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// Transport implements pasori.Transport over a direct PC/SC connection
type Transport struct {
	card    card
	release func() error
	product detection.Product
	reader  string
	pending [][]byte
	mu      sync.Mutex
	closed  bool
}

// Factory opens a Transport for a detected device. It is meant for
// pasori.WithTransportFactory.
func Factory(ctx context.Context, device detection.DeviceInfo) (pasori.Transport, error) {
	return New(ctx, device)
}

// New connects directly to the reader named by device.Path (pcsc:<name>) or,
// failing that, device.Name. Only RC-S300 readers are accepted.
func New(ctx context.Context, device detection.DeviceInfo) (*Transport, error) {
	product, ok := device.Product()
	if !ok || product.Chipset != detection.ChipsetRCS300 {
		return nil, fmt.Errorf("%w: %s has no PC/SC escape interface", pasori.ErrUnsupportedDevice, device.VIDPID())
	}
	reader, ok := pcscdetect.ReaderName(device.Path)
	if !ok {
		reader = device.Name
	}
	if reader == "" {
		return nil, fmt.Errorf("%w: no PC/SC reader name", pasori.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	c, err := sc.Connect(reader, scard.ShareDirect, scard.ProtocolUndefined)
	if err != nil {
		_ = sc.Release()
		return nil, fmt.Errorf("failed to connect to %q: %w", reader, err)
	}

	pasori.Logger().Debug("connected PC/SC reader", "reader", reader, "product", product.Name)
	return newTransport(c, sc.Release, product, reader), nil
}

func newTransport(c card, release func() error, product detection.Product, reader string) *Transport {
	return &Transport{
		card:    c,
		release: release,
		product: product,
		reader:  reader,
	}
}

// Write forwards the command inside a CCID escape frame to the reader and
// queues the reply frame
func (t *Transport) Write(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, pasori.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	seq, cmd, ok := frame.SplitRCS300(data)
	if !ok {
		return 0, fmt.Errorf("%w: not a CCID escape frame", pasori.ErrInvalidParameter)
	}

	resp, err := t.card.Control(EscapeControlCode(), cmd)
	if err != nil {
		t.pending = append(t.pending, frame.EncodeRCS300Reply(nil, seq, statusFailed))
		return 0, fmt.Errorf("escape command failed: %w", err)
	}
	t.pending = append(t.pending, frame.EncodeRCS300Reply(resp, seq, statusOK))
	return len(data), nil
}

// Read returns the next queued reply. Nothing queued reads as an empty
// transfer.
func (t *Transport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, pasori.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.pending) == 0 {
		return []byte{}, nil
	}

	next := t.pending[0]
	t.pending = t.pending[1:]
	if len(next) > maxBytes {
		next = next[:maxBytes]
	}
	return next, nil
}

// Close disconnects from the reader and releases the PC/SC context
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.pending = nil

	var errs []error
	if err := t.card.Disconnect(scard.LeaveCard); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}
	if t.release != nil {
		if err := t.release(); err != nil {
			errs = append(errs, fmt.Errorf("release context: %w", err))
		}
	}
	return errors.Join(errs...)
}

// IsConnected returns true until Close
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Type returns the transport type
func (*Transport) Type() pasori.TransportType {
	return pasori.TransportPCSC
}

// Product returns the reader model the transport is bound to
func (t *Transport) Product() detection.Product {
	return t.product
}

// Reader returns the PC/SC reader name
func (t *Transport) Reader() string {
	return t.reader
}

// EscapeControlCode returns SCARD_CTL_CODE for the CCID escape function on
// the running platform
func EscapeControlCode() uint32 {
	if runtime.GOOS == "windows" {
		return 0x00310000 | escapeFunction<<2
	}
	return 0x42000000 + escapeFunction
}

var _ pasori.ProductTransport = (*Transport)(nil)
