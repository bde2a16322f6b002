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
	"time"

	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/felica"
	"github.com/ZaparooProject/go-pasori/internal/frame"
)

// Transparent session data objects, wrapped in FF 50 00 00 02 tag 00 00
const (
	rcs300StartTransparent = 0x81
	rcs300EndTransparent   = 0x82
	rcs300TurnOffRF        = 0x83
	rcs300TurnOnRF         = 0x84
)

var (
	rcs300ManageSession       = []byte{0xFF, 0x50, 0x00, 0x00}
	rcs300SwitchProtocolTypeF = []byte{0xFF, 0x50, 0x00, 0x02, 0x04, 0x8F, 0x02, 0x03, 0x00, 0x00}
	rcs300CommunicateThruEX   = []byte{0xFF, 0x50, 0x00, 0x01, 0x00}
	rcs300ThruEXFooter        = []byte{0x00, 0x00, 0x00}

	// timer data object (5F 46 04), then transceive data object (95 82 len16)
	rcs300FelicaTimer    = []byte{0x5F, 0x46, 0x04}
	rcs300FelicaTransmit = []byte{0x95, 0x82}
)

const (
	// rcs300RFSettle is the wait after switching the RF field
	rcs300RFSettle = 30 * time.Millisecond
)

// rcs300Reader drives the RC-S300 through CCID escape frames
type rcs300Reader struct {
	transport   Transport
	product     detection.Product
	ioTimeout   time.Duration
	mu          sync.Mutex
	seq         byte
	initialized bool
}

func newRCS300Reader(transport Transport, product detection.Product, ioTimeout time.Duration) *rcs300Reader {
	return &rcs300Reader{
		transport: transport,
		product:   product,
		ioTimeout: ioTimeout,
	}
}

func (*rcs300Reader) Chipset() Chipset {
	return ChipsetRCS300
}

func (r *rcs300Reader) Product() detection.Product {
	return r.product
}

// Init resets the transparent session and cycles the RF field
func (r *rcs300Reader) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debugf("initialize %s", r.product.Name)
	steps := []struct {
		name string
		tag  byte
	}{
		{"end transparent session", rcs300EndTransparent},
		{"start transparent session", rcs300StartTransparent},
		{"turn off RF", rcs300TurnOffRF},
		{"turn on RF", rcs300TurnOnRF},
	}
	for _, step := range steps {
		if _, err := r.sessionCommand(ctx, step.tag); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	r.initialized = true
	return nil
}

// Disconnect turns the RF field off, ends the transparent session and closes
// the transport
func (r *rcs300Reader) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debugf("disconnect %s", r.product.Name)
	var errs []error
	if _, err := r.sessionCommand(ctx, rcs300TurnOffRF); err != nil {
		errs = append(errs, fmt.Errorf("turn off RF: %w", err))
	}
	if _, err := r.sessionCommand(ctx, rcs300EndTransparent); err != nil {
		errs = append(errs, fmt.Errorf("end transparent session: %w", err))
	}
	if err := r.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	r.initialized = false
	return errors.Join(errs...)
}

// SendFelicaCommand switches the reader to Type F and sends data through
// Communicate Thru EX. The card response is located by its 0x97 data object.
func (r *rcs300Reader) SendFelicaCommand(
	ctx context.Context, data []byte, timeout time.Duration,
) (felica.Response, error) {
	if len(data) > 0xFFFF {
		return felica.Response{}, NewDataTooLargeError("SendFelicaCommand", transportName(r.transport, r.product))
	}
	timeout = cardTimeout(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return felica.Response{}, ErrNotInitialized
	}

	if _, err := r.exchange(ctx, rcs300SwitchProtocolTypeF); err != nil {
		return felica.Response{}, fmt.Errorf("switch protocol: %w", err)
	}

	resp, err := r.exchange(ctx, buildCommunicateThruEX(data, timeout))
	if err != nil {
		return felica.Response{}, fmt.Errorf("communicate thru EX: %w", err)
	}
	return felica.ExtractFelicaData(resp.Payload), nil
}

// buildCommunicateThruEX wraps a FeliCa command in the timer and transceive
// data objects and the Communicate Thru EX envelope
func buildCommunicateThruEX(data []byte, timeout time.Duration) []byte {
	inner := make([]byte, 0, 11+len(data))
	inner = append(inner, rcs300FelicaTimer...)
	inner = append(inner, frame.LE32(frame.TimeoutToWire(timeout))...)
	inner = append(inner, rcs300FelicaTransmit...)
	inner = append(inner, byte(len(data)>>8), byte(len(data)))
	inner = append(inner, data...)

	cmd := make([]byte, 0, len(rcs300CommunicateThruEX)+2+len(inner)+len(rcs300ThruEXFooter))
	cmd = append(cmd, rcs300CommunicateThruEX...)
	cmd = append(cmd, byte(len(inner)>>8), byte(len(inner)))
	cmd = append(cmd, inner...)
	return append(cmd, rcs300ThruEXFooter...)
}

// sessionCommand sends a Manage Session data object. RF switches are followed
// by a settle delay.
func (r *rcs300Reader) sessionCommand(ctx context.Context, tag byte) (frame.Response, error) {
	cmd := append(append([]byte{}, rcs300ManageSession...), 0x02, tag, 0x00, 0x00)
	resp, err := r.exchange(ctx, cmd)
	if err != nil {
		return resp, err
	}
	if tag == rcs300TurnOffRF || tag == rcs300TurnOnRF {
		if err := sleepContext(ctx, rcs300RFSettle); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// exchange writes one escape frame and reads its reply. Write failures are
// logged and the read still runs. Replies carrying an earlier bSeq were left
// in the pipe by a command whose read timed out and are discarded.
func (r *rcs300Reader) exchange(ctx context.Context, cmd []byte) (frame.Response, error) {
	r.seq++
	frm := frame.EncodeRCS300(cmd, r.seq)
	port := transportName(r.transport, r.product)

	ioCtx, cancel := withIOTimeout(ctx, r.ioTimeout)
	defer cancel()

	debugFrame(">>>>> send", ChipsetRCS300, frm)
	if _, err := r.transport.Write(ioCtx, frm); err != nil {
		Logger().Warn("RC-S300 write failed, continuing", "port", port, "error", err)
	}

	stale := 0
	for {
		raw, err := r.transport.Read(ioCtx, frame.MaxReceiveSize)
		if err != nil {
			return frame.Response{}, wrapTransportError("read", port, err)
		}
		if len(raw) == 0 {
			if stale > 0 {
				return frame.Response{}, NewFrameCorruptedError("read", port)
			}
			raw = frame.EmptyRead
		}
		debugFrame("<<<<< receive", ChipsetRCS300, raw)

		seq, ok := frame.RCS300Sequence(raw)
		if !ok || raw[0] != frame.RCS300EscapeReply || seq == r.seq {
			return frame.DecodeRCS300(raw), nil
		}
		stale++
		if stale > maxStaleFrames {
			return frame.Response{}, NewFrameCorruptedError("read", port)
		}
		debugf("discarding RC-S300 reply for sequence %d, want %d", seq, r.seq)
	}
}

// wrapTransportError classifies a transport failure, keeping an existing
// TransportError as is
func wrapTransportError(op, port string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(op, port, errors.Join(ErrTransportTimeout, err), ErrorTypeTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return NewTransportError(op, port, err, ErrorTypePermanent)
	}
	sentinel := ErrTransportRead
	if op == "write" {
		sentinel = ErrTransportWrite
	}
	return NewTransportError(op, port, errors.Join(sentinel, err), ErrorTypeTransient)
}
