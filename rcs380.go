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

// RC-S380 command codes
const (
	rcs380InSetRF          = 0x00
	rcs380InSetProtocol    = 0x02
	rcs380InCommRF         = 0x04
	rcs380SwitchRF         = 0x06
	rcs380SetCommandType   = 0x2A
	rcs380CommandType      = 0x01
	rcs380InCommRFHeadSize = 7 // D7 05 status(4) reserved

	// rcs380DrainTimeout bounds each read while draining leftover frames
	rcs380DrainTimeout = 50 * time.Millisecond
)

var (
	// 212 kbps FeliCa for both directions
	rcs380RFTypeF = []byte{0x01, 0x01, 0x0F, 0x01}

	// rcs380DefaultProtocol resets every InSetProtocol setting before the
	// Type F specific one is applied
	rcs380DefaultProtocol = []byte{
		0x00, 0x18, 0x01, 0x01, 0x02, 0x01, 0x03, 0x00, 0x04, 0x00, 0x05, 0x00,
		0x06, 0x00, 0x07, 0x08, 0x08, 0x00, 0x09, 0x00, 0x0A, 0x00, 0x0B, 0x00,
		0x0C, 0x00, 0x0E, 0x04, 0x0F, 0x00, 0x10, 0x00, 0x11, 0x00, 0x12, 0x00,
		0x13, 0x06,
	}

	// initial guard time of 0x18 (24) for FeliCa
	rcs380ProtocolTypeF = []byte{0x00, 0x18}
)

// rcs380Reader drives the RC-S380 through D6/D7 extended frames. Every command
// is answered by an ACK frame and then a response frame.
type rcs380Reader struct {
	transport   Transport
	product     detection.Product
	ioTimeout   time.Duration
	mu          sync.Mutex
	initialized bool
	// pending is set when a command gave up before reading its response,
	// leaving frames in the pipe
	pending bool
}

func newRCS380Reader(transport Transport, product detection.Product, ioTimeout time.Duration) *rcs380Reader {
	return &rcs380Reader{
		transport: transport,
		product:   product,
		ioTimeout: ioTimeout,
	}
}

func (*rcs380Reader) Chipset() Chipset {
	return ChipsetRCS380
}

func (r *rcs380Reader) Product() detection.Product {
	return r.product
}

// Init resets the command layer, sets the command type and configures the RF
// and protocol settings for FeliCa at 212 kbps. SwitchRF is sent twice.
func (r *rcs380Reader) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debugf("initialize %s", r.product.Name)
	if err := r.sendAck(ctx); err != nil {
		return fmt.Errorf("ack: %w", err)
	}

	steps := []struct {
		name   string
		params []byte
		code   byte
	}{
		{"set command type", []byte{rcs380CommandType}, rcs380SetCommandType},
		{"switch RF", []byte{0x00}, rcs380SwitchRF},
		{"switch RF", []byte{0x00}, rcs380SwitchRF},
		{"in set RF", rcs380RFTypeF, rcs380InSetRF},
		{"in set protocol (defaults)", rcs380DefaultProtocol, rcs380InSetProtocol},
		{"in set protocol (type F)", rcs380ProtocolTypeF, rcs380InSetProtocol},
	}
	for _, step := range steps {
		if _, err := r.command(ctx, step.code, step.params); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	r.initialized = true
	return nil
}

// Disconnect switches RF off, acknowledges and closes the transport
func (r *rcs380Reader) Disconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debugf("disconnect %s", r.product.Name)
	var errs []error
	if _, err := r.command(ctx, rcs380SwitchRF, []byte{0x00}); err != nil {
		errs = append(errs, fmt.Errorf("switch RF: %w", err))
	}
	if err := r.sendAck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ack: %w", err))
	}
	if err := r.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	r.initialized = false
	return errors.Join(errs...)
}

// SendFelicaCommand sends data with InCommRF. The reader was switched to Type F
// during Init, so no per-command protocol switch is needed.
func (r *rcs380Reader) SendFelicaCommand(
	ctx context.Context, data []byte, timeout time.Duration,
) (felica.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return felica.Response{}, ErrNotInitialized
	}

	timeout = cardTimeout(timeout)
	wire := frame.TimeoutToWire(timeout)
	if wire > 0xFFFF {
		return felica.Response{}, fmt.Errorf("%w: timeout %v exceeds the reader maximum", ErrInvalidParameter, timeout)
	}

	params := make([]byte, 0, 2+len(data))
	params = append(params, frame.LE16(wire)...)
	params = append(params, data...)

	resp, err := r.command(ctx, rcs380InCommRF, params)
	if err != nil {
		return felica.Response{}, fmt.Errorf("in comm RF: %w", err)
	}
	if !resp.Success || len(resp.Payload) <= rcs380InCommRFHeadSize {
		return felica.Response{}, nil
	}
	return felica.ParseFrame(resp.Payload[rcs380InCommRFHeadSize:]), nil
}

// command writes one command and reads the ACK frame then the response frame.
// Frames left over from an abandoned command are drained before the write, and
// a response arriving where the ACK was expected is discarded.
func (r *rcs380Reader) command(ctx context.Context, code byte, params []byte) (frame.Response, error) {
	frm := frame.EncodeRCS380(code, params)
	port := transportName(r.transport, r.product)

	ioCtx, cancel := withIOTimeout(ctx, r.ioTimeout)
	defer cancel()

	if r.pending {
		if err := r.drain(ioCtx); err != nil {
			return frame.Response{}, wrapTransportError("read", port, err)
		}
		r.pending = false
	}

	debugFrame(">>>>> send", ChipsetRCS380, frm)
	if _, err := r.transport.Write(ioCtx, frm); err != nil {
		return frame.Response{}, wrapTransportError("write", port, err)
	}

	r.pending = true
	if err := r.awaitAck(ioCtx, port, code); err != nil {
		return frame.Response{}, err
	}
	raw, err := r.read(ioCtx, port)
	if err != nil {
		return frame.Response{}, err
	}
	r.pending = false
	return frame.DecodeRCS380(raw), nil
}

// awaitAck reads until the ACK frame, discarding anything before it
func (r *rcs380Reader) awaitAck(ctx context.Context, port string, code byte) error {
	for range maxStaleFrames {
		raw, err := r.read(ctx, port)
		if err != nil {
			return err
		}
		if frame.IsAck(raw) {
			return nil
		}
		debugf("expected ACK for command 0x%02X, discarding % X", code, raw)
	}
	return NewNoACKError("read", port)
}

// drain discards frames still queued by an abandoned command. It stops at the
// first empty or failed read; only the caller's context ending is an error.
func (r *rcs380Reader) drain(ctx context.Context) error {
	for range maxStaleFrames * 2 {
		readCtx, cancel := context.WithTimeout(ctx, rcs380DrainTimeout)
		raw, err := r.transport.Read(readCtx, frame.MaxReceiveSize)
		cancel()
		if err != nil || len(raw) == 0 {
			return ctx.Err()
		}
		debugFrame("<<<<< discard", ChipsetRCS380, raw)
	}
	return nil
}

func (r *rcs380Reader) read(ctx context.Context, port string) ([]byte, error) {
	raw, err := r.transport.Read(ctx, frame.MaxReceiveSize)
	if err != nil {
		return nil, wrapTransportError("read", port, err)
	}
	if len(raw) == 0 {
		raw = frame.EmptyRead
	}
	debugFrame("<<<<< receive", ChipsetRCS380, raw)
	return raw, nil
}

func (r *rcs380Reader) sendAck(ctx context.Context) error {
	ioCtx, cancel := withIOTimeout(ctx, r.ioTimeout)
	defer cancel()

	debugFrame(">>>>> send", ChipsetRCS380, frame.AckFrame)
	if _, err := r.transport.Write(ioCtx, frame.AckFrame); err != nil {
		return wrapTransportError("write", transportName(r.transport, r.product), err)
	}
	return nil
}
