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

// Package usbfs provides a cgo-free transport for PaSoRi readers on Linux,
// talking to usbfs through the softusb host HAL.
package usbfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/internal/transport"
	"github.com/ardnew/softusb/host/hal"
	"github.com/ardnew/softusb/pkg"
)

const (
	// DeviceWait bounds the wait for the HAL's initial bus scan to report
	// the reader
	DeviceWait = 2 * time.Second

	scanInterval    = 20 * time.Millisecond
	claimRetries    = 5
	claimRetryDelay = 50 * time.Millisecond

	// used when the caller's context has no deadline
	defaultTransferTimeout = 5 * time.Second

	deviceDescriptorSize = 18
)

// host is the part of the softusb host HAL the transport uses
type host interface {
	NumPorts() int
	GetPortStatus(port int) (hal.PortStatus, error)
	ControlTransfer(ctx context.Context, addr hal.DeviceAddress, setup *hal.SetupPacket, data []byte) (int, error)
	BulkTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error)
	ClaimInterface(addr hal.DeviceAddress, iface uint8) error
	ReleaseInterface(addr hal.DeviceAddress, iface uint8) error
	SetTransferTimeout(ms uint32)
	Close() error
}

// Transport implements pasori.Transport over usbfs bulk transfers
type Transport struct {
	host    host
	product detection.Product
	path    string
	mu      sync.Mutex
	addr    hal.DeviceAddress
	closed  bool
}

// Factory opens a Transport for a detected device. It is meant for
// pasori.WithTransportFactory.
func Factory(ctx context.Context, device detection.DeviceInfo) (pasori.Transport, error) {
	return New(ctx, device)
}

// open finds the product among the HAL's ports and claims its interface. The
// HAL takes ownership of the host; it is closed on failure.
func open(ctx context.Context, h host, product detection.Product, path string) (*Transport, error) {
	addr, err := transport.PollUntil(ctx, DeviceWait, scanInterval, func() (hal.DeviceAddress, bool, error) {
		addr, ok := findDevice(ctx, h, product)
		return addr, !ok, nil
	})
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("%w: %s: %w", pasori.ErrDeviceNotFound, product, err)
	}

	_, err = transport.WithRetry(ctx, transport.RetryConfig{
		Op:         "claim interface",
		Port:       product.Name,
		MaxRetries: claimRetries,
		RetryDelay: claimRetryDelay,
		OnRetry: func(failed int) error {
			pkg.LogDebug(pkg.ComponentHAL, "interface busy", "product", product.Name, "attempt", failed)
			return nil
		},
	}, func() (struct{}, bool, error) {
		claimErr := h.ClaimInterface(addr, uint8(product.Interface))
		if claimErr == nil {
			return struct{}{}, false, nil
		}
		if errors.Is(claimErr, pkg.ErrBusy) || isBusy(claimErr) {
			return struct{}{}, true, nil
		}
		return struct{}{}, false, claimErr
	})
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", product.Interface, err)
	}

	pkg.LogDebug(pkg.ComponentHAL, "claimed reader", "product", product.Name, "address", addr)
	return &Transport{
		host:    h,
		product: product,
		path:    path,
		addr:    addr,
	}, nil
}

// findDevice reads the device descriptor of every connected port and returns
// the address of the first one matching product
func findDevice(ctx context.Context, h host, product detection.Product) (hal.DeviceAddress, bool) {
	for port := 1; port <= h.NumPorts(); port++ {
		status, err := h.GetPortStatus(port)
		if err != nil || !status.Connected {
			continue
		}

		addr := hal.DeviceAddress(port)
		setup := &hal.SetupPacket{
			RequestType: 0x80,   // device to host, standard, device
			Request:     0x06,   // GET_DESCRIPTOR
			Value:       0x0100, // device descriptor
			Length:      deviceDescriptorSize,
		}
		var desc [deviceDescriptorSize]byte
		n, err := h.ControlTransfer(ctx, addr, setup, desc[:])
		if err != nil || n < deviceDescriptorSize {
			continue
		}

		vid := binary.LittleEndian.Uint16(desc[8:10])
		pid := binary.LittleEndian.Uint16(desc[10:12])
		if vid == product.VendorID && pid == product.ProductID {
			return addr, true
		}
	}
	return 0, false
}

// Write sends one bulk OUT transfer
func (t *Transport) Write(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepare(ctx); err != nil {
		return 0, err
	}
	n, err := t.host.BulkTransfer(ctx, t.addr, t.product.EndpointOutAddress(), data)
	if err != nil {
		return n, transferError(ctx, err)
	}
	return n, nil
}

// Read issues one bulk IN transfer of up to maxBytes
func (t *Transport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.prepare(ctx); err != nil {
		return nil, err
	}
	buf := make([]byte, maxBytes)
	n, err := t.host.BulkTransfer(ctx, t.addr, t.product.EndpointInAddress(), buf)
	if err != nil {
		return nil, transferError(ctx, err)
	}
	return buf[:n], nil
}

// prepare checks the transport state and programs the HAL transfer timeout
// from the context deadline. Callers hold t.mu.
func (t *Transport) prepare(ctx context.Context) error {
	if t.closed {
		return pasori.ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := defaultTransferTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	t.host.SetTransferTimeout(uint32(ms))
	return nil
}

func transferError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, pkg.ErrTimeout) || isTimeout(err) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, pkg.ErrNoDevice) {
		return errors.Join(pasori.ErrTransportClosed, err)
	}
	return err
}

// Close releases the interface and shuts the HAL down
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if err := t.host.ReleaseInterface(t.addr, uint8(t.product.Interface)); err != nil && !errors.Is(err, pkg.ErrNoDevice) {
		errs = append(errs, fmt.Errorf("release interface: %w", err))
	}
	if err := t.host.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close HAL: %w", err))
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
	return pasori.TransportUSBFS
}

// Product returns the reader model the transport is bound to
func (t *Transport) Product() detection.Product {
	return t.product
}

var _ pasori.ProductTransport = (*Transport)(nil)
