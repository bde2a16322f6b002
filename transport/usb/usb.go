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

// Package usb provides a libusb transport for PaSoRi readers
package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ZaparooProject/go-pasori/internal/transport"
	"github.com/google/gousb"
)

const (
	configNumber     = 1
	claimRetries     = 5
	claimRetryDelay  = 50 * time.Millisecond
	maxPacketDefault = 64
)

// Transport implements pasori.Transport over bulk endpoints opened with gousb
type Transport struct {
	usbCtx  *gousb.Context
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	product detection.Product
	path    string
	mu      sync.Mutex
	closed  bool
}

// Factory opens a Transport for a detected device. It is meant for
// pasori.WithTransportFactory.
func Factory(ctx context.Context, device detection.DeviceInfo) (pasori.Transport, error) {
	return New(ctx, device)
}

// New opens the reader described by device, detaches any kernel driver and
// claims its interface. device.Path selects one reader when several share a
// VID:PID; an empty path takes the first.
func New(ctx context.Context, device detection.DeviceInfo) (*Transport, error) {
	product, ok := device.Product()
	if !ok {
		return nil, fmt.Errorf("%w: %s", pasori.ErrUnsupportedDevice, device.VIDPID())
	}

	bus, address := -1, -1
	if device.Path != "" {
		var err error
		if bus, address, err = detection.ParseUSBPath(device.Path); err != nil {
			return nil, fmt.Errorf("%w: %w", pasori.ErrInvalidParameter, err)
		}
	}

	t := &Transport{
		usbCtx:  gousb.NewContext(),
		product: product,
		path:    device.Path,
	}
	if err := t.open(ctx, bus, address); err != nil {
		_ = t.release()
		return nil, err
	}
	if t.path == "" {
		t.path = detection.FormatUSBPath(t.dev.Desc.Bus, t.dev.Desc.Address)
	}
	return t, nil
}

func (t *Transport) open(ctx context.Context, bus, address int) error {
	devs, err := t.usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) != t.product.VendorID || uint16(desc.Product) != t.product.ProductID {
			return false
		}
		return bus < 0 || (desc.Bus == bus && desc.Address == address)
	})
	// close any additional devices if several matched
	for i := 1; i < len(devs); i++ {
		_ = devs[i].Close()
	}
	if len(devs) == 0 {
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", t.product.Name, err)
		}
		return fmt.Errorf("%w: %s", pasori.ErrDeviceNotFound, t.product)
	}
	t.dev = devs[0]

	if err := t.dev.SetAutoDetach(true); err != nil {
		pasori.Logger().Warn("failed to enable kernel driver auto-detach", "error", err)
	}

	t.cfg, err = t.dev.Config(configNumber)
	if err != nil {
		return fmt.Errorf("failed to select configuration %d: %w", configNumber, err)
	}

	t.intf, err = transport.WithRetry(ctx, transport.RetryConfig{
		Op:         "claim interface",
		Port:       t.product.Name,
		MaxRetries: claimRetries,
		RetryDelay: claimRetryDelay,
		OnRetry: func(failed int) error {
			pasori.Logger().Debug("interface busy", "product", t.product.Name, "attempt", failed)
			return nil
		},
	}, func() (*gousb.Interface, bool, error) {
		intf, claimErr := t.cfg.Interface(int(t.product.Interface), 0)
		if claimErr == nil {
			return intf, false, nil
		}
		if errors.Is(claimErr, gousb.ErrorBusy) || errors.Is(claimErr, gousb.ErrorAccess) {
			return nil, true, nil
		}
		return nil, false, claimErr
	})
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", t.product.Interface, err)
	}

	if t.out, err = t.intf.OutEndpoint(int(t.product.EndpointOut)); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	if t.in, err = t.intf.InEndpoint(int(t.product.EndpointIn)); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}

	pasori.Logger().Debug("claimed reader",
		"product", t.product.Name,
		"bus", t.dev.Desc.Bus,
		"address", t.dev.Desc.Address,
		"interface", t.product.Interface)
	return nil
}

// Write sends one bulk OUT transfer
func (t *Transport) Write(ctx context.Context, data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, pasori.ErrTransportClosed
	}
	n, err := t.out.WriteContext(ctx, data)
	if err != nil {
		return n, t.transferError(ctx, err)
	}
	return n, nil
}

// Read issues one bulk IN transfer of up to maxBytes. A transfer that
// completes without data returns an empty slice.
func (t *Transport) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, pasori.ErrTransportClosed
	}

	size := maxBytes
	if packet := t.in.Desc.MaxPacketSize; packet > 0 && size%packet != 0 {
		// libusb reports overflow unless the buffer is a whole number of packets
		size += packet - size%packet
	} else if packet <= 0 && size < maxPacketDefault {
		size = maxPacketDefault
	}

	buf := make([]byte, size)
	n, err := t.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, t.transferError(ctx, err)
	}
	if n > maxBytes {
		n = maxBytes
	}
	return buf[:n], nil
}

// transferError prefers the context error so callers can tell a host-side
// timeout from a USB failure
func (*Transport) transferError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.TransferTimedOut) {
		return context.DeadlineExceeded
	}
	return err
}

// Close releases the interface and closes the device
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.release()
}

func (t *Transport) release() error {
	var errs []error
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		if err := t.cfg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config: %w", err))
		}
		t.cfg = nil
	}
	if t.dev != nil {
		if err := t.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
		t.dev = nil
	}
	if t.usbCtx != nil {
		if err := t.usbCtx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close libusb context: %w", err))
		}
		t.usbCtx = nil
	}
	return errors.Join(errs...)
}

// IsConnected returns true until Close
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() pasori.TransportType {
	return pasori.TransportUSB
}

// Product returns the reader model the transport is bound to
func (t *Transport) Product() detection.Product {
	return t.product
}

// Path returns the usb:BBB:DDD path of the claimed device
func (t *Transport) Path() string {
	return t.path
}

var _ pasori.ProductTransport = (*Transport)(nil)
