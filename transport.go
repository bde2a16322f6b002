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

	"github.com/ZaparooProject/go-pasori/detection"
)

// Transport moves raw frames to and from a reader's bulk endpoints. It is
// opened and bound to the reader's interface and endpoints by its constructor.
type Transport interface {
	// Write sends one frame to the OUT endpoint
	Write(ctx context.Context, data []byte) (int, error)

	// Read receives at most maxBytes from the IN endpoint. A read that completes
	// without data returns an empty slice and no error.
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Close releases the interface and closes the device
	Close() error

	// IsConnected returns true if the transport is open
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType identifies a transport implementation
type TransportType string

const (
	// TransportUSB is libusb through gousb
	TransportUSB TransportType = "usb"
	// TransportUSBFS is the Linux usbfs interface without libusb
	TransportUSBFS TransportType = "usbfs"
	// TransportPCSC bridges reader frames through a PC/SC escape channel
	TransportPCSC TransportType = "pcsc"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportFactory opens a transport for a detected reader
type TransportFactory func(ctx context.Context, device detection.DeviceInfo) (Transport, error)

// ProductTransport is implemented by transports that know which reader they
// opened. The session uses it to pick the reader implementation when no
// DeviceInfo was supplied.
type ProductTransport interface {
	Product() detection.Product
}
