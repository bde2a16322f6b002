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

package usb

import (
	"context"
	"errors"
	"testing"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTransportCreation verifies basic transport properties
func TestTransportCreation(t *testing.T) {
	t.Parallel()

	product, ok := detection.LookupProduct(detection.SonyVendorID, 0x0DC9)
	require.True(t, ok)

	transport := &Transport{product: product, path: "usb:001:007"}
	assert.Equal(t, pasori.TransportUSB, transport.Type())
	assert.False(t, transport.IsConnected())
	assert.Equal(t, product, transport.Product())
	assert.Equal(t, "usb:001:007", transport.Path())
}

func TestClosedTransport(t *testing.T) {
	t.Parallel()

	transport := &Transport{closed: true}

	_, err := transport.Write(context.Background(), []byte{0x00})
	require.ErrorIs(t, err, pasori.ErrTransportClosed)
	_, err = transport.Read(context.Background(), 64)
	require.ErrorIs(t, err, pasori.ErrTransportClosed)
	require.NoError(t, transport.Close())
}

func TestNewRejectsBadDevices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		device  detection.DeviceInfo
	}{
		{
			name:    "unsupported product",
			device:  detection.DeviceInfo{VendorID: 0x054C, ProductID: 0x02E1},
			wantErr: pasori.ErrUnsupportedDevice,
		},
		{
			name:    "malformed path",
			device:  detection.DeviceInfo{VendorID: 0x054C, ProductID: 0x06C3, Path: "COM3"},
			wantErr: pasori.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(context.Background(), tt.device)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTransferError(t *testing.T) {
	t.Parallel()

	transport := &Transport{}

	err := transport.transferError(context.Background(), gousb.ErrorTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = transport.transferError(context.Background(), gousb.TransferTimedOut)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = transport.transferError(ctx, gousb.TransferCancelled)
	require.ErrorIs(t, err, context.Canceled)

	stall := errors.New("pipe")
	assert.Equal(t, stall, transport.transferError(context.Background(), stall))
}
