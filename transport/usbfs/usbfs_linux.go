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

//go:build linux

package usbfs

import (
	"context"
	"errors"
	"fmt"

	pasori "github.com/ZaparooProject/go-pasori"
	"github.com/ZaparooProject/go-pasori/detection"
	"github.com/ardnew/softusb/host/hal/linux"
	"golang.org/x/sys/unix"
)

// New starts a softusb host HAL, waits for it to report the reader described
// by device and claims the reader's interface. The HAL opens every usbfs node
// it can access; device.Path is kept for reporting only.
func New(ctx context.Context, device detection.DeviceInfo) (*Transport, error) {
	product, ok := device.Product()
	if !ok {
		return nil, fmt.Errorf("%w: %s", pasori.ErrUnsupportedDevice, device.VIDPID())
	}

	h := linux.NewHostHAL()
	if err := h.Init(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("failed to initialize usbfs host: %w", err)
	}
	if err := h.Start(); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to start usbfs host: %w", err)
	}
	return open(ctx, h, product, device.Path)
}

func isTimeout(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}

func isBusy(err error) bool {
	return errors.Is(err, unix.EBUSY)
}
