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

package usb

import (
	"github.com/ZaparooProject/go-pasori/detection"
	"golang.org/x/sys/unix"
)

// nodeAccess reports the usbfs node of a device and whether the current user
// may open it for reading and writing
func nodeAccess(bus, address int) (string, bool) {
	node := detection.USBFSNode(bus, address)
	if err := unix.Access(node, unix.R_OK|unix.W_OK); err != nil {
		return node, false
	}
	return node, true
}
