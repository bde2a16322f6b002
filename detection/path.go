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

package detection

import (
	"fmt"
	"strconv"
	"strings"
)

const usbPathPrefix = "usb:"

// FormatUSBPath returns the device path used for a USB bus and device address
func FormatUSBPath(bus, address int) string {
	return fmt.Sprintf("%s%03d:%03d", usbPathPrefix, bus, address)
}

// ParseUSBPath splits a path created by FormatUSBPath. It also accepts the
// usbfs node form /dev/bus/usb/BBB/DDD.
func ParseUSBPath(path string) (bus, address int, err error) {
	var parts []string
	switch {
	case strings.HasPrefix(path, usbPathPrefix):
		parts = strings.Split(strings.TrimPrefix(path, usbPathPrefix), ":")
	case strings.HasPrefix(path, USBFSRoot+"/"):
		parts = strings.Split(strings.TrimPrefix(path, USBFSRoot+"/"), "/")
	default:
		return 0, 0, fmt.Errorf("not a USB device path: %q", path)
	}
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("not a USB device path: %q", path)
	}

	if bus, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid bus in %q: %w", path, err)
	}
	if address, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid address in %q: %w", path, err)
	}
	return bus, address, nil
}

// USBFSRoot is where Linux exposes USB device nodes
const USBFSRoot = "/dev/bus/usb"

// USBFSNode returns the usbfs device node for a bus and device address
func USBFSNode(bus, address int) string {
	return fmt.Sprintf("%s/%03d/%03d", USBFSRoot, bus, address)
}
