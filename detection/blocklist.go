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
	"path/filepath"
	"strconv"
	"strings"
)

// pcscPathPrefix marks paths naming a PC/SC reader
const pcscPathPrefix = "pcsc:"

// DefaultBlocklist returns the VID:PID pairs never reported by default.
// Every supported reader is allowed.
func DefaultBlocklist() []string {
	return []string{}
}

// ParseVIDPID parses a "VVVV:PPPP" hex pair. Case and leading zeros do not
// matter.
func ParseVIDPID(s string) (vendorID, productID uint16, err error) {
	vid, pid, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("not a VID:PID pair: %q", s)
	}
	v, err := strconv.ParseUint(vid, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor ID in %q: %w", s, err)
	}
	p, err := strconv.ParseUint(pid, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product ID in %q: %w", s, err)
	}
	return uint16(v), uint16(p), nil
}

// IsBlocked reports whether vidpid matches an entry of blocklist. Entries that
// do not parse are skipped.
func IsBlocked(vidpid string, blocklist []string) bool {
	vid, pid, err := ParseVIDPID(vidpid)
	if err != nil {
		return false
	}
	for _, blocked := range blocklist {
		bv, bp, err := ParseVIDPID(blocked)
		if err == nil && bv == vid && bp == pid {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether devicePath names the same reader as one of
// ignorePaths. USB paths match in either the usb:BBB:DDD or the usbfs node
// form; PC/SC reader names match case-insensitively.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := canonicalPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath != "" && canonicalPath(ignorePath) == device {
			return true
		}
	}
	return false
}

func canonicalPath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "/") {
		path = filepath.ToSlash(filepath.Clean(path))
	}
	if bus, address, err := ParseUSBPath(path); err == nil {
		return FormatUSBPath(bus, address)
	}
	return strings.ToLower(strings.TrimPrefix(path, pcscPathPrefix))
}
