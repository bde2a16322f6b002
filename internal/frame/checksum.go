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

package frame

import (
	"bytes"
	"time"
)

// LE16 encodes n into two bytes, least significant first. Higher bits are dropped.
func LE16(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8)}
}

// LE32 encodes n into four bytes, least significant first.
func LE32(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

// TimeoutToWire converts a card-side timeout into the readers' timer units:
// (floor(ms*1000) + 1) * 10. The +1 and *10 follow the chipset timer resolution
// and are part of the wire contract.
func TimeoutToWire(timeout time.Duration) uint32 {
	us := timeout.Microseconds()
	if us < 0 {
		us = 0
	}
	return uint32((us + 1) * 10)
}

// LRC returns the longitudinal redundancy check byte for data, so that the sum of
// data and the returned byte is 0 mod 256.
func LRC(data []byte) byte {
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return byte((256 - sum%256) % 256)
}

// ValidateLRC reports whether data, including its trailing checksum byte, sums to
// zero mod 256.
func ValidateLRC(data []byte) bool {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum == 0
}

// Equal reports whether a and b have the same length and content.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// HasPrefix reports whether data starts with prefix.
func HasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}
