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

// Package felica builds the FeliCa card commands used to identify a student card
// and extracts card-level responses from reader frames. It knows nothing about
// the reader chipsets; the bytes it produces are handed to a reader's FeliCa
// pass-through command.
package felica

import "time"

// FeliCa command codes
const (
	CommandPolling               = 0x00
	CommandReadWithoutEncryption = 0x06
)

// FeliCa response codes
const (
	ResponsePolling               = 0x01
	ResponseReadWithoutEncryption = 0x07
)

// IDmLength is the length of the card manufacture ID returned by polling.
const IDmLength = 8

// Defaults used to read the student number block
const (
	DefaultSystemCode  uint16 = 0x86B3
	DefaultRequestCode byte   = 0x01
	DefaultTimeSlot    byte   = 0x00
	DefaultServiceCode uint16 = 0x120B

	DefaultPollingTimeout = time.Millisecond
	DefaultReadTimeout    = time.Millisecond
)

// studentIDOffset is the first block data byte of a read-without-encryption reply:
// length, response code, IDm(8), status flag 1, status flag 2, block count.
const studentIDOffset = 13

// studentIDTerminator ends the student number inside the block.
const studentIDTerminator = 0x20
