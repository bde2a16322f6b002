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

// Package frame provides frame encoding, decoding and protocol constants for the
// RC-S300 and RC-S380 USB readers.
package frame

// Shared handshake frames
var (
	// AckFrame is the fixed acknowledgement frame. The RC-S380 sends one after every
	// command and expects one from the host at bring-up and teardown.
	AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

	// ErrorPreamble is the prefix the RC-S380 uses for ACK and error frames. Any
	// received frame starting with it is classified as a failure.
	ErrorPreamble = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF}

	// EmptyRead is substituted when a bulk read completes without data.
	EmptyRead = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00}
)

// RC-S300 (CCID) framing constants
const (
	RCS300HeaderLength = 10   // bMessageType + dwLength(4) + bSlot + bSeq + 3 reserved
	RCS300Escape       = 0x6B // PC_to_RDR_Escape
	RCS300EscapeReply  = 0x83 // RDR_to_PC_Escape
	RCS300Slot         = 0x00
)

// RC-S380 framing constants
const (
	RCS380HeaderLength = 8    // 00 00 FF FF FF lenLo lenHi LCS
	RCS380CommandCode  = 0xD6 // host to reader
	RCS380ResponseCode = 0xD7 // reader to host
	RCS380Postamble    = 0x00
)

// RCS380ExtendedHeader starts every RC-S380 command and response frame.
var RCS380ExtendedHeader = []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF}

// Frame size limits
const (
	MaxReceiveSize = 290 // largest bulk read issued to either reader
)
