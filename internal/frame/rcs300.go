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

import "encoding/binary"

// EncodeRCS300 wraps command in a PC_to_RDR_Escape frame:
//
//	6B len(4, LE) slot seq 00 00 00 command...
//
// seq must already be incremented by the caller.
func EncodeRCS300(command []byte, seq byte) []byte {
	frm := make([]byte, 0, RCS300HeaderLength+len(command))
	frm = append(frm, RCS300Escape)
	frm = append(frm, LE32(uint32(len(command)))...)
	frm = append(frm, RCS300Slot, seq, 0x00, 0x00, 0x00)
	return append(frm, command...)
}

// DecodeRCS300 parses an RDR_to_PC frame. The payload starts after the 10-byte
// header and runs for the length declared in the header. Short reads, including
// the zero-filled EmptyRead frame, and lengths that overrun the buffer decode to
// an empty failed Response.
func DecodeRCS300(raw []byte) Response {
	if len(raw) < RCS300HeaderLength {
		return failure(raw)
	}

	declared := binary.LittleEndian.Uint32(raw[1:5])
	available := uint32(len(raw) - RCS300HeaderLength)
	if declared > available {
		return failure(raw)
	}

	return Response{
		Raw:     raw,
		Payload: raw[RCS300HeaderLength : RCS300HeaderLength+int(declared)],
		Code:    raw[7],
		HasCode: true,
		Success: true,
	}
}

// RCS300Sequence returns the bSeq byte of an encoded frame.
func RCS300Sequence(frm []byte) (byte, bool) {
	if len(frm) < RCS300HeaderLength {
		return 0, false
	}
	return frm[6], true
}

// SplitRCS300 returns the sequence number and command of a PC_to_RDR_Escape
// frame. ok is false when frm is not one or its length field disagrees with
// its size.
func SplitRCS300(frm []byte) (seq byte, command []byte, ok bool) {
	if len(frm) < RCS300HeaderLength || frm[0] != RCS300Escape {
		return 0, nil, false
	}
	n := binary.LittleEndian.Uint32(frm[1:5])
	if int(n) != len(frm)-RCS300HeaderLength {
		return 0, nil, false
	}
	return frm[6], frm[RCS300HeaderLength:], true
}

// EncodeRCS300Reply builds the RDR_to_PC_Escape frame answering seq
func EncodeRCS300Reply(payload []byte, seq, status byte) []byte {
	reply := make([]byte, 0, RCS300HeaderLength+len(payload))
	reply = append(reply, RCS300EscapeReply)
	reply = append(reply, LE32(uint32(len(payload)))...)
	reply = append(reply, RCS300Slot, seq, status, 0x00, 0x00)
	return append(reply, payload...)
}
