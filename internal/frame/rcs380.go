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

// CommandRCS380 builds the command block D6 code params...
func CommandRCS380(code byte, params []byte) []byte {
	block := make([]byte, 0, 2+len(params))
	block = append(block, RCS380CommandCode, code)
	return append(block, params...)
}

// EncodeRCS380 builds a complete extended frame for a command:
//
//	00 00 FF FF FF len(2, LE) LCS  D6 code params...  DCS 00
//
// LCS covers the length bytes and DCS covers the command block.
func EncodeRCS380(code byte, params []byte) []byte {
	return WrapRCS380(CommandRCS380(code, params))
}

// WrapRCS380 wraps an already built data block (D6 or D7 led) in an extended frame.
func WrapRCS380(block []byte) []byte {
	length := LE16(uint32(len(block)))

	frm := make([]byte, 0, RCS380HeaderLength+len(block)+2)
	frm = append(frm, RCS380ExtendedHeader...)
	frm = append(frm, length...)
	frm = append(frm, LRC(length))
	frm = append(frm, block...)
	frm = append(frm, LRC(block), RCS380Postamble)
	return frm
}

// DecodeRCS380 classifies and parses a frame received from the RC-S380. Frames
// beginning with ErrorPreamble are failures whatever follows; everything else is a
// success. For extended frames the payload is the D7-led data region, and a length
// or checksum mismatch yields an empty failed Response.
func DecodeRCS380(raw []byte) Response {
	if len(raw) >= len(ErrorPreamble) && Equal(raw[:len(ErrorPreamble)], ErrorPreamble) {
		return failure(raw)
	}

	if !HasPrefix(raw, RCS380ExtendedHeader) {
		return Response{Raw: raw, Success: true}
	}

	if len(raw) < RCS380HeaderLength {
		return failure(raw)
	}
	if !ValidateLRC(raw[5:8]) {
		return failure(raw)
	}

	length := int(binary.LittleEndian.Uint16(raw[5:7]))
	end := RCS380HeaderLength + length
	if end+1 > len(raw) {
		return failure(raw)
	}

	payload := raw[RCS380HeaderLength:end]
	if !ValidateLRC(raw[RCS380HeaderLength : end+1]) {
		return failure(raw)
	}

	resp := Response{Raw: raw, Payload: payload, Success: true}
	if len(payload) >= 2 && payload[0] == RCS380ResponseCode {
		resp.Code = payload[1]
		resp.HasCode = true
	}
	return resp
}

// IsAck reports whether raw is the fixed acknowledgement frame.
func IsAck(raw []byte) bool {
	return HasPrefix(raw, AckFrame)
}
