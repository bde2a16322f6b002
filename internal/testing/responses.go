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

package testing

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-pasori/internal/frame"
)

// Status data objects returned by the RC-S300 inside escape replies
var (
	// RCS300StatusOK is a generic data object with SW 90 00
	RCS300StatusOK = []byte{0xC0, 0x03, 0x00, 0x90, 0x00, 0x90, 0x00}
	// RCS300StatusTimeout reports that the card did not answer
	RCS300StatusTimeout = []byte{0xC0, 0x03, 0x01, 0x64, 0x01, 0x90, 0x00}
)

// BuildRCS300Reply wraps payload in an RDR_to_PC_Escape frame
func BuildRCS300Reply(payload []byte, seq byte) []byte {
	return frame.EncodeRCS300Reply(payload, seq, 0x00)
}

// BuildRCS300FelicaPayload builds a Communicate Thru EX reply payload carrying
// a card response in its 0x97 data object
func BuildRCS300FelicaPayload(felicaFrame []byte) []byte {
	payload := []byte{0xC0, 0x03, 0x00, 0x90, 0x00, 0x92, 0x01, 0x00, 0x96, 0x02, 0x00, 0x00}
	payload = append(payload, 0x97, byte(len(felicaFrame)))
	payload = append(payload, felicaFrame...)
	return append(payload, 0x90, 0x00)
}

// BuildRCS380Response wraps a D7 response block for a command code
func BuildRCS380Response(code byte, data []byte) []byte {
	block := append([]byte{frame.RCS380ResponseCode, code + 1}, data...)
	return frame.WrapRCS380(block)
}

// BuildRCS380CommRFResponse builds the InCommRF response carrying a card frame
func BuildRCS380CommRFResponse(felicaFrame []byte) []byte {
	data := append([]byte{0x00, 0x00, 0x00, 0x00, 0x00}, felicaFrame...)
	return BuildRCS380Response(0x04, data)
}

// BuildRCS380CommRFTimeout builds the InCommRF response for a silent card
func BuildRCS380CommRFTimeout() []byte {
	return BuildRCS380Response(0x04, []byte{0x80, 0x00, 0x00, 0x00})
}

// ParseRCS300Command splits an escape frame into its sequence number and
// command. ok is false for anything else.
func ParseRCS300Command(frm []byte) (seq byte, cmd []byte, ok bool) {
	return frame.SplitRCS300(frm)
}

// ParseRCS380Command returns the command code and parameters of an extended
// frame. ok is false for ACK frames and anything malformed.
func ParseRCS380Command(frm []byte) (code byte, params []byte, ok bool) {
	if !frame.HasPrefix(frm, frame.RCS380ExtendedHeader) || len(frm) < frame.RCS380HeaderLength+4 {
		return 0, nil, false
	}
	n := int(binary.LittleEndian.Uint16(frm[5:7]))
	end := frame.RCS380HeaderLength + n
	if end+2 > len(frm) || !frame.ValidateLRC(frm[5:8]) || !frame.ValidateLRC(frm[8:end+1]) {
		return 0, nil, false
	}
	block := frm[frame.RCS380HeaderLength:end]
	if block[0] != frame.RCS380CommandCode {
		return 0, nil, false
	}
	return block[1], block[2:], true
}
