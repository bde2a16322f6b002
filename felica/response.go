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

package felica

import (
	"bytes"
	"encoding/hex"
)

// DataMarker precedes the card response inside RC-S300 transparent session
// replies. The byte after it is the length of the card response.
const DataMarker = 0x97

// Response is a FeliCa card response. Raw starts with the FeliCa length byte;
// ResponseCode is Raw[1] and Data is Raw[2:]. A failed extraction is the zero
// Response, so callers check Empty rather than an error.
type Response struct {
	Raw          []byte
	Data         []byte
	ResponseCode byte
}

// ExtractFelicaData locates the card response inside a reader payload: the bytes
// after the first DataMarker, for the length declared by the following byte.
// A declared length that overruns the payload is clamped.
func ExtractFelicaData(payload []byte) Response {
	k := bytes.IndexByte(payload, DataMarker)
	if k < 0 || k+1 >= len(payload) {
		return Response{}
	}

	length := int(payload[k+1])
	if length == 0 {
		return Response{}
	}

	start := k + 2
	end := start + length
	if end > len(payload) {
		end = len(payload)
	}
	return newResponse(payload[start:end])
}

// ParseFrame builds a Response from a bare card frame whose first byte is its
// own length, as returned by the RC-S380 InCommRF command.
func ParseFrame(frm []byte) Response {
	if len(frm) == 0 || frm[0] == 0 {
		return Response{}
	}
	end := int(frm[0])
	if end > len(frm) {
		end = len(frm)
	}
	return newResponse(frm[:end])
}

func newResponse(raw []byte) Response {
	if len(raw) == 0 {
		return Response{}
	}
	resp := Response{Raw: raw}
	if len(raw) > 1 {
		resp.ResponseCode = raw[1]
	}
	if len(raw) > 2 {
		resp.Data = raw[2:]
	}
	return resp
}

// Empty reports whether no card response was found.
func (r Response) Empty() bool {
	return len(r.Raw) == 0
}

// IDm returns the card identifier, Raw[2:10]. It is shorter than IDmLength when
// the response is truncated.
func (r Response) IDm() []byte {
	if len(r.Data) == 0 {
		return nil
	}
	end := IDmLength
	if end > len(r.Data) {
		end = len(r.Data)
	}
	idm := make([]byte, end)
	copy(idm, r.Data[:end])
	return idm
}

// StudentID decodes the student number from a read-without-encryption reply.
func (r Response) StudentID() (string, bool) {
	return DecodeStudentID(r.Raw)
}

// String renders the raw response for debug output.
func (r Response) String() string {
	return hex.EncodeToString(r.Raw)
}

// DecodeStudentID returns the text from raw[13:] up to the first space. A block
// without a space is a decode failure, never a partial result.
func DecodeStudentID(raw []byte) (string, bool) {
	if len(raw) <= studentIDOffset {
		return "", false
	}
	text := raw[studentIDOffset:]
	end := bytes.IndexByte(text, studentIDTerminator)
	if end < 0 {
		return "", false
	}
	return string(text[:end]), true
}
