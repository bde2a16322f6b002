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

import "encoding/hex"

// Response is a decoded reader frame. A frame that could not be decoded yields a
// Response with Success unset and an empty Payload; callers check the payload length
// rather than expecting an error.
type Response struct {
	// Raw is the frame as received
	Raw []byte
	// Payload is the command-specific data region with header, footer and
	// length fields stripped
	Payload []byte
	// Code is the chipset status (RC-S300 bStatus) or response command code (RC-S380)
	Code byte
	// HasCode is set when Code was present in the frame
	HasCode bool
	// Success is false for error frames, short reads and malformed frames
	Success bool
}

// Empty reports whether the response carries no payload.
func (r Response) Empty() bool {
	return len(r.Payload) == 0
}

// String renders the payload for debug output.
func (r Response) String() string {
	if !r.Success {
		return "failure " + hex.EncodeToString(r.Raw)
	}
	return hex.EncodeToString(r.Payload)
}

func failure(raw []byte) Response {
	return Response{Raw: raw}
}
