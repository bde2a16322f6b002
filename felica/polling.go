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

// PollingRequest parameters for the Polling command.
type PollingRequest struct {
	SystemCode  uint16
	RequestCode byte
	TimeSlot    byte
}

// DefaultPollingRequest polls for the student card system with system code
// information requested and a single time slot.
func DefaultPollingRequest() PollingRequest {
	return PollingRequest{
		SystemCode:  DefaultSystemCode,
		RequestCode: DefaultRequestCode,
		TimeSlot:    DefaultTimeSlot,
	}
}

// BuildPolling returns the length-prefixed Polling command:
//
//	len 00 sysHi sysLo requestCode timeSlot
func BuildPolling(req PollingRequest) []byte {
	cmd := []byte{
		CommandPolling,
		byte(req.SystemCode >> 8),
		byte(req.SystemCode),
		req.RequestCode,
		req.TimeSlot,
	}
	return prefixLength(cmd)
}

func prefixLength(cmd []byte) []byte {
	payload := make([]byte, 0, len(cmd)+1)
	payload = append(payload, byte(len(cmd)+1))
	return append(payload, cmd...)
}
