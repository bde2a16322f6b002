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
	"bytes"
	"sync"

	"github.com/ZaparooProject/go-pasori/internal/frame"
)

// VirtualRCS300 answers RC-S300 escape frames the way the reader does,
// forwarding Communicate Thru EX data to a VirtualCard. Its Respond method
// plugs into a mock transport.
type VirtualRCS300 struct {
	Card     *VirtualCard
	commands [][]byte
	mu       sync.Mutex
	rfOn     bool
}

// NewVirtualRCS300 returns an emulated RC-S300 with card in range
func NewVirtualRCS300(card *VirtualCard) *VirtualRCS300 {
	return &VirtualRCS300{Card: card}
}

// Commands returns the escape commands received, headers stripped
func (v *VirtualRCS300) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.commands))
	copy(out, v.commands)
	return out
}

// RFOn reports whether the RF field is on
func (v *VirtualRCS300) RFOn() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rfOn
}

// Respond returns the frames the reader sends back for one written frame
func (v *VirtualRCS300) Respond(frm []byte) [][]byte {
	seq, cmd, ok := ParseRCS300Command(frm)
	if !ok {
		return nil
	}

	v.mu.Lock()
	v.commands = append(v.commands, append([]byte{}, cmd...))
	v.mu.Unlock()

	payload := RCS300StatusOK
	switch {
	case len(cmd) == 8 && bytes.HasPrefix(cmd, []byte{0xFF, 0x50, 0x00, 0x00, 0x02}):
		v.mu.Lock()
		switch cmd[5] {
		case 0x83:
			v.rfOn = false
		case 0x84:
			v.rfOn = true
		}
		v.mu.Unlock()
	case bytes.HasPrefix(cmd, []byte{0xFF, 0x50, 0x00, 0x01, 0x00}):
		payload = v.communicate(cmd)
	}
	return [][]byte{BuildRCS300Reply(payload, seq)}
}

// communicate extracts the FeliCa command from the transceive data object
func (v *VirtualRCS300) communicate(cmd []byte) []byte {
	if !v.RFOn() || v.Card == nil {
		return RCS300StatusTimeout
	}
	idx := bytes.Index(cmd, []byte{0x95, 0x82})
	if idx < 0 || idx+4 > len(cmd) {
		return RCS300StatusTimeout
	}
	n := int(cmd[idx+2])<<8 | int(cmd[idx+3])
	start := idx + 4
	if start+n > len(cmd) {
		return RCS300StatusTimeout
	}

	reply := v.Card.Handle(cmd[start : start+n])
	if reply == nil {
		return RCS300StatusTimeout
	}
	return BuildRCS300FelicaPayload(reply)
}

// VirtualRCS380 answers RC-S380 extended frames with an ACK followed by a
// response, forwarding InCommRF data to a VirtualCard
type VirtualRCS380 struct {
	Card     *VirtualCard
	codes    []byte
	acks     int
	mu       sync.Mutex
	rfActive bool
}

// NewVirtualRCS380 returns an emulated RC-S380 with card in range
func NewVirtualRCS380(card *VirtualCard) *VirtualRCS380 {
	return &VirtualRCS380{Card: card}
}

// Codes returns the command codes received
func (v *VirtualRCS380) Codes() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte{}, v.codes...)
}

// Acks returns the number of ACK frames received from the host
func (v *VirtualRCS380) Acks() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.acks
}

// Respond returns the frames the reader sends back for one written frame
func (v *VirtualRCS380) Respond(frm []byte) [][]byte {
	if frame.IsAck(frm) {
		v.mu.Lock()
		v.acks++
		v.mu.Unlock()
		return nil
	}

	code, params, ok := ParseRCS380Command(frm)
	if !ok {
		return [][]byte{frame.AckFrame, frame.EmptyRead}
	}

	v.mu.Lock()
	v.codes = append(v.codes, code)
	switch code {
	case 0x00:
		v.rfActive = true
	case 0x06:
		v.rfActive = false
	}
	active := v.rfActive
	v.mu.Unlock()

	var resp []byte
	switch code {
	case 0x04:
		resp = BuildRCS380CommRFTimeout()
		if active && v.Card != nil && len(params) > 2 {
			if reply := v.Card.Handle(params[2:]); reply != nil {
				resp = BuildRCS380CommRFResponse(reply)
			}
		}
	default:
		resp = BuildRCS380Response(code, []byte{0x00})
	}
	return [][]byte{frame.AckFrame, resp}
}
