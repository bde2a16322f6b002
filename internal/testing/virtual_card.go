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

// Package testing provides emulated readers and FeliCa cards for tests.
package testing

import (
	"bytes"
	"sync"

	"github.com/ZaparooProject/go-pasori/felica"
)

// Sample card data
var (
	TestIDm = []byte{0x01, 0x2E, 0x4C, 0xD3, 0x8A, 0x11, 0x07, 0x5F}
	TestPMm = []byte{0x10, 0x0B, 0x4B, 0x42, 0x84, 0x85, 0xD0, 0xFF}
)

// BlockSize is the size of a FeliCa data block
const BlockSize = 16

// VirtualCard is a FeliCa card answering Polling and Read Without Encryption
type VirtualCard struct {
	IDm        []byte
	PMm        []byte
	Block      []byte // first block of the student service
	mu         sync.Mutex
	SystemCode uint16
	// ServiceCode is the only service the card answers reads for
	ServiceCode uint16
	// EmptyPolls is the number of polls left unanswered before the card
	// starts replying, as if it were still being brought into the field
	EmptyPolls int
	Present    bool
	polls      int
	reads      int
}

// NewVirtualCard returns a present card carrying a student number
func NewVirtualCard(idm []byte, studentID string) *VirtualCard {
	if idm == nil {
		idm = TestIDm
	}
	card := &VirtualCard{
		IDm:         idm,
		PMm:         TestPMm,
		SystemCode:  felica.DefaultSystemCode,
		ServiceCode: felica.DefaultServiceCode,
		Present:     true,
	}
	card.SetStudentID(studentID)
	return card
}

// SetStudentID stores id in the block, padded with spaces
func (c *VirtualCard) SetStudentID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	block := bytes.Repeat([]byte{0x20}, BlockSize)
	copy(block, id)
	c.Block = block
}

// SetBlock stores raw block contents
func (c *VirtualCard) SetBlock(block []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Block = append([]byte{}, block...)
}

// SetIDm swaps the card for one with another IDm
func (c *VirtualCard) SetIDm(idm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IDm = append([]byte{}, idm...)
}

// Remove takes the card out of the field
func (c *VirtualCard) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Present = false
}

// Insert puts the card back in the field
func (c *VirtualCard) Insert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Present = true
}

// Polls returns the number of Polling commands received
func (c *VirtualCard) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// Reads returns the number of Read Without Encryption commands received
func (c *VirtualCard) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Handle answers a length-prefixed FeliCa command. It returns nil when the
// card stays silent.
func (c *VirtualCard) Handle(cmd []byte) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(cmd) < 2 || int(cmd[0]) != len(cmd) {
		return nil
	}

	switch cmd[1] {
	case felica.CommandPolling:
		c.polls++
		return c.poll(cmd)
	case felica.CommandReadWithoutEncryption:
		c.reads++
		return c.read(cmd)
	default:
		return nil
	}
}

func (c *VirtualCard) poll(cmd []byte) []byte {
	if len(cmd) != 6 || !c.Present {
		return nil
	}
	if c.EmptyPolls > 0 {
		c.EmptyPolls--
		return nil
	}

	system := uint16(cmd[2])<<8 | uint16(cmd[3])
	if system != 0xFFFF && system != c.SystemCode {
		return nil
	}

	reply := []byte{0x00, felica.ResponsePolling}
	reply = append(reply, c.IDm...)
	reply = append(reply, c.PMm...)
	if cmd[4] == 0x01 {
		reply = append(reply, byte(c.SystemCode>>8), byte(c.SystemCode))
	}
	reply[0] = byte(len(reply))
	return reply
}

func (c *VirtualCard) read(cmd []byte) []byte {
	if !c.Present || len(cmd) < 2+felica.IDmLength+1 {
		return nil
	}
	if !bytes.Equal(cmd[2:2+felica.IDmLength], c.IDm) {
		return nil
	}

	reply := []byte{0x00, felica.ResponseReadWithoutEncryption}
	reply = append(reply, c.IDm...)

	services := int(cmd[10])
	if len(cmd) < 11+2*services+1 || services != 1 {
		reply = append(reply, 0xFF, 0xA1)
	} else {
		service := uint16(cmd[11]) | uint16(cmd[12])<<8
		if service != c.ServiceCode {
			reply = append(reply, 0x01, 0xA6)
		} else {
			reply = append(reply, 0x00, 0x00, 0x01)
			reply = append(reply, c.Block...)
		}
	}
	reply[0] = byte(len(reply))
	return reply
}
